package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tbourn/go-taskbuddy/internal/repo"
)

func TestCreateInvite_FormatAndExpiry(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, 100, "Alice")
	clock := newClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := &PairingService{DB: db, Now: clock.Now}

	inv, err := svc.CreateInvite(context.Background(), 100)
	if err != nil {
		t.Fatalf("CreateInvite: %v", err)
	}
	if len(inv.Code) != InviteCodeLen {
		t.Fatalf("code length = %d, want %d", len(inv.Code), InviteCodeLen)
	}
	for _, r := range inv.Code {
		if !strings.ContainsRune(InviteAlphabet, r) {
			t.Fatalf("code %q contains %q outside the alphabet", inv.Code, r)
		}
	}
	if want := clock.Now().Add(DefaultInviteTTL); !inv.ExpiresAt.Equal(want) {
		t.Fatalf("expires = %v, want %v", inv.ExpiresAt, want)
	}

	u := reloadUser(t, db, 100)
	if u.InviteCode == nil || *u.InviteCode != inv.Code {
		t.Fatalf("stored code = %v, want %q", u.InviteCode, inv.Code)
	}
}

func TestCreateInvite_ReplacesPreviousCode(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, 100, "Alice")
	seedUser(t, db, 200, "Bob")
	svc := &PairingService{DB: db}

	first, err := svc.CreateInvite(context.Background(), 100)
	if err != nil {
		t.Fatalf("first invite: %v", err)
	}
	second, err := svc.CreateInvite(context.Background(), 100)
	if err != nil {
		t.Fatalf("second invite: %v", err)
	}
	if first.Code == second.Code {
		t.Skip("random codes collided; nothing to check")
	}
	if _, err := svc.AcceptInvite(context.Background(), first.Code, 200); !errors.Is(err, ErrInvalidOrExpired) {
		t.Fatalf("old code: want ErrInvalidOrExpired, got %v", err)
	}
}

func TestCreateInvite_Errors(t *testing.T) {
	db := newTestDB(t)
	pairUsers(t, db, 100, 200)
	svc := &PairingService{DB: db}

	if _, err := svc.CreateInvite(context.Background(), 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown user: want ErrNotFound, got %v", err)
	}
	if _, err := svc.CreateInvite(context.Background(), 100); !errors.Is(err, ErrAlreadyPartnered) {
		t.Fatalf("paired user: want ErrAlreadyPartnered, got %v", err)
	}
}

func TestAcceptInvite_LinksBothUsersAndNotifiesInviter(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, 100, "Alice")
	seedUser(t, db, 200, "Bob")
	n := newFakeNotifier()
	svc := &PairingService{DB: db, Notifier: n}
	ctx := context.Background()

	inv, err := svc.CreateInvite(ctx, 100)
	if err != nil {
		t.Fatalf("CreateInvite: %v", err)
	}
	// Codes are accepted case-insensitively with surrounding blanks.
	res, err := svc.AcceptInvite(ctx, "  "+strings.ToLower(inv.Code)+" ", 200)
	if err != nil {
		t.Fatalf("AcceptInvite: %v", err)
	}
	if res.Partner.TelegramID != 100 || res.User.TelegramID != 200 {
		t.Fatalf("unexpected result users: %+v", res)
	}
	if !res.Notified {
		t.Fatalf("expected inviter to be notified")
	}
	if !strings.Contains(res.Message, "Alice") {
		t.Fatalf("confirmation should name the inviter: %q", res.Message)
	}

	a, b := reloadUser(t, db, 100), reloadUser(t, db, 200)
	if a.PartnerID == nil || *a.PartnerID != b.ID {
		t.Fatalf("inviter partner = %v, want %d", a.PartnerID, b.ID)
	}
	if b.PartnerID == nil || *b.PartnerID != a.ID {
		t.Fatalf("accepter partner = %v, want %d", b.PartnerID, a.ID)
	}
	if a.InviteCode != nil || a.InviteExpiresAt != nil {
		t.Fatalf("inviter code should be cleared, got %v / %v", a.InviteCode, a.InviteExpiresAt)
	}

	notes := n.notes()
	if len(notes) != 1 || notes[0].TelegramID != 100 || !strings.Contains(notes[0].Text, "Bob") {
		t.Fatalf("unexpected notifications: %+v", notes)
	}
}

func TestAcceptInvite_ClearsAccepterPendingCode(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, 100, "Alice")
	seedUser(t, db, 200, "Bob")
	svc := &PairingService{DB: db}
	ctx := context.Background()

	inv, _ := svc.CreateInvite(ctx, 100)
	if _, err := svc.CreateInvite(ctx, 200); err != nil {
		t.Fatalf("accepter invite: %v", err)
	}
	if _, err := svc.AcceptInvite(ctx, inv.Code, 200); err != nil {
		t.Fatalf("AcceptInvite: %v", err)
	}
	if b := reloadUser(t, db, 200); b.InviteCode != nil {
		t.Fatalf("accepter code should be cleared, got %q", *b.InviteCode)
	}
}

func TestAcceptInvite_ExpiryIsStrict(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, 100, "Alice")
	seedUser(t, db, 200, "Bob")
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := newClock(start)
	svc := &PairingService{DB: db, Now: clock.Now, InviteTTL: time.Hour}
	ctx := context.Background()

	inv, err := svc.CreateInvite(ctx, 100)
	if err != nil {
		t.Fatalf("CreateInvite: %v", err)
	}

	clock.Set(inv.ExpiresAt)
	if _, err := svc.AcceptInvite(ctx, inv.Code, 200); !errors.Is(err, ErrInvalidOrExpired) {
		t.Fatalf("at expiry: want ErrInvalidOrExpired, got %v", err)
	}

	clock.Set(inv.ExpiresAt.Add(-time.Second))
	if _, err := svc.AcceptInvite(ctx, inv.Code, 200); err != nil {
		t.Fatalf("before expiry: %v", err)
	}
}

func TestAcceptInvite_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown code", func(t *testing.T) {
		db := newTestDB(t)
		seedUser(t, db, 200, "Bob")
		svc := &PairingService{DB: db}
		for _, code := range []string{"ZZZZZZ", "", "   "} {
			if _, err := svc.AcceptInvite(ctx, code, 200); !errors.Is(err, ErrInvalidOrExpired) {
				t.Fatalf("code %q: want ErrInvalidOrExpired, got %v", code, err)
			}
		}
	})

	t.Run("self invite", func(t *testing.T) {
		db := newTestDB(t)
		seedUser(t, db, 100, "Alice")
		svc := &PairingService{DB: db}
		inv, _ := svc.CreateInvite(ctx, 100)
		if _, err := svc.AcceptInvite(ctx, inv.Code, 100); !errors.Is(err, ErrSelfInvite) {
			t.Fatalf("want ErrSelfInvite, got %v", err)
		}
		if u := reloadUser(t, db, 100); u.HasPartner() {
			t.Fatalf("self invite must not link")
		}
	})

	t.Run("unknown accepter", func(t *testing.T) {
		db := newTestDB(t)
		seedUser(t, db, 100, "Alice")
		svc := &PairingService{DB: db}
		inv, _ := svc.CreateInvite(ctx, 100)
		if _, err := svc.AcceptInvite(ctx, inv.Code, 999); !errors.Is(err, ErrNotFound) {
			t.Fatalf("want ErrNotFound, got %v", err)
		}
	})

	t.Run("accepter already partnered", func(t *testing.T) {
		db := newTestDB(t)
		pairUsers(t, db, 100, 200)
		seedUser(t, db, 300, "Carol")
		svc := &PairingService{DB: db}
		inv, _ := svc.CreateInvite(ctx, 300)
		if _, err := svc.AcceptInvite(ctx, inv.Code, 200); !errors.Is(err, ErrAlreadyPartnered) {
			t.Fatalf("want ErrAlreadyPartnered, got %v", err)
		}
		if c := reloadUser(t, db, 300); c.HasPartner() || c.InviteCode == nil {
			t.Fatalf("inviter state must be untouched: %+v", c)
		}
	})

	t.Run("inviter already partnered", func(t *testing.T) {
		db := newTestDB(t)
		a, _ := pairUsers(t, db, 100, 200)
		seedUser(t, db, 300, "Carol")
		// A stale code left on a paired user.
		if err := repo.SetInvite(ctx, db, a.ID, "STALE2", time.Now().Add(time.Hour)); err != nil {
			t.Fatalf("SetInvite: %v", err)
		}
		svc := &PairingService{DB: db}
		if _, err := svc.AcceptInvite(ctx, "stale2", 300); !errors.Is(err, ErrAlreadyPartnered) {
			t.Fatalf("want ErrAlreadyPartnered, got %v", err)
		}
	})
}

func TestAcceptInvite_CodeRedeemedAtMostOnce(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, 100, "Alice")
	accepters := []int64{200, 300, 400, 500}
	for _, id := range accepters {
		seedUser(t, db, id, "")
	}
	svc := &PairingService{DB: db}
	ctx := context.Background()

	inv, err := svc.CreateInvite(ctx, 100)
	if err != nil {
		t.Fatalf("CreateInvite: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(accepters))
	for i, id := range accepters {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			_, errs[i] = svc.AcceptInvite(ctx, inv.Code, id)
		}(i, id)
	}
	wg.Wait()

	wins := 0
	for i, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrInvalidOrExpired):
		default:
			t.Fatalf("accepter %d: unexpected error %v", accepters[i], err)
		}
	}
	if wins != 1 {
		t.Fatalf("code redeemed %d times, want exactly 1", wins)
	}

	inviter := reloadUser(t, db, 100)
	linked := 0
	for _, id := range accepters {
		u := reloadUser(t, db, id)
		if u.HasPartner() {
			linked++
			if *u.PartnerID != inviter.ID || inviter.PartnerID == nil || *inviter.PartnerID != u.ID {
				t.Fatalf("asymmetric partnership between %d and %d", inviter.ID, u.ID)
			}
		}
	}
	if linked != 1 {
		t.Fatalf("linked accepters = %d, want 1", linked)
	}
}

func TestDissolve_RemovesTasksAndResetsCounters(t *testing.T) {
	db := newTestDB(t)
	pairUsers(t, db, 100, 200)
	n := newFakeNotifier()
	tasks := &TaskService{DB: db}
	ctx := context.Background()

	t1, err := tasks.Create(ctx, 100, "Buy milk", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := tasks.Create(ctx, 200, "Call mom", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := tasks.Complete(ctx, t1.ID, 200); err != nil {
		t.Fatalf("complete: %v", err)
	}

	svc := &PairingService{DB: db, Notifier: n}
	res, err := svc.Dissolve(ctx, 100)
	if err != nil {
		t.Fatalf("Dissolve: %v", err)
	}
	if res.TasksDeleted != 2 {
		t.Fatalf("tasks deleted = %d, want 2", res.TasksDeleted)
	}
	if res.FormerPartner.TelegramID != 200 || !res.Notified {
		t.Fatalf("unexpected result: %+v", res)
	}

	for _, id := range []int64{100, 200} {
		u := reloadUser(t, db, id)
		if u.HasPartner() {
			t.Fatalf("user %d still partnered", id)
		}
		if u.TasksCreated+u.TasksCompleted+u.TasksReceived+u.TasksDeleted != 0 {
			t.Fatalf("user %d counters not reset: %+v", id, u)
		}
	}
	total, _ := repo.CountTasks(ctx, db, nil)
	if total != 0 {
		t.Fatalf("tasks left = %d", total)
	}
	if notes := n.notes(); len(notes) != 1 || notes[0].TelegramID != 200 {
		t.Fatalf("unexpected notifications: %+v", notes)
	}

	if _, err := svc.Dissolve(ctx, 100); !errors.Is(err, ErrNoPartner) {
		t.Fatalf("second dissolve: want ErrNoPartner, got %v", err)
	}
}

func TestDissolve_FailedNotificationKeepsDissolution(t *testing.T) {
	db := newTestDB(t)
	pairUsers(t, db, 100, 200)
	n := newFakeNotifier()
	n.ok = false
	svc := &PairingService{DB: db, Notifier: n}

	res, err := svc.Dissolve(context.Background(), 200)
	if err != nil {
		t.Fatalf("Dissolve: %v", err)
	}
	if res.Notified {
		t.Fatalf("Notified should be false")
	}
	if reloadUser(t, db, 100).HasPartner() {
		t.Fatalf("dissolution must hold despite the failed notification")
	}
}

func TestDissolve_AllowsRepairing(t *testing.T) {
	db := newTestDB(t)
	pairUsers(t, db, 100, 200)
	seedUser(t, db, 300, "Carol")
	svc := &PairingService{DB: db}
	ctx := context.Background()

	if _, err := svc.Dissolve(ctx, 100); err != nil {
		t.Fatalf("Dissolve: %v", err)
	}
	inv, err := svc.CreateInvite(ctx, 300)
	if err != nil {
		t.Fatalf("CreateInvite: %v", err)
	}
	if _, err := svc.AcceptInvite(ctx, inv.Code, 100); err != nil {
		t.Fatalf("re-pair: %v", err)
	}
	p, err := svc.Partner(ctx, 100)
	if err != nil || p.TelegramID != 300 {
		t.Fatalf("Partner = %+v, %v", p, err)
	}
	if _, err := svc.Partner(ctx, 200); !errors.Is(err, ErrNoPartner) {
		t.Fatalf("former partner: want ErrNoPartner, got %v", err)
	}
}

func TestNormalizeInviteCode(t *testing.T) {
	cases := map[string]string{
		" ab12c3 ": "AB12C3",
		"XyZ234":   "XYZ234",
		"":         "",
	}
	for in, want := range cases {
		if got := NormalizeInviteCode(in); got != want {
			t.Fatalf("NormalizeInviteCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUserLocks_SerialisesOverlappingKeys(t *testing.T) {
	var l userLocks
	var mu sync.Mutex
	inside := 0
	maxInside := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Every caller shares key 1, in varying argument order.
			keys := []int64{1, int64(i + 2)}
			if i%2 == 0 {
				keys = []int64{int64(i + 2), 1, 1}
			}
			unlock := l.Lock(keys...)
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}(i)
	}
	wg.Wait()

	if maxInside != 1 {
		t.Fatalf("max concurrent holders = %d, want 1", maxInside)
	}
	if len(l.locks) != 0 {
		t.Fatalf("lock entries leaked: %d", len(l.locks))
	}
}
