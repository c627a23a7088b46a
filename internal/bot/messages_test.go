package bot

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/go-taskbuddy/internal/domain"
	"github.com/tbourn/go-taskbuddy/internal/services"
)

func TestErrorText_DistinctPerFailure(t *testing.T) {
	seen := map[string]error{}
	for _, r := range rejections {
		got := errorText(fmt.Errorf("wrapped: %w", r.err))
		if got == storageErrorText {
			t.Fatalf("%v fell through to the storage message", r.err)
		}
		if prev, dup := seen[got]; dup {
			t.Fatalf("%v and %v share a message", prev, r.err)
		}
		seen[got] = r.err
		if rejectionReason(r.err) != r.reason {
			t.Fatalf("reason for %v = %q", r.err, rejectionReason(r.err))
		}
	}
	if got := errorText(fmt.Errorf("disk full")); got != storageErrorText {
		t.Fatalf("storage error text = %q", got)
	}
	if rejectionReason(fmt.Errorf("disk full")) != "internal" {
		t.Fatal("storage failures are internal")
	}
}

func TestShortTitle(t *testing.T) {
	if got := shortTitle("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
	if got := shortTitle("абвгдеёжзий", 5); got != "абвг…" {
		t.Fatalf("got %q", got)
	}
}

func TestBoardText_EscapesAndEmpty(t *testing.T) {
	partner := &domain.User{FullName: "Ann <admin>"}
	empty := boardText(&services.Board{Partner: partner})
	if !strings.Contains(empty, "Ann &lt;admin&gt;") || !strings.Contains(empty, "/newtask") {
		t.Fatalf("empty board = %q", empty)
	}

	now := time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC)
	b := &services.Board{
		Partner:  partner,
		Incoming: []domain.Task{{Title: "a & b", Description: "x", CreatedAt: now}},
	}
	got := boardText(b)
	for _, want := range []string{"a &amp; b", "📝 x", "02.01.2025 03:04", "(0):\nnone"} {
		if !strings.Contains(got, want) {
			t.Fatalf("board missing %q:\n%s", want, got)
		}
	}
}

func TestInviteText_NoUsername(t *testing.T) {
	inv := &services.Invite{Code: "ABC234", ExpiresAt: time.Date(2025, 5, 6, 7, 8, 0, 0, time.UTC)}
	got := inviteText(inv, "")
	if strings.Contains(got, "t.me") || !strings.Contains(got, "06.05.2025 07:08") {
		t.Fatalf("invite = %q", got)
	}
}

func TestDialogs_Expire(t *testing.T) {
	d := newDialogs(time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	d.set(1, dialog{step: stepTitle})
	if _, ok := d.get(1); !ok {
		t.Fatal("fresh dialog missing")
	}
	now = now.Add(2 * time.Minute)
	if _, ok := d.get(1); ok {
		t.Fatal("stale dialog returned")
	}
	d.set(2, dialog{step: stepDescription, title: "x"})
	now = now.Add(2 * time.Minute)
	if d.clear(2) {
		t.Fatal("clear should not report a stale dialog as active")
	}
}

func TestDialogs_SweepDropsIdleEntries(t *testing.T) {
	d := newDialogs(time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	d.set(1, dialog{step: stepTitle})
	d.set(2, dialog{step: stepInviteCode})
	now = now.Add(30 * time.Second)
	d.set(3, dialog{step: stepTitle})
	now = now.Add(45 * time.Second)

	if n := d.sweep(); n != 2 || d.len() != 1 {
		t.Fatalf("sweep removed %d, left %d", n, d.len())
	}
	if _, ok := d.get(3); !ok {
		t.Fatal("fresh dialog swept")
	}

	// Nobody reads users 3 and 4 again; the next set after a ttl prunes them.
	d.set(4, dialog{step: stepTitle})
	now = now.Add(2 * time.Minute)
	d.set(5, dialog{step: stepTitle})
	if d.len() != 1 {
		t.Fatalf("set should prune idle entries, left %d", d.len())
	}
	if _, ok := d.get(5); !ok {
		t.Fatal("new dialog missing")
	}
}
