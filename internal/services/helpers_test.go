package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-taskbuddy/internal/domain"
	"github.com/tbourn/go-taskbuddy/internal/repo"
)

// newTestDB opens a private in-memory database with the full schema. A single
// connection keeps concurrent tests free of shared-cache table locks.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:svc_%s_%s?mode=memory&cache=shared", name, uuid.NewString())

	db, err := repo.OpenSQLite(dsn, repo.OpenOptions{Quiet: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, telegramID int64, name string) *domain.User {
	t.Helper()
	u := &domain.User{TelegramID: telegramID, FullName: name}
	if err := repo.CreateUser(context.Background(), db, u); err != nil {
		t.Fatalf("seed user %d: %v", telegramID, err)
	}
	return u
}

func reloadUser(t *testing.T, db *gorm.DB, telegramID int64) *domain.User {
	t.Helper()
	u, err := repo.GetUserByTelegramID(context.Background(), db, telegramID)
	if err != nil {
		t.Fatalf("reload user %d: %v", telegramID, err)
	}
	return u
}

// pairUsers seeds two users and links them through an invite.
func pairUsers(t *testing.T, db *gorm.DB, a, b int64) (*domain.User, *domain.User) {
	t.Helper()
	seedUser(t, db, a, fmt.Sprintf("User %d", a))
	seedUser(t, db, b, fmt.Sprintf("User %d", b))

	svc := &PairingService{DB: db}
	inv, err := svc.CreateInvite(context.Background(), a)
	if err != nil {
		t.Fatalf("CreateInvite: %v", err)
	}
	if _, err := svc.AcceptInvite(context.Background(), inv.Code, b); err != nil {
		t.Fatalf("AcceptInvite: %v", err)
	}
	return reloadUser(t, db, a), reloadUser(t, db, b)
}

type sentNote struct {
	TelegramID int64
	Text       string
}

// fakeNotifier records every notification and answers with ok.
type fakeNotifier struct {
	mu   sync.Mutex
	ok   bool
	sent []sentNote
}

func newFakeNotifier() *fakeNotifier { return &fakeNotifier{ok: true} }

func (f *fakeNotifier) Notify(_ context.Context, telegramID int64, text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNote{TelegramID: telegramID, Text: text})
	return f.ok
}

func (f *fakeNotifier) notes() []sentNote {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentNote(nil), f.sent...)
}

// fixedClock returns a settable clock for services' Now field.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *fixedClock { return &fixedClock{t: t.UTC()} }

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t.UTC()
	c.mu.Unlock()
}
