// Package services – PairingService
//
// This file implements the invite/pairing engine. A user obtains a short
// invite code, a second user redeems it, and both become each other's only
// partner. Dissolving a partnership wipes the pair's tasks and resets their
// task counters.
//
// Every mutation runs in one transaction and uses guarded updates, so a code
// is redeemed at most once even when two updates race. Process-local per-user
// locks serialise concurrent webhook deliveries for the same users.
package services

import (
	"context"
	"crypto/rand"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-taskbuddy/internal/domain"
	"github.com/tbourn/go-taskbuddy/internal/repo"
)

const (
	// InviteAlphabet omits characters that are easy to confuse (0/O, 1/I).
	InviteAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	// InviteCodeLen is the fixed length of generated invite codes.
	InviteCodeLen = 6
	// DefaultInviteTTL applies when PairingService.InviteTTL is not set.
	DefaultInviteTTL = 24 * time.Hour

	inviteAttempts = 5
)

// locks is shared by every service in the process.
var locks userLocks

// Invite is a freshly issued invite code.
type Invite struct {
	Code      string
	ExpiresAt time.Time
}

// PairResult describes a successful redemption.
type PairResult struct {
	// User is the accepting user after linking.
	User *domain.User
	// Partner is the inviter the user is now linked with.
	Partner *domain.User
	// Message is the confirmation shown to the accepting user.
	Message string
	// Notified reports whether the inviter was told about the new link.
	Notified bool
}

// DissolveResult describes a dissolved partnership.
type DissolveResult struct {
	FormerPartner *domain.User
	TasksDeleted  int64
	Notified      bool
}

// PairingService issues and redeems invite codes and dissolves partnerships.
type PairingService struct {
	DB       *gorm.DB
	Notifier Notifier

	// InviteTTL is the lifetime of issued codes.
	InviteTTL time.Duration
	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

func (s *PairingService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *PairingService) ttl() time.Duration {
	if s.InviteTTL > 0 {
		return s.InviteTTL
	}
	return DefaultInviteTTL
}

// CreateInvite issues a new code for the user, replacing any previous one.
//
// Errors:
//   - ErrNotFound when the user is unknown.
//   - ErrAlreadyPartnered when the user already has a partner.
func (s *PairingService) CreateInvite(ctx context.Context, telegramID int64) (*Invite, error) {
	ctx, span := otel.Tracer("services/PairingService").Start(ctx, "CreateInvite",
		trace.WithAttributes(attribute.Int64("user.telegram_id", telegramID)))
	defer span.End()

	unlock := locks.Lock(telegramID)
	defer unlock()

	u, err := repo.GetUserByTelegramID(ctx, s.DB, telegramID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if u.HasPartner() {
		return nil, ErrAlreadyPartnered
	}

	expires := s.now().Add(s.ttl())
	for attempt := 0; attempt < inviteAttempts; attempt++ {
		code, err := newInviteCode()
		if err != nil {
			return nil, err
		}
		err = repo.SetInvite(ctx, s.DB, u.ID, code, expires)
		if errors.Is(err, repo.ErrDuplicate) {
			zerolog.Ctx(ctx).Debug().Int("attempt", attempt).Msg("invite code collision, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}
		return &Invite{Code: code, ExpiresAt: expires}, nil
	}
	return nil, errors.New("could not allocate a unique invite code")
}

// AcceptInvite redeems code on behalf of the user identified by telegramID.
//
// The code is trimmed and upper-cased first. Checks run in this order:
//   - ErrInvalidOrExpired: nobody holds the code, or its expiry is not
//     strictly after now.
//   - ErrAlreadyPartnered: the inviter is already paired.
//   - ErrSelfInvite: the accepting user holds the code.
//   - ErrNotFound: the accepting user is unknown.
//   - ErrAlreadyPartnered: the accepting user is already paired.
//
// On success both partner links are set and both users' pending codes are
// cleared in one transaction. The inviter is then notified best-effort.
func (s *PairingService) AcceptInvite(ctx context.Context, code string, telegramID int64) (*PairResult, error) {
	ctx, span := otel.Tracer("services/PairingService").Start(ctx, "AcceptInvite",
		trace.WithAttributes(attribute.Int64("user.telegram_id", telegramID)))
	defer span.End()

	code = NormalizeInviteCode(code)
	if code == "" {
		return nil, ErrInvalidOrExpired
	}

	holder, err := repo.GetUserByInviteCode(ctx, s.DB, code)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidOrExpired
		}
		return nil, err
	}

	unlock := locks.Lock(holder.TelegramID, telegramID)
	defer unlock()

	var inviter, accepter *domain.User
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Re-read under the lock: the code may have been redeemed meanwhile.
		inv, err := repo.GetUserByInviteCode(ctx, tx, code)
		if err != nil {
			if isNotFound(err) {
				return ErrInvalidOrExpired
			}
			return err
		}
		if inv.InviteExpiresAt == nil || !inv.InviteExpiresAt.After(s.now()) {
			return ErrInvalidOrExpired
		}
		if inv.HasPartner() {
			return ErrAlreadyPartnered
		}
		if inv.TelegramID == telegramID {
			return ErrSelfInvite
		}

		acc, err := repo.GetUserByTelegramID(ctx, tx, telegramID)
		if err != nil {
			if isNotFound(err) {
				return ErrNotFound
			}
			return err
		}
		if acc.HasPartner() {
			return ErrAlreadyPartnered
		}

		if err := repo.LinkPartner(ctx, tx, inv.ID, acc.ID); err != nil {
			if errors.Is(err, repo.ErrConflict) {
				return ErrAlreadyPartnered
			}
			return err
		}
		if err := repo.LinkPartner(ctx, tx, acc.ID, inv.ID); err != nil {
			if errors.Is(err, repo.ErrConflict) {
				return ErrAlreadyPartnered
			}
			return err
		}

		inv.PartnerID, acc.PartnerID = &acc.ID, &inv.ID
		inv.InviteCode, inv.InviteExpiresAt = nil, nil
		acc.InviteCode, acc.InviteExpiresAt = nil, nil
		inviter, accepter = inv, acc
		return nil
	})
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Uint("inviter_id", inviter.ID).
		Uint("accepter_id", accepter.ID).
		Msg("partnership created")

	notified := notifierOrNop(s.Notifier).Notify(ctx, inviter.TelegramID, partnerConnectedText(accepter))
	return &PairResult{
		User:     accepter,
		Partner:  inviter,
		Message:  "✅ You are now connected with " + esc(inviter.DisplayName(partnerFallbackName)) + "!\n\nYou can now exchange tasks.",
		Notified: notified,
	}, nil
}

// Dissolve ends the user's partnership. Every task created by or assigned to
// either partner is deleted, both users' task counters are reset and both
// partner links are cleared atomically. The former partner is notified
// best-effort; a failed notification never rolls the dissolution back.
//
// Errors: ErrNotFound for an unknown user, ErrNoPartner when unpaired.
func (s *PairingService) Dissolve(ctx context.Context, telegramID int64) (*DissolveResult, error) {
	ctx, span := otel.Tracer("services/PairingService").Start(ctx, "Dissolve",
		trace.WithAttributes(attribute.Int64("user.telegram_id", telegramID)))
	defer span.End()

	u, partner, err := loadPair(ctx, s.DB, telegramID)
	if err != nil {
		return nil, err
	}

	unlock := locks.Lock(u.TelegramID, partner.TelegramID)
	defer unlock()

	var deleted int64
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, curPartner, err := loadPair(ctx, tx, telegramID)
		if err != nil {
			return err
		}
		if curPartner.ID != partner.ID {
			// Re-paired with someone else between the read and the lock.
			return ErrNoPartner
		}
		if deleted, err = repo.DeletePairTasks(ctx, tx, cur.ID, curPartner.ID); err != nil {
			return err
		}
		if err := repo.UnlinkPair(ctx, tx, cur.ID, curPartner.ID); err != nil {
			if errors.Is(err, repo.ErrConflict) {
				return ErrNoPartner
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Uint("user_id", u.ID).
		Uint("partner_id", partner.ID).
		Int64("tasks_deleted", deleted).
		Msg("partnership dissolved")

	partner.PartnerID = nil
	notified := notifierOrNop(s.Notifier).Notify(ctx, partner.TelegramID, partnerLeftText(u))
	return &DissolveResult{FormerPartner: partner, TasksDeleted: deleted, Notified: notified}, nil
}

// Partner returns the user's current partner.
//
// Errors: ErrNotFound for an unknown user, ErrNoPartner when unpaired.
func (s *PairingService) Partner(ctx context.Context, telegramID int64) (*domain.User, error) {
	_, p, err := loadPair(ctx, s.DB, telegramID)
	return p, err
}

// loadPair fetches the user and its partner, mapping repo errors.
func loadPair(ctx context.Context, db *gorm.DB, telegramID int64) (*domain.User, *domain.User, error) {
	u, err := repo.GetUserByTelegramID(ctx, db, telegramID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	if !u.HasPartner() {
		return u, nil, ErrNoPartner
	}
	p, err := repo.GetPartner(ctx, db, u)
	if err != nil {
		if isNotFound(err) {
			return u, nil, ErrNoPartner
		}
		return nil, nil, err
	}
	return u, p, nil
}

// NormalizeInviteCode trims surrounding whitespace and upper-cases the code.
func NormalizeInviteCode(code string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(code))
}

// newInviteCode draws InviteCodeLen characters from InviteAlphabet. The
// alphabet has 32 symbols, so reducing a random byte modulo 32 is unbiased.
func newInviteCode() (string, error) {
	buf := make([]byte, InviteCodeLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = InviteAlphabet[int(b)%len(InviteAlphabet)]
	}
	return string(buf), nil
}
