// Package services – StatsService
//
// This file implements the statistics aggregator. The application-wide
// AppStats row is always recomputed from scratch and overwritten, so it heals
// any drift in the per-operation counters. Per-user counters are a fast path
// for the chat screens only.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-taskbuddy/internal/domain"
	"github.com/tbourn/go-taskbuddy/internal/repo"
)

// DefaultActiveWindow is the trailing window that counts a user as active.
const DefaultActiveWindow = 7 * 24 * time.Hour

// Summary is the application-wide view derived from AppStats plus live counts.
type Summary struct {
	domain.AppStats

	// CompletionRate is completed/total tasks in percent (0 without tasks).
	CompletionRate float64 `json:"completion_rate"`
	// PartnerRate is partnered/total users in percent (0 without users).
	PartnerRate float64 `json:"partner_rate"`
	// PartneredUsers is a live count of users with a partner.
	PartneredUsers int64 `json:"partnered_users"`
	// PendingTasks is a live count of incomplete tasks.
	PendingTasks int64 `json:"pending_tasks"`
}

// UserCounters is one user's task counters with the derived completion rate.
type UserCounters struct {
	Name      string `json:"name"`
	Created   int    `json:"created"`
	Completed int    `json:"completed"`
	Received  int    `json:"received"`
	Deleted   int    `json:"deleted"`
	// CompletionRate is completed/received in percent (0 when nothing received).
	CompletionRate float64 `json:"completion_rate"`
}

// PairStats is the statistics screen of one user and their partner.
type PairStats struct {
	Me              UserCounters  `json:"me"`
	Partner         *UserCounters `json:"partner,omitempty"`
	PendingIncoming int           `json:"pending_incoming"`
	PendingOutgoing int           `json:"pending_outgoing"`
	// PairCreated is the number of tasks both partners created in total.
	PairCreated int `json:"pair_created"`
	// PairCompleted is the number of tasks both partners completed in total.
	PairCompleted int `json:"pair_completed"`
}

// StatsService records activity and maintains the AppStats aggregate.
type StatsService struct {
	DB *gorm.DB

	// ActiveWindow defaults to DefaultActiveWindow.
	ActiveWindow time.Duration
	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

func (s *StatsService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *StatsService) window() time.Duration {
	if s.ActiveWindow > 0 {
		return s.ActiveWindow
	}
	return DefaultActiveWindow
}

// RecordActivity moves the user's last_active_at forward to now and counts
// one more message. An unknown user is a silent no-op.
func (s *StatsService) RecordActivity(ctx context.Context, telegramID int64) error {
	_, err := repo.TouchActivity(ctx, s.DB, telegramID, s.now())
	return err
}

// Recompute recalculates every AppStats field and overwrites the singleton row.
func (s *StatsService) Recompute(ctx context.Context) (*domain.AppStats, error) {
	ctx, span := otel.Tracer("services/StatsService").Start(ctx, "Recompute")
	defer span.End()

	now := s.now()
	stats, err := repo.CollectAppStats(ctx, s.DB, now.Add(-s.window()))
	if err != nil {
		return nil, err
	}
	stats.UpdatedAt = now
	if err := repo.SaveAppStats(ctx, s.DB, &stats); err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.Int64("stats.total_users", stats.TotalUsers),
		attribute.Int64("stats.total_tasks", stats.TotalTasks),
	)
	zerolog.Ctx(ctx).Debug().
		Int64("total_users", stats.TotalUsers).
		Int64("active_users", stats.ActiveUsers).
		Int64("total_tasks", stats.TotalTasks).
		Msg("app stats recomputed")
	return &stats, nil
}

// TryRecompute runs Recompute and only logs a failure. It is used after
// mutations where stale statistics must not fail the user's request.
func (s *StatsService) TryRecompute(ctx context.Context) {
	if _, err := s.Recompute(ctx); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("app stats recompute failed")
	}
}

// Summary returns the derived application view. The AppStats row is computed
// first when it does not exist yet.
func (s *StatsService) Summary(ctx context.Context) (*Summary, error) {
	ctx, span := otel.Tracer("services/StatsService").Start(ctx, "Summary")
	defer span.End()

	stats, err := repo.GetAppStats(ctx, s.DB)
	if errors.Is(err, repo.ErrNotFound) {
		stats, err = s.Recompute(ctx)
	}
	if err != nil {
		return nil, err
	}

	partnered, err := repo.CountPartneredUsers(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	open := false
	pending, err := repo.CountTasks(ctx, s.DB, &open)
	if err != nil {
		return nil, err
	}

	return &Summary{
		AppStats:       *stats,
		CompletionRate: percent(stats.CompletedTasks, stats.TotalTasks),
		PartnerRate:    percent(partnered, stats.TotalUsers),
		PartneredUsers: partnered,
		PendingTasks:   pending,
	}, nil
}

// PairStats returns the user's counters, their partner's counters when
// paired, and the open task counts in each direction.
//
// Errors: ErrNotFound for an unknown user.
func (s *StatsService) PairStats(ctx context.Context, telegramID int64) (*PairStats, error) {
	ctx, span := otel.Tracer("services/StatsService").Start(ctx, "PairStats",
		trace.WithAttributes(attribute.Int64("user.telegram_id", telegramID)))
	defer span.End()

	u, partner, err := loadPair(ctx, s.DB, telegramID)
	if err != nil && !errors.Is(err, ErrNoPartner) {
		return nil, err
	}

	out := &PairStats{Me: countersOf(u, "You")}
	out.PairCreated, out.PairCompleted = u.TasksCreated, u.TasksCompleted
	if partner != nil {
		pc := countersOf(partner, partnerFallbackName)
		out.Partner = &pc
		out.PairCreated += partner.TasksCreated
		out.PairCompleted += partner.TasksCompleted
	}

	open := false
	incoming, err := repo.ListTasks(ctx, s.DB, repo.TaskFilter{AssignedToID: &u.ID, Completed: &open})
	if err != nil {
		return nil, err
	}
	outgoing, err := repo.ListTasks(ctx, s.DB, repo.TaskFilter{AssignedByID: &u.ID, Completed: &open})
	if err != nil {
		return nil, err
	}
	out.PendingIncoming, out.PendingOutgoing = len(incoming), len(outgoing)
	return out, nil
}

func countersOf(u *domain.User, fallback string) UserCounters {
	return UserCounters{
		Name:           u.DisplayName(fallback),
		Created:        u.TasksCreated,
		Completed:      u.TasksCompleted,
		Received:       u.TasksReceived,
		Deleted:        u.TasksDeleted,
		CompletionRate: percent(int64(u.TasksCompleted), int64(u.TasksReceived)),
	}
}

// percent returns part/whole*100, or 0 when whole is 0.
func percent(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
