// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides aggregate queries: the application-wide
// statistics row and the read-only row sets behind the report datasets.
//
// Timestamps are returned raw and bucketed by the caller. Grouping by day in
// SQL would depend on how the driver serialises time values.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-taskbuddy/internal/domain"
)

// CollectAppStats recomputes every AppStats field from the users and tasks
// tables. Users whose last_active_at is at or after activeSince count as active.
// The returned row carries ID=AppStatsID and a zero UpdatedAt.
func CollectAppStats(ctx context.Context, db *gorm.DB, activeSince time.Time) (domain.AppStats, error) {
	s := domain.AppStats{ID: domain.AppStatsID}
	q := db.WithContext(ctx)

	if err := q.Model(&domain.User{}).Count(&s.TotalUsers).Error; err != nil {
		return s, err
	}
	if err := q.Model(&domain.User{}).
		Where("last_active_at IS NOT NULL AND last_active_at >= ?", activeSince).
		Count(&s.ActiveUsers).Error; err != nil {
		return s, err
	}
	if err := q.Model(&domain.Task{}).Count(&s.TotalTasks).Error; err != nil {
		return s, err
	}
	if err := q.Model(&domain.Task{}).Where("completed = ?", true).Count(&s.CompletedTasks).Error; err != nil {
		return s, err
	}

	var sent struct{ Total int64 }
	if err := q.Model(&domain.User{}).
		Select("COALESCE(SUM(onesignal_sent), 0) AS total").
		Scan(&sent).Error; err != nil {
		return s, err
	}
	s.OneSignalNotificationsTotal = sent.Total
	return s, nil
}

// GetAppStats loads the singleton statistics row. It returns ErrNotFound
// before the first recomputation.
func GetAppStats(ctx context.Context, db *gorm.DB) (*domain.AppStats, error) {
	var s domain.AppStats
	if err := db.WithContext(ctx).Where("id = ?", domain.AppStatsID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveAppStats overwrites the singleton statistics row, inserting it on first use.
func SaveAppStats(ctx context.Context, db *gorm.DB, s *domain.AppStats) error {
	s.ID = domain.AppStatsID
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"total_users", "active_users", "total_tasks", "completed_tasks",
				"onesignal_notifications_total", "updated_at",
			}),
		}).
		Create(s).Error
}

// CountPartneredUsers counts users with a partner link.
func CountPartneredUsers(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.User{}).Where("partner_id IS NOT NULL").Count(&n).Error
	return n, err
}

// CountUsers counts all users.
func CountUsers(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.User{}).Count(&n).Error
	return n, err
}

// CountTasks counts tasks, optionally restricted to one completion state.
func CountTasks(ctx context.Context, db *gorm.DB, completed *bool) (int64, error) {
	var n int64
	q := db.WithContext(ctx).Model(&domain.Task{})
	if completed != nil {
		q = q.Where("completed = ?", *completed)
	}
	err := q.Count(&n).Error
	return n, err
}

// ListJoinTimes returns every known joined_at, oldest first.
func ListJoinTimes(ctx context.Context, db *gorm.DB) ([]time.Time, error) {
	var rows []struct{ JoinedAt time.Time }
	err := db.WithContext(ctx).Model(&domain.User{}).
		Select("joined_at").
		Where("joined_at IS NOT NULL").
		Order("joined_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, len(rows))
	for i, r := range rows {
		out[i] = r.JoinedAt
	}
	return out, nil
}

// ListLastActiveTimes returns last_active_at of users active at or after since.
func ListLastActiveTimes(ctx context.Context, db *gorm.DB, since time.Time) ([]time.Time, error) {
	var rows []struct{ LastActiveAt time.Time }
	err := db.WithContext(ctx).Model(&domain.User{}).
		Select("last_active_at").
		Where("last_active_at IS NOT NULL AND last_active_at >= ?", since).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, len(rows))
	for i, r := range rows {
		out[i] = r.LastActiveAt
	}
	return out, nil
}

// TaskStamp is the creation time and state of one task.
type TaskStamp struct {
	CreatedAt time.Time
	Completed bool
}

// ListTaskStamps returns creation time and completion state of every task,
// oldest first.
func ListTaskStamps(ctx context.Context, db *gorm.DB) ([]TaskStamp, error) {
	var out []TaskStamp
	err := db.WithContext(ctx).Model(&domain.Task{}).
		Select("created_at, completed").
		Order("created_at ASC, id ASC").
		Scan(&out).Error
	return out, err
}

// TopProducers returns up to limit users ranked by tasks created plus tasks
// completed. Users with neither are skipped.
func TopProducers(ctx context.Context, db *gorm.DB, limit int) ([]domain.User, error) {
	var out []domain.User
	err := db.WithContext(ctx).
		Where("tasks_created_count + tasks_completed_count > 0").
		Order("tasks_created_count + tasks_completed_count DESC, id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
