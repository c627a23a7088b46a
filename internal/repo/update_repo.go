// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file records processed Telegram update ids so that
// webhook redeliveries are dropped.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-taskbuddy/internal/domain"
)

// ClaimUpdate records updateID as processed and reports whether this call
// claimed it. A second claim for the same id within ttl returns false. An
// expired record is taken over and the claim succeeds again.
func ClaimUpdate(ctx context.Context, db *gorm.DB, updateID int64, now time.Time, ttl time.Duration) (bool, error) {
	rec := domain.ProcessedUpdate{
		UpdateID:    updateID,
		ProcessedAt: now,
		ExpiresAt:   now.Add(ttl),
	}
	claimed := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			claimed = true
			return nil
		}
		// Existing row: take it over only once it has expired.
		res = tx.Model(&domain.ProcessedUpdate{}).
			Where("update_id = ? AND expires_at <= ?", updateID, now).
			Updates(map[string]any{"processed_at": rec.ProcessedAt, "expires_at": rec.ExpiresAt})
		if res.Error != nil {
			return res.Error
		}
		claimed = res.RowsAffected == 1
		return nil
	})
	return claimed, err
}

// ReleaseUpdate forgets updateID so that a redelivery is claimed again. It is
// used when processing a claimed update did not complete.
func ReleaseUpdate(ctx context.Context, db *gorm.DB, updateID int64) error {
	return db.WithContext(ctx).Where("update_id = ?", updateID).Delete(&domain.ProcessedUpdate{}).Error
}

// PurgeExpiredUpdates deletes records that expired at or before now and
// returns how many were removed.
func PurgeExpiredUpdates(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.ProcessedUpdate{})
	return res.RowsAffected, res.Error
}
