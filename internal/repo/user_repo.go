// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business rules, only persistence and query composition.
// Guarded updates (partner links, counters) report ErrConflict or
// ErrNotFound when they match no row so that the caller's transaction aborts
// instead of silently doing nothing.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-taskbuddy/internal/domain"
)

// Counter names a per-user counter column that can be incremented.
type Counter string

const (
	CounterTasksCreated      Counter = "tasks_created_count"
	CounterTasksCompleted    Counter = "tasks_completed_count"
	CounterTasksReceived     Counter = "tasks_received_count"
	CounterTasksDeleted      Counter = "tasks_deleted_count"
	CounterOneSignalSent     Counter = "onesignal_sent"
	CounterOneSignalReceived Counter = "onesignal_received"
)

// CreateUser inserts a new user. JoinedAt defaults to now (UTC) when unset.
func CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	if u.JoinedAt == nil {
		now := time.Now().UTC()
		u.JoinedAt = &now
	}
	err := db.WithContext(ctx).Create(u).Error
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetUserByTelegramID fetches a user by its external chat id.
func GetUserByTelegramID(ctx context.Context, db *gorm.DB, telegramID int64) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByID fetches a user by primary key.
func GetUserByID(ctx context.Context, db *gorm.DB, id uint) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByInviteCode fetches the holder of an exact invite code. Expiry is
// not checked here.
func GetUserByInviteCode(ctx context.Context, db *gorm.DB, code string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("invite_code = ?", code).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetPartner returns the user linked to u, or ErrNotFound when u is unpaired.
func GetPartner(ctx context.Context, db *gorm.DB, u *domain.User) (*domain.User, error) {
	if u == nil || u.PartnerID == nil {
		return nil, ErrNotFound
	}
	return GetUserByID(ctx, db, *u.PartnerID)
}

// UpdateUserProfile refreshes the handle and display name.
func UpdateUserProfile(ctx context.Context, db *gorm.DB, id uint, username, fullName string) error {
	return db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"username": username, "full_name": fullName}).Error
}

// SetInvite stores code and expiry on the user, replacing any previous code.
// It returns ErrDuplicate when another user already holds the same code.
func SetInvite(ctx context.Context, db *gorm.DB, userID uint, code string, expiresAt time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{"invite_code": code, "invite_expires": expiresAt})
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return ErrDuplicate
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// LinkPartner points userID at partnerID and clears userID's invite. The
// update only applies while userID is unpaired; otherwise ErrConflict.
func LinkPartner(ctx context.Context, db *gorm.DB, userID, partnerID uint) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ? AND partner_id IS NULL", userID).
		Updates(map[string]any{
			"partner_id":     partnerID,
			"invite_code":    nil,
			"invite_expires": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrConflict
	}
	return nil
}

// UnlinkPair clears both users' partner links and zeroes their four task
// counters. Both rows must currently point at each other; otherwise ErrConflict.
func UnlinkPair(ctx context.Context, db *gorm.DB, a, b uint) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("(id = ? AND partner_id = ?) OR (id = ? AND partner_id = ?)", a, b, b, a).
		Updates(map[string]any{
			"partner_id":                  nil,
			string(CounterTasksCreated):   0,
			string(CounterTasksCompleted): 0,
			string(CounterTasksReceived):  0,
			string(CounterTasksDeleted):   0,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 2 {
		return ErrConflict
	}
	return nil
}

// IncrementCounter adds delta to one counter column of userID in a single
// UPDATE. It returns ErrNotFound when the user row does not exist.
func IncrementCounter(ctx context.Context, db *gorm.DB, userID uint, c Counter, delta int) error {
	col := string(c)
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", userID).
		UpdateColumn(col, gorm.Expr(col+" + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrNotFound
	}
	return nil
}

// TouchActivity bumps total_messages and moves last_active_at forward to at
// (never backwards). It reports whether the user exists.
func TouchActivity(ctx context.Context, db *gorm.DB, telegramID int64, at time.Time) (bool, error) {
	found := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := GetUserByTelegramID(ctx, tx, telegramID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}
		found = true
		last := at
		if u.LastActiveAt != nil && u.LastActiveAt.After(at) {
			last = *u.LastActiveAt
		}
		return tx.Model(&domain.User{}).
			Where("id = ?", u.ID).
			UpdateColumns(map[string]any{
				"last_active_at": last,
				"total_messages": gorm.Expr("total_messages + 1"),
			}).Error
	})
	return found, err
}
