// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Task model.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-taskbuddy/internal/domain"
)

// TaskFilter narrows ListTasks. Nil fields are ignored.
type TaskFilter struct {
	AssignedByID *uint
	AssignedToID *uint
	Completed    *bool
}

// CreateTask inserts a new task. CreatedAt defaults to now (UTC) when zero.
func CreateTask(ctx context.Context, db *gorm.DB, t *domain.Task) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(t).Error
}

// GetTask fetches a task by primary key.
func GetTask(ctx context.Context, db *gorm.DB, id uint) (*domain.Task, error) {
	var t domain.Task
	if err := db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// MarkTaskCompleted flips an incomplete task to completed and stamps
// completed_at. It returns ErrConflict when the task is already completed or
// no longer exists.
func MarkTaskCompleted(ctx context.Context, db *gorm.DB, id uint, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Task{}).
		Where("id = ? AND completed = ?", id, false).
		Updates(map[string]any{"completed": true, "completed_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrConflict
	}
	return nil
}

// DeleteTask removes a task by id. It returns ErrNotFound when nothing was deleted.
func DeleteTask(ctx context.Context, db *gorm.DB, id uint) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Task{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTasks returns tasks matching f, oldest first.
func ListTasks(ctx context.Context, db *gorm.DB, f TaskFilter) ([]domain.Task, error) {
	q := db.WithContext(ctx).Model(&domain.Task{})
	if f.AssignedByID != nil {
		q = q.Where("assigned_by_id = ?", *f.AssignedByID)
	}
	if f.AssignedToID != nil {
		q = q.Where("assigned_to_id = ?", *f.AssignedToID)
	}
	if f.Completed != nil {
		q = q.Where("completed = ?", *f.Completed)
	}
	var out []domain.Task
	if err := q.Order("created_at ASC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// DeletePairTasks removes every task created by or assigned to either user
// and returns the number of rows deleted.
func DeletePairTasks(ctx context.Context, db *gorm.DB, a, b uint) (int64, error) {
	res := db.WithContext(ctx).
		Where("assigned_by_id IN ? OR assigned_to_id IN ?", []uint{a, b}, []uint{a, b}).
		Delete(&domain.Task{})
	return res.RowsAffected, res.Error
}
