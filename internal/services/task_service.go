// Package services – TaskService
//
// This file implements the task lifecycle engine: a paired user assigns a
// short task to their partner, the partner completes it, and the creator may
// delete it. Each transition updates the per-user counters in the same
// transaction as the task row itself. Counter updates that match no row abort
// the transaction. The other party is then notified best-effort.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/tbourn/go-taskbuddy/internal/domain"
	"github.com/tbourn/go-taskbuddy/internal/repo"
)

const (
	// MinTitleRunes is the minimum trimmed title length.
	MinTitleRunes = 3
	// MaxTitleRunes matches the width of the title column.
	MaxTitleRunes = 255
)

// Board is a user's view of open work.
type Board struct {
	User    *domain.User
	Partner *domain.User // nil when unpaired
	// Outgoing are incomplete tasks the user created.
	Outgoing []domain.Task
	// Incoming are incomplete tasks assigned to the user.
	Incoming []domain.Task
}

// TaskService manages task creation, completion, deletion and listing.
type TaskService struct {
	DB       *gorm.DB
	Notifier Notifier

	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

func (s *TaskService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Create assigns a new task from the user to their partner.
//
// Title and description are NFC-normalised and trimmed; whitespace runs in
// the title are collapsed.
//
// Errors:
//   - ErrTitleTooShort / ErrTitleTooLong for titles outside the allowed length.
//   - ErrNotFound when the creator is unknown.
//   - ErrNoPartner when the creator is unpaired.
func (s *TaskService) Create(ctx context.Context, creatorTelegramID int64, title, description string) (*domain.Task, error) {
	ctx, span := otel.Tracer("services/TaskService").Start(ctx, "Create",
		trace.WithAttributes(attribute.Int64("user.telegram_id", creatorTelegramID)))
	defer span.End()

	title, err := ValidateTitle(title)
	if err != nil {
		return nil, err
	}
	description = strings.TrimSpace(norm.NFC.String(description))

	creator, partner, err := loadPair(ctx, s.DB, creatorTelegramID)
	if err != nil {
		return nil, err
	}

	unlock := locks.Lock(creator.TelegramID, partner.TelegramID)
	defer unlock()

	task := &domain.Task{
		Title:        title,
		Description:  description,
		AssignedByID: creator.ID,
		AssignedToID: partner.ID,
		CreatedAt:    s.now(),
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The partnership must still hold once the lock is ours.
		cur, curPartner, err := loadPair(ctx, tx, creatorTelegramID)
		if err != nil {
			return err
		}
		if curPartner.ID != partner.ID {
			return ErrNoPartner
		}
		creator, partner = cur, curPartner

		if err := repo.CreateTask(ctx, tx, task); err != nil {
			return err
		}
		if err := repo.IncrementCounter(ctx, tx, creator.ID, repo.CounterTasksCreated, 1); err != nil {
			return err
		}
		if err := repo.IncrementCounter(ctx, tx, partner.ID, repo.CounterTasksReceived, 1); err != nil {
			return err
		}
		creator.TasksCreated++
		partner.TasksReceived++
		return nil
	})
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().Uint("task_id", task.ID).Uint("assigned_to", partner.ID).Msg("task created")
	notifierOrNop(s.Notifier).Notify(ctx, partner.TelegramID, taskAssignedText(creator, task, task.CreatedAt))
	return task, nil
}

// Complete marks the task completed on behalf of its assignee and notifies
// the creator.
//
// Errors: ErrTaskNotFound, ErrNotFound (unknown actor), ErrNotAssignee,
// ErrAlreadyCompleted.
func (s *TaskService) Complete(ctx context.Context, taskID uint, actorTelegramID int64) (*domain.Task, error) {
	ctx, span := otel.Tracer("services/TaskService").Start(ctx, "Complete",
		trace.WithAttributes(
			attribute.Int64("task.id", int64(taskID)),
			attribute.Int64("user.telegram_id", actorTelegramID),
		))
	defer span.End()

	unlock := locks.Lock(actorTelegramID)
	defer unlock()

	var task *domain.Task
	var actor *domain.User
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, a, err := loadTaskAndActor(ctx, tx, taskID, actorTelegramID)
		if err != nil {
			return err
		}
		if t.AssignedToID != a.ID {
			return ErrNotAssignee
		}
		if t.Completed {
			return ErrAlreadyCompleted
		}

		at := s.now()
		if err := repo.MarkTaskCompleted(ctx, tx, t.ID, at); err != nil {
			if errors.Is(err, repo.ErrConflict) {
				return ErrAlreadyCompleted
			}
			return err
		}
		if err := repo.IncrementCounter(ctx, tx, a.ID, repo.CounterTasksCompleted, 1); err != nil {
			return err
		}
		t.Completed, t.CompletedAt = true, &at
		task, actor = t, a
		return nil
	})
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().Uint("task_id", task.ID).Msg("task completed")
	s.notifyUser(ctx, task.AssignedByID, taskCompletedText(actor, task))
	return task, nil
}

// Delete removes a task on behalf of its creator and notifies the assignee.
// Completed tasks may be deleted as well.
//
// Errors: ErrTaskNotFound, ErrNotFound (unknown actor), ErrNotCreator.
func (s *TaskService) Delete(ctx context.Context, taskID uint, actorTelegramID int64) (*domain.Task, error) {
	ctx, span := otel.Tracer("services/TaskService").Start(ctx, "Delete",
		trace.WithAttributes(
			attribute.Int64("task.id", int64(taskID)),
			attribute.Int64("user.telegram_id", actorTelegramID),
		))
	defer span.End()

	unlock := locks.Lock(actorTelegramID)
	defer unlock()

	var task *domain.Task
	var actor *domain.User
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, a, err := loadTaskAndActor(ctx, tx, taskID, actorTelegramID)
		if err != nil {
			return err
		}
		if t.AssignedByID != a.ID {
			return ErrNotCreator
		}
		if err := repo.DeleteTask(ctx, tx, t.ID); err != nil {
			if isNotFound(err) {
				return ErrTaskNotFound
			}
			return err
		}
		if err := repo.IncrementCounter(ctx, tx, t.AssignedByID, repo.CounterTasksDeleted, 1); err != nil {
			return err
		}
		task, actor = t, a
		return nil
	})
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().Uint("task_id", task.ID).Msg("task deleted")
	s.notifyUser(ctx, task.AssignedToID, taskDeletedText(actor, task))
	return task, nil
}

// List returns the user's incomplete outgoing and incoming tasks, oldest
// first, together with the current partner. Completed tasks are omitted.
//
// Errors: ErrNotFound for an unknown user.
func (s *TaskService) List(ctx context.Context, telegramID int64) (*Board, error) {
	ctx, span := otel.Tracer("services/TaskService").Start(ctx, "List",
		trace.WithAttributes(attribute.Int64("user.telegram_id", telegramID)))
	defer span.End()

	u, partner, err := loadPair(ctx, s.DB, telegramID)
	if err != nil && !errors.Is(err, ErrNoPartner) {
		return nil, err
	}

	open := false
	board := &Board{User: u, Partner: partner}
	if board.Outgoing, err = repo.ListTasks(ctx, s.DB, repo.TaskFilter{AssignedByID: &u.ID, Completed: &open}); err != nil {
		return nil, err
	}
	if board.Incoming, err = repo.ListTasks(ctx, s.DB, repo.TaskFilter{AssignedToID: &u.ID, Completed: &open}); err != nil {
		return nil, err
	}
	return board, nil
}

// Get returns a task by id.
func (s *TaskService) Get(ctx context.Context, taskID uint) (*domain.Task, error) {
	t, err := repo.GetTask(ctx, s.DB, taskID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return t, nil
}

// notifyUser resolves the internal user id to a chat id and sends text.
func (s *TaskService) notifyUser(ctx context.Context, userID uint, text string) bool {
	u, err := repo.GetUserByID(ctx, s.DB, userID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Uint("user_id", userID).Msg("notification recipient lookup failed")
		return false
	}
	return notifierOrNop(s.Notifier).Notify(ctx, u.TelegramID, text)
}

func loadTaskAndActor(ctx context.Context, db *gorm.DB, taskID uint, actorTelegramID int64) (*domain.Task, *domain.User, error) {
	t, err := repo.GetTask(ctx, db, taskID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil, ErrTaskNotFound
		}
		return nil, nil, err
	}
	a, err := repo.GetUserByTelegramID(ctx, db, actorTelegramID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	return t, a, nil
}

// ValidateTitle normalises a task title and checks its length.
func ValidateTitle(title string) (string, error) {
	title = normalizeText(title)
	n := utf8.RuneCountInString(title)
	switch {
	case n < MinTitleRunes:
		return "", ErrTitleTooShort
	case n > MaxTitleRunes:
		return "", ErrTitleTooLong
	}
	return title, nil
}

// normalizeText applies NFC, trims, and collapses whitespace runs to one space.
func normalizeText(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(norm.NFC.String(s)), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
