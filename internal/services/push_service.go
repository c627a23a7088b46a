// Package services – PushService
//
// This file implements web push reminders. A creator can remind their
// partner about an open task through the push provider. Push is optional:
// without credentials every call returns ErrPushDisabled and the core
// pairing and task flows are unaffected.
package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-taskbuddy/internal/domain"
	"github.com/tbourn/go-taskbuddy/internal/repo"
)

// PushMessage is one web push notification addressed by external user ids.
type PushMessage struct {
	Heading         string
	Content         string
	ExternalUserIDs []string
	Data            map[string]string
}

// PushSender is the push provider contract.
type PushSender interface {
	// Configured reports whether credentials are present.
	Configured() bool
	// Send delivers msg in a single attempt.
	Send(ctx context.Context, msg PushMessage) error
	// AppInfo returns the provider's description of the configured app.
	AppInfo(ctx context.Context) (map[string]any, error)
}

// PushStatus describes the push integration for the status endpoint.
type PushStatus struct {
	Configured bool           `json:"configured"`
	App        map[string]any `json:"app,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// PushService sends task reminders via web push.
type PushService struct {
	DB     *gorm.DB
	Sender PushSender
}

func (s *PushService) enabled() bool {
	return s.Sender != nil && s.Sender.Configured()
}

// RemindTask pushes a reminder about an open task to its assignee. Only the
// task's creator may send it. On success the sender's and recipient's push
// counters are bumped best-effort.
//
// Errors: ErrPushDisabled, ErrTaskNotFound, ErrNotFound (unknown actor),
// ErrNotCreator, ErrAlreadyCompleted, ErrPushFailed.
func (s *PushService) RemindTask(ctx context.Context, taskID uint, actorTelegramID int64) (*domain.Task, error) {
	ctx, span := otel.Tracer("services/PushService").Start(ctx, "RemindTask",
		trace.WithAttributes(
			attribute.Int64("task.id", int64(taskID)),
			attribute.Int64("user.telegram_id", actorTelegramID),
		))
	defer span.End()

	if !s.enabled() {
		return nil, ErrPushDisabled
	}

	task, actor, err := loadTaskAndActor(ctx, s.DB, taskID, actorTelegramID)
	if err != nil {
		return nil, err
	}
	if task.AssignedByID != actor.ID {
		return nil, ErrNotCreator
	}
	if task.Completed {
		return nil, ErrAlreadyCompleted
	}
	assignee, err := repo.GetUserByID(ctx, s.DB, task.AssignedToID)
	if err != nil {
		return nil, err
	}

	msg := PushMessage{
		Heading:         "📋 Task from " + actor.DisplayName(partnerFallbackName),
		Content:         task.Title,
		ExternalUserIDs: []string{strconv.FormatInt(assignee.TelegramID, 10)},
		Data: map[string]string{
			"type":    "task_reminder",
			"task_id": strconv.FormatUint(uint64(task.ID), 10),
		},
	}
	if err := s.Sender.Send(ctx, msg); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Uint("task_id", task.ID).Msg("push reminder failed")
		return nil, fmt.Errorf("%w: %v", ErrPushFailed, err)
	}

	for _, c := range []struct {
		id      uint
		counter repo.Counter
	}{
		{actor.ID, repo.CounterOneSignalSent},
		{assignee.ID, repo.CounterOneSignalReceived},
	} {
		if err := repo.IncrementCounter(ctx, s.DB, c.id, c.counter, 1); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("counter", string(c.counter)).Msg("push counter update failed")
		}
	}
	return task, nil
}

// Status reports whether push is configured and, if so, the provider's app
// description. A provider error is reported in the result, not returned.
func (s *PushService) Status(ctx context.Context) *PushStatus {
	if !s.enabled() {
		return &PushStatus{Configured: false}
	}
	info, err := s.Sender.AppInfo(ctx)
	if err != nil {
		return &PushStatus{Configured: true, Error: err.Error()}
	}
	return &PushStatus{Configured: true, App: info}
}
