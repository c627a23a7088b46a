// Package services defines the business logic for pairing users, exchanging
// tasks and aggregating statistics. This file centralizes the service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// Translation into chat messages or HTTP status codes is performed by the bot
// and handler layers.
package services

import (
	"errors"

	"github.com/tbourn/go-taskbuddy/internal/repo"
)

// Pairing errors.
var (
	// ErrNotFound indicates that the acting user has never interacted with the bot.
	ErrNotFound = errors.New("user not found")

	// ErrInvalidOrExpired is returned when no user holds the invite code or
	// the code's expiry is not strictly in the future.
	ErrInvalidOrExpired = errors.New("invite code invalid or expired")

	// ErrAlreadyPartnered is returned when the inviter or the accepting user
	// is already paired.
	ErrAlreadyPartnered = errors.New("already partnered")

	// ErrSelfInvite is returned when a user tries to redeem their own code.
	ErrSelfInvite = errors.New("cannot accept own invite")

	// ErrNoPartner is returned by operations that require a current partner.
	ErrNoPartner = errors.New("no partner")
)

// Task errors.
var (
	// ErrTitleTooShort is returned when the trimmed title has fewer than
	// MinTitleRunes characters.
	ErrTitleTooShort = errors.New("task title too short")

	// ErrTitleTooLong is returned when the title exceeds MaxTitleRunes characters.
	ErrTitleTooLong = errors.New("task title too long")

	// ErrTaskNotFound indicates that the task does not exist (any more).
	ErrTaskNotFound = errors.New("task not found")

	// ErrAlreadyCompleted is returned when completing a task twice.
	ErrAlreadyCompleted = errors.New("task already completed")

	// ErrNotAssignee is returned when someone other than the assignee tries to
	// complete a task.
	ErrNotAssignee = errors.New("only the assignee can complete this task")

	// ErrNotCreator is returned when someone other than the creator tries to
	// delete or remind about a task.
	ErrNotCreator = errors.New("only the creator can change this task")
)

// Push errors.
var (
	// ErrPushDisabled is returned when web push credentials are not configured.
	ErrPushDisabled = errors.New("web push is not configured")

	// ErrPushFailed is returned when the push provider rejected the notification.
	ErrPushFailed = errors.New("web push delivery failed")
)

// isNotFound treats repo-level not found sentinels as "not found".
func isNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound)
}
