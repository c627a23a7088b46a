package bot

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/tbourn/go-taskbuddy/internal/domain"
	"github.com/tbourn/go-taskbuddy/internal/services"
)

// Texts use Telegram's HTML parse mode; user-supplied values go through esc.

const (
	timeLayout   = "02.01.2006 15:04"
	fallbackName = "Your partner"
)

func esc(s string) string { return html.EscapeString(s) }

// rejection pairs a service error with its chat text and metric label.
type rejection struct {
	err    error
	reason string
	text   string
}

var rejections = []rejection{
	{services.ErrNotFound, "not_registered", "You are not registered yet. Send /start first."},
	{services.ErrInvalidOrExpired, "invite_invalid", "❌ This invite code is invalid or has expired. Ask your partner for a fresh one."},
	{services.ErrAlreadyPartnered, "already_partnered", "🔗 A partnership already exists. Each person can have only one partner; use /unbind first."},
	{services.ErrSelfInvite, "self_invite", "🙃 That is your own invite code. Send it to your partner instead."},
	{services.ErrNoPartner, "no_partner", "👤 You don't have a partner yet. Use /invite to connect with someone."},
	{services.ErrTitleTooShort, "title_too_short", fmt.Sprintf("✏️ The title is too short. Use at least %d characters.", services.MinTitleRunes)},
	{services.ErrTitleTooLong, "title_too_long", fmt.Sprintf("✏️ The title is too long. Keep it under %d characters.", services.MaxTitleRunes+1)},
	{services.ErrTaskNotFound, "task_not_found", "🔍 This task no longer exists."},
	{services.ErrAlreadyCompleted, "already_completed", "✅ This task is already completed."},
	{services.ErrNotAssignee, "not_assignee", "⛔ Only the person the task was assigned to can complete it."},
	{services.ErrNotCreator, "not_creator", "⛔ Only the creator of the task can do that."},
	{services.ErrPushDisabled, "push_disabled", "🔕 Web push reminders are not configured on this bot."},
	{services.ErrPushFailed, "push_failed", "📵 The push service rejected the reminder. Try again later."},
}

const storageErrorText = "⚠️ Your request could not be saved right now. Please try again in a moment."

// errorText maps a service error to the message shown to the user. Errors
// outside the taxonomy are storage failures.
func errorText(err error) string {
	for _, r := range rejections {
		if errors.Is(err, r.err) {
			return r.text
		}
	}
	return storageErrorText
}

// rejectionReason is the metric label for err; "internal" for storage failures.
func rejectionReason(err error) string {
	for _, r := range rejections {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return "internal"
}

func welcomeText(u *domain.User) string {
	s := fmt.Sprintf("👋 Hi, <b>%s</b>!\n\nTaskBuddy lets you and one partner send each other tasks.\n\n", esc(u.DisplayName("there")))
	if u.HasPartner() {
		return s + "You already have a partner. Use the menu below to create and track tasks."
	}
	return s + "Start with /invite to get a code for your partner, or /join <code>CODE</code> if you received one."
}

const helpText = `<b>TaskBuddy commands</b>

/invite: get an invite code for your partner
/join <code>CODE</code>: connect using a partner's code (or /join alone to be asked for it)
/newtask: send a task to your partner
/tasks: open tasks in both directions
/stats: your and your partner's statistics
/remind: push a web reminder about one of your tasks
/unbind: end the partnership
/cancel: abort the current dialog
/help: this message`

const (
	unknownText          = "🤔 I didn't get that. Use the menu or /help."
	askInviteCodeText    = "⌨️ <b>Send your partner's invite code.</b>\n\nIt has 6 letters and digits, for example <code>A1B2C3</code>."
	askTitleText         = "📝 What should your partner do? Send the task title."
	askDescriptionText   = "📄 Add a description, or send /skip to leave it empty."
	cancelledText        = "❌ Cancelled."
	nothingToCancelText  = "There is nothing to cancel."
	nothingToSkipText    = "There is nothing to skip right now."
	unbindCancelledText  = "👍 Your partnership stays as it is."
	noRemindableText     = "🔔 You have no open tasks to remind your partner about."
	chooseReminderText   = "🔔 Which task should your partner be reminded of?"
	partnerOfflineNote   = "\n\n<i>Your partner could not be notified right now.</i>"
	invalidCallbackText  = "This button is no longer valid."
	reminderSentText     = "🔔 Reminder sent."
	taskCompletedAnswer  = "✅ Done!"
	taskDeletedAnswer    = "🗑️ Deleted."
	unbindDoneAnswer     = "Partnership ended."
	unbindCancelAnswer   = "Cancelled."
)

func inviteText(inv *services.Invite, botUsername string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔗 <b>Your invite code:</b> <code>%s</code>\n\n", inv.Code)
	fmt.Fprintf(&b, "Send it to your partner. They join with:\n<code>/join %s</code>\n", inv.Code)
	if botUsername != "" {
		fmt.Fprintf(&b, "\nor by opening this link:\nhttps://t.me/%s?start=%s\n", botUsername, inv.Code)
	}
	fmt.Fprintf(&b, "\n⏰ Valid until %s UTC. A new /invite replaces this code.", inv.ExpiresAt.UTC().Format(timeLayout))
	return b.String()
}

func taskCreatedText(t *domain.Task) string {
	s := fmt.Sprintf("✅ Task sent to your partner!\n\n📌 <b>%s</b>", esc(t.Title))
	if t.Description != "" {
		s += "\n📝 " + esc(t.Description)
	}
	return s
}

func taskCompletedText(t *domain.Task) string {
	return fmt.Sprintf("✅ You completed <b>%s</b>. Your partner has been told.", esc(t.Title))
}

func taskDeletedText(t *domain.Task) string {
	return fmt.Sprintf("🗑️ Task <b>%s</b> deleted.", esc(t.Title))
}

func confirmUnbindText(partner *domain.User) string {
	return fmt.Sprintf("⚠️ Unlink from <b>%s</b>?\n\nAll shared tasks will be deleted and both of your statistics reset.",
		esc(partner.DisplayName(fallbackName)))
}

func dissolvedText(res *services.DissolveResult) string {
	s := fmt.Sprintf("💔 You are no longer linked with <b>%s</b>.\n\n🗑️ Tasks deleted: %d\n📊 Statistics were reset.",
		esc(res.FormerPartner.DisplayName(fallbackName)), res.TasksDeleted)
	if !res.Notified {
		s += partnerOfflineNote
	}
	return s
}

// shortTitle trims a title for button labels.
func shortTitle(title string, max int) string {
	if utf8.RuneCountInString(title) <= max {
		return title
	}
	r := []rune(title)
	return string(r[:max-1]) + "…"
}

func boardText(b *services.Board) string {
	var sb strings.Builder
	sb.WriteString("📋 <b>YOUR TASKS</b>\n\n")
	if b.Partner != nil {
		fmt.Fprintf(&sb, "👤 Partner: <b>%s</b>\n", esc(b.Partner.DisplayName(fallbackName)))
	} else {
		sb.WriteString("👤 No partner. Use /invite to connect.\n")
	}

	if len(b.Incoming) == 0 && len(b.Outgoing) == 0 {
		sb.WriteString("\nNo open tasks.")
		if b.Partner != nil {
			sb.WriteString(" Create one with /newtask.")
		}
		return sb.String()
	}

	writeTasks := func(header string, tasks []domain.Task) {
		fmt.Fprintf(&sb, "\n%s (%d):\n", header, len(tasks))
		if len(tasks) == 0 {
			sb.WriteString("none\n")
			return
		}
		for i, t := range tasks {
			fmt.Fprintf(&sb, "%d. <b>%s</b>\n", i+1, esc(t.Title))
			if t.Description != "" {
				fmt.Fprintf(&sb, "   📝 %s\n", esc(t.Description))
			}
			fmt.Fprintf(&sb, "   ⏰ %s\n", t.CreatedAt.UTC().Format(timeLayout))
		}
	}
	writeTasks("📥 <b>For you</b>", b.Incoming)
	writeTasks("📤 <b>From you</b>", b.Outgoing)
	return strings.TrimRight(sb.String(), "\n")
}

func countersText(header string, c services.UserCounters) string {
	return fmt.Sprintf("%s\n• Created: %d\n• Received: %d\n• Completed: %d (%.1f%%)\n• Deleted: %d\n",
		header, c.Created, c.Received, c.Completed, c.CompletionRate, c.Deleted)
}

func statsText(ps *services.PairStats) string {
	var sb strings.Builder
	sb.WriteString("📊 <b>STATISTICS</b>\n\n")
	sb.WriteString(countersText(fmt.Sprintf("👤 <b>%s</b> (you)", esc(ps.Me.Name)), ps.Me))
	if ps.Partner != nil {
		sb.WriteString("\n")
		sb.WriteString(countersText(fmt.Sprintf("👥 <b>%s</b>", esc(ps.Partner.Name)), *ps.Partner))
	}
	fmt.Fprintf(&sb, "\n📥 Waiting for you: %d\n📤 Waiting for your partner: %d", ps.PendingIncoming, ps.PendingOutgoing)
	if ps.Partner != nil {
		fmt.Fprintf(&sb, "\n🤝 Together: %d created, %d completed", ps.PairCreated, ps.PairCompleted)
	}
	return sb.String()
}
