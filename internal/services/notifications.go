package services

import (
	"fmt"
	"html"
	"time"

	"github.com/tbourn/go-taskbuddy/internal/domain"
)

// Texts pushed to the other party. They are rendered with Telegram's HTML
// parse mode, so every user-supplied value is escaped.

const partnerFallbackName = "Your partner"

func esc(s string) string { return html.EscapeString(s) }

func partnerConnectedText(accepter *domain.User) string {
	return fmt.Sprintf("✅ %s connected to you!\n\nYou can now exchange tasks.",
		esc(accepter.DisplayName(partnerFallbackName)))
}

func partnerLeftText(leaver *domain.User) string {
	return fmt.Sprintf("⚠️ %s unlinked from you.\n\nAll shared tasks were deleted and statistics were reset.",
		esc(leaver.DisplayName(partnerFallbackName)))
}

func taskAssignedText(creator *domain.User, t *domain.Task, at time.Time) string {
	s := fmt.Sprintf("📬 <b>NEW TASK</b>\n\n<b>%s</b> assigned you a task:\n\n📌 <b>%s</b>\n",
		esc(creator.DisplayName(partnerFallbackName)), esc(t.Title))
	if t.Description != "" {
		s += "📝 " + esc(t.Description) + "\n"
	}
	return s + "\n⏰ " + at.Format("02.01.2006 15:04")
}

func taskCompletedText(assignee *domain.User, t *domain.Task) string {
	s := fmt.Sprintf("✅ <b>TASK COMPLETED</b>\n\n<b>%s</b> completed your task:\n\n📌 <b>%s</b>",
		esc(assignee.DisplayName(partnerFallbackName)), esc(t.Title))
	if t.CompletedAt != nil {
		s += "\n⏰ " + t.CompletedAt.Format("02.01.2006 15:04")
	}
	return s
}

func taskDeletedText(creator *domain.User, t *domain.Task) string {
	return fmt.Sprintf("🗑️ <b>TASK DELETED</b>\n\n<b>%s</b> deleted the task:\n📌 %s",
		esc(creator.DisplayName(partnerFallbackName)), esc(t.Title))
}
