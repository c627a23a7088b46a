// Package notify delivers outbound notifications: Telegram chat messages to
// users and OneSignal web push reminders.
//
// Every delivery is a single attempt. Failures are logged and counted, and
// the caller decides whether they matter.
package notify

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-taskbuddy/internal/observability"
)

// Sender is the subset of *tgbotapi.BotAPI used to deliver messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends HTML-formatted chat messages. It implements
// services.Notifier.
type Telegram struct {
	api Sender
}

// NewTelegram returns a notifier backed by api.
func NewTelegram(api Sender) *Telegram {
	return &Telegram{api: api}
}

// Notify sends text to the private chat of telegramID and reports whether
// Telegram accepted it. A user who blocked the bot is a normal failure.
func (t *Telegram) Notify(ctx context.Context, telegramID int64, text string) bool {
	msg := tgbotapi.NewMessage(telegramID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	_, err := t.api.Send(msg)
	observability.ObserveNotification(observability.ChannelTelegram, err == nil)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("telegram_id", telegramID).Msg("notification not delivered")
		return false
	}
	return true
}
