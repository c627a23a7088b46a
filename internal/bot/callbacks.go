package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-taskbuddy/internal/observability"
	"github.com/tbourn/go-taskbuddy/internal/utils"
)

// onCallback handles inline button presses. Every query is answered so the
// client stops its spinner; rejections are shown as an alert.
func (b *Bot) onCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	uid := cb.From.ID
	chat := uid
	if cb.Message != nil && cb.Message.Chat != nil {
		chat = cb.Message.Chat.ID
	}

	action, arg, _ := utils.SplitPayload(cb.Data)
	switch action {
	case cbComplete, cbDelete, cbRemind, cbConfirmUnbind, cbCancelUnbind:
		observability.ObserveCommand(action)
	default:
		observability.ObserveCommand("unknown")
		b.answer(ctx, cb.ID, invalidCallbackText, true)
		return
	}

	switch action {
	case cbCancelUnbind:
		b.answer(ctx, cb.ID, unbindCancelAnswer, false)
		b.reply(ctx, chat, unbindCancelledText, nil)
		return
	case cbConfirmUnbind:
		res, err := b.pairing.Dissolve(ctx, uid)
		if err != nil {
			b.reject(ctx, cb.ID, err)
			return
		}
		b.stats.TryRecompute(ctx)
		b.answer(ctx, cb.ID, unbindDoneAnswer, false)
		b.reply(ctx, chat, dissolvedText(res), mainMenu(false))
		return
	}

	id, ok := utils.ParseID(arg)
	if !ok {
		b.answer(ctx, cb.ID, invalidCallbackText, true)
		return
	}
	switch action {
	case cbComplete:
		task, err := b.tasks.Complete(ctx, id, uid)
		if err != nil {
			b.reject(ctx, cb.ID, err)
			return
		}
		b.stats.TryRecompute(ctx)
		b.answer(ctx, cb.ID, taskCompletedAnswer, false)
		b.reply(ctx, chat, taskCompletedText(task), nil)
	case cbDelete:
		task, err := b.tasks.Delete(ctx, id, uid)
		if err != nil {
			b.reject(ctx, cb.ID, err)
			return
		}
		b.stats.TryRecompute(ctx)
		b.answer(ctx, cb.ID, taskDeletedAnswer, false)
		b.reply(ctx, chat, taskDeletedText(task), nil)
	case cbRemind:
		if b.reminders == nil {
			b.answer(ctx, cb.ID, invalidCallbackText, true)
			return
		}
		if _, err := b.reminders.RemindTask(ctx, id, uid); err != nil {
			b.reject(ctx, cb.ID, err)
			return
		}
		b.stats.TryRecompute(ctx)
		b.answer(ctx, cb.ID, reminderSentText, false)
	}
}

func (b *Bot) answer(ctx context.Context, queryID, text string, alert bool) {
	cfg := tgbotapi.NewCallback(queryID, text)
	cfg.ShowAlert = alert
	if _, err := b.api.Request(cfg); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("callback answer failed")
	}
}

func (b *Bot) reject(ctx context.Context, queryID string, err error) {
	reason := rejectionReason(err)
	observability.ObserveRejection(reason)
	if reason == "internal" {
		zerolog.Ctx(ctx).Error().Err(err).Msg("callback failed")
	}
	b.answer(ctx, queryID, errorText(err), true)
}
