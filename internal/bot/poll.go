package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// UpdateSource delivers updates by long polling; *tgbotapi.BotAPI implements it.
type UpdateSource interface {
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Poll feeds updates from src to the bot until ctx is cancelled or the
// channel closes. timeout is the long-poll timeout in seconds.
func (b *Bot) Poll(ctx context.Context, src UpdateSource, timeout int) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = timeout
	cfg.AllowedUpdates = []string{"message", "callback_query"}
	updates := src.GetUpdatesChan(cfg)

	lg := zerolog.Ctx(ctx)
	lg.Info().Int("timeout", timeout).Msg("long polling started")
	for {
		select {
		case <-ctx.Done():
			src.StopReceivingUpdates()
			lg.Info().Msg("long polling stopped")
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			ulg := lg.With().Int("update_id", upd.UpdateID).Logger()
			b.HandleUpdate(ulg.WithContext(ctx), upd)
		}
	}
}
