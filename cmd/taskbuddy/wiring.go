package main

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-taskbuddy/internal/bot"
	"github.com/tbourn/go-taskbuddy/internal/notify"
	"github.com/tbourn/go-taskbuddy/internal/repo"
	"github.com/tbourn/go-taskbuddy/internal/services"
)

func (a *app) openDB() (*gorm.DB, error) {
	db, err := repo.OpenSQLite(a.cfg.DBPath, repo.OpenOptions{Tracing: a.cfg.OTEL.Enabled})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// pushSender returns the OneSignal client, or nil when push is not configured.
func (a *app) pushSender() services.PushSender {
	if !a.cfg.Push.Enabled() {
		return nil
	}
	return notify.NewOneSignal(a.cfg.Push.AppID, a.cfg.Push.APIKey)
}

// newBot connects to Telegram and wires the bot to the services.
func (a *app) newBot(ctx context.Context, db *gorm.DB) (*bot.Bot, *tgbotapi.BotAPI, error) {
	if err := a.cfg.RequireBot(); err != nil {
		return nil, nil, err
	}
	api, err := tgbotapi.NewBotAPI(a.cfg.Bot.Token)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to telegram: %w", err)
	}
	username := a.cfg.Bot.Username
	if username == "" {
		username = api.Self.UserName
	}
	zerolog.Ctx(ctx).Info().Str("bot", username).Msg("telegram connected")

	tg := notify.NewTelegram(api)
	b := bot.New(bot.Deps{
		API:       api,
		Users:     &services.UserService{DB: db},
		Pairing:   &services.PairingService{DB: db, Notifier: tg, InviteTTL: a.cfg.Bot.InviteTTL},
		Tasks:     &services.TaskService{DB: db, Notifier: tg},
		Stats:     &services.StatsService{DB: db, ActiveWindow: a.cfg.ActiveWindow},
		Reminders: &services.PushService{DB: db, Sender: a.pushSender()},
		Username:  username,
	})
	return b, api, nil
}

// maintain recomputes the statistics aggregate and purges expired update
// ids every interval until ctx is done. A zero interval disables it.
func (a *app) maintain(ctx context.Context, db *gorm.DB, b *bot.Bot) {
	interval := a.cfg.StatsRecomputeInterval
	if interval <= 0 {
		return
	}
	lg := zerolog.Ctx(ctx)
	stats := &services.StatsService{DB: db, ActiveWindow: a.cfg.ActiveWindow}

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := stats.Recompute(ctx); err != nil {
				lg.Warn().Err(err).Msg("scheduled stats recompute failed")
			}
			n, err := repo.PurgeExpiredUpdates(ctx, db, time.Now())
			if err != nil {
				lg.Warn().Err(err).Msg("update purge failed")
			} else if n > 0 {
				lg.Debug().Int64("purged", n).Msg("expired update ids purged")
			}
			if b != nil {
				if n := b.SweepDialogs(); n > 0 {
					lg.Debug().Int("swept", n).Msg("idle dialogs dropped")
				}
			}
		}
	}
}
