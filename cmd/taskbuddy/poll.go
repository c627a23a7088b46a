package main

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
)

func pollCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Run the bot with long polling instead of a webhook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runPoll(cmd.Context())
		},
	}
}

func (a *app) runPoll(ctx context.Context) error {
	db, err := a.openDB()
	if err != nil {
		return err
	}
	b, api, err := a.newBot(ctx, db)
	if err != nil {
		return err
	}
	// Telegram refuses getUpdates while a webhook is set.
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}

	go a.maintain(ctx, db, b)
	return b.Poll(ctx, api, a.cfg.Bot.UpdateTimeout)
}
