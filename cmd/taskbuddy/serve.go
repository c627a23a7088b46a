package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-taskbuddy/internal/bot"
	httpapi "github.com/tbourn/go-taskbuddy/internal/http"
)

func serveCmd(a *app) *cobra.Command {
	var apiOnly bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Telegram webhook and the reporting API",
		Long: `Start the HTTP server.

When WEBHOOK_URL is set the webhook is registered with Telegram on start.
The reporting API is served only when API_TOKEN is set; clients send it in
the X-API-Key header. With --api-only no bot is connected and only the
reporting API is served.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runServe(cmd.Context(), apiOnly)
		},
	}
	cmd.Flags().BoolVar(&apiOnly, "api-only", false, "serve the reporting API without a Telegram bot")
	return cmd
}

func (a *app) runServe(ctx context.Context, apiOnly bool) error {
	lg := zerolog.Ctx(ctx)
	db, err := a.openDB()
	if err != nil {
		return err
	}

	deps := httpapi.Deps{Push: a.pushSender()}
	var b *bot.Bot
	if !apiOnly {
		var api *tgbotapi.BotAPI
		b, api, err = a.newBot(ctx, db)
		if err != nil {
			return err
		}
		deps.Updates = b
		if err := a.registerWebhook(ctx, api); err != nil {
			return err
		}
	}

	if a.cfg.APIToken == "" {
		lg.Warn().Msg("API_TOKEN not set; reporting API disabled")
	}

	gin.SetMode(a.cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, deps, a.cfg)

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           r,
		ReadTimeout:       a.cfg.ReadTimeout,
		ReadHeaderTimeout: a.cfg.ReadHeaderTimeout,
		WriteTimeout:      a.cfg.WriteTimeout,
		IdleTimeout:       a.cfg.IdleTimeout,
		MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
	}

	go a.maintain(ctx, db, b)

	errCh := make(chan error, 1)
	go func() {
		lg.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	lg.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// registerWebhook points Telegram at WEBHOOK_URL with the configured secret.
// tgbotapi.WebhookConfig has no secret_token field, hence MakeRequest.
func (a *app) registerWebhook(ctx context.Context, api *tgbotapi.BotAPI) error {
	base := a.cfg.Bot.WebhookURL
	if base == "" {
		zerolog.Ctx(ctx).Warn().Msg("WEBHOOK_URL not set; Telegram must already know the webhook")
		return nil
	}
	url := strings.TrimRight(base, "/")
	if !strings.HasSuffix(url, httpapi.WebhookPath) {
		url += httpapi.WebhookPath
	}

	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", a.cfg.Bot.WebhookSecret)
	params["allowed_updates"] = `["message","callback_query"]`
	if _, err := api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	zerolog.Ctx(ctx).Info().Str("url", url).Msg("webhook registered")
	return nil
}
