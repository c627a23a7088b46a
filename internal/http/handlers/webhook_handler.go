// Telegram webhook handler.
//
// Telegram posts one Update per request and redelivers it when the response
// is slow or non-2xx. The handler therefore claims each update_id once and
// answers 200 for every well-formed update, including duplicates and updates
// whose processing failed; chat-level failures are reported to the user by the
// bot itself. A panic releases the claim before Recovery answers 500, so the
// redelivery is processed.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-taskbuddy/internal/http/middleware"
)

// UpdateHandler consumes one Telegram update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, upd tgbotapi.Update)
}

// ClaimFunc records updateID as processed and reports whether the caller
// owns it. A false result means the update was already handled.
type ClaimFunc func(ctx context.Context, updateID int64) (bool, error)

// ReleaseFunc undoes a claim for an update whose processing did not finish.
type ReleaseFunc func(ctx context.Context, updateID int64) error

// Webhook serves the Telegram webhook endpoint.
type Webhook struct {
	updates UpdateHandler
	claim   ClaimFunc
	release ReleaseFunc
}

// NewWebhook binds the webhook to the bot and the de-duplication store. A nil
// claim disables de-duplication; a nil release keeps claims of updates whose
// handling panicked.
func NewWebhook(updates UpdateHandler, claim ClaimFunc, release ReleaseFunc) *Webhook {
	return &Webhook{updates: updates, claim: claim, release: release}
}

// WebhookResponse acknowledges an update.
type WebhookResponse struct {
	OK        bool `json:"ok" example:"true"`
	Duplicate bool `json:"duplicate,omitempty"`
}

// Handle godoc
// @ID          telegramWebhook
// @Summary     Telegram webhook
// @Description Receives one Telegram update. Redelivered update ids are acknowledged without processing.
// @Tags        Telegram
// @Accept      json
// @Produce     json
// @Param       X-Telegram-Bot-Api-Secret-Token  header  string  false  "Webhook secret token"
// @Param       body  body  object  true  "Telegram Update"
// @Success     200  {object}  handlers.WebhookResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed update"
// @Failure     401  {object}  handlers.ErrorResponse  "Secret token mismatch"
// @Router      /telegram/webhook [post]
func (w *Webhook) Handle(c *gin.Context) {
	var upd tgbotapi.Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeInvalidUpdate, "invalid update payload")
		return
	}

	lg := middleware.LoggerFrom(c).With().Int("update_id", upd.UpdateID).Logger()
	ctx := lg.WithContext(c.Request.Context())

	if w.claim != nil {
		id := int64(upd.UpdateID)
		claimed, err := w.claim(ctx, id)
		switch {
		case err != nil:
			// Processing twice beats dropping the update.
			lg.Warn().Err(err).Msg("update claim failed")
		case !claimed:
			lg.Debug().Msg("duplicate update dropped")
			ok(c, http.StatusOK, WebhookResponse{OK: true, Duplicate: true})
			return
		case w.release != nil:
			defer w.releaseOnPanic(ctx, id)
		}
	}

	w.updates.HandleUpdate(ctx, upd)
	zerolog.Ctx(ctx).Debug().Msg("update handled")
	ok(c, http.StatusOK, WebhookResponse{OK: true})
}

// releaseOnPanic gives the claim back and re-panics for Recovery.
func (w *Webhook) releaseOnPanic(ctx context.Context, updateID int64) {
	r := recover()
	if r == nil {
		return
	}
	if err := w.release(context.WithoutCancel(ctx), updateID); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("update claim release failed")
	} else {
		zerolog.Ctx(ctx).Warn().Msg("update handling panicked; claim released")
	}
	panic(r)
}
