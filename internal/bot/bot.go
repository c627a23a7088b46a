// Package bot turns Telegram updates into TaskBuddy operations.
//
// Bot is transport-agnostic: the webhook handler and the long-polling loop
// both feed it tgbotapi.Update values. Every interaction registers the sender
// and records activity before the message or button press is dispatched.
package bot

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-taskbuddy/internal/domain"
	"github.com/tbourn/go-taskbuddy/internal/observability"
	"github.com/tbourn/go-taskbuddy/internal/services"
	"github.com/tbourn/go-taskbuddy/internal/sysutil"
)

// DefaultDialogTTL bounds how long an unfinished dialog survives.
const DefaultDialogTTL = 30 * time.Minute

// API is the subset of *tgbotapi.BotAPI used for replies.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Users registers and looks up users.
type Users interface {
	Ensure(ctx context.Context, telegramID int64, username, fullName string) (*domain.User, bool, error)
}

// Pairing manages invites and partnerships.
type Pairing interface {
	CreateInvite(ctx context.Context, telegramID int64) (*services.Invite, error)
	AcceptInvite(ctx context.Context, code string, telegramID int64) (*services.PairResult, error)
	Dissolve(ctx context.Context, telegramID int64) (*services.DissolveResult, error)
	Partner(ctx context.Context, telegramID int64) (*domain.User, error)
}

// Tasks manages tasks between partners.
type Tasks interface {
	Create(ctx context.Context, creatorTelegramID int64, title, description string) (*domain.Task, error)
	Complete(ctx context.Context, taskID uint, actorTelegramID int64) (*domain.Task, error)
	Delete(ctx context.Context, taskID uint, actorTelegramID int64) (*domain.Task, error)
	List(ctx context.Context, telegramID int64) (*services.Board, error)
}

// Stats records activity and serves per-user statistics.
type Stats interface {
	RecordActivity(ctx context.Context, telegramID int64) error
	TryRecompute(ctx context.Context)
	PairStats(ctx context.Context, telegramID int64) (*services.PairStats, error)
}

// Reminders pushes web reminders about open tasks.
type Reminders interface {
	RemindTask(ctx context.Context, taskID uint, actorTelegramID int64) (*domain.Task, error)
}

// Deps wires a Bot. Reminders may be nil, which disables /remind.
type Deps struct {
	API       API
	Users     Users
	Pairing   Pairing
	Tasks     Tasks
	Stats     Stats
	Reminders Reminders

	// Username is the bot's @name without "@", used for invite deep links.
	Username string
	// DialogTTL defaults to DefaultDialogTTL.
	DialogTTL time.Duration
}

// Bot handles updates. It is safe for concurrent use.
type Bot struct {
	api       API
	users     Users
	pairing   Pairing
	tasks     Tasks
	stats     Stats
	reminders Reminders
	username  string
	dialogs   *dialogs
}

// New builds a Bot from d.
func New(d Deps) *Bot {
	ttl := d.DialogTTL
	if ttl <= 0 {
		ttl = DefaultDialogTTL
	}
	return &Bot{
		api:       d.API,
		users:     d.Users,
		pairing:   d.Pairing,
		tasks:     d.Tasks,
		stats:     d.Stats,
		reminders: d.Reminders,
		username:  d.Username,
		dialogs:   newDialogs(ttl),
	}
}

// updateKind classifies an update and returns its human sender, if any.
func updateKind(upd tgbotapi.Update) (string, *tgbotapi.User) {
	switch {
	case upd.Message != nil:
		if upd.Message.IsCommand() {
			return "command", upd.Message.From
		}
		return "message", upd.Message.From
	case upd.CallbackQuery != nil:
		return "callback", upd.CallbackQuery.From
	default:
		return "other", nil
	}
}

// HandleUpdate processes a single update. Failures are reported to the user
// and logged; nothing is returned because Telegram must not redeliver.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	kind, from := updateKind(upd)
	observability.ObserveUpdate(kind)
	if from == nil || from.IsBot {
		return
	}

	ctx, span := otel.Tracer("bot").Start(ctx, "HandleUpdate",
		trace.WithAttributes(
			attribute.Int("update.id", upd.UpdateID),
			attribute.String("update.kind", kind),
			attribute.Int64("user.telegram_id", from.ID),
		))
	defer span.End()

	lg := zerolog.Ctx(ctx).With().Int64("from_id", from.ID).Logger()
	ctx = lg.WithContext(ctx)

	fullName := sysutil.FirstNonEmpty(sysutil.FullName(from.FirstName, from.LastName), from.UserName)
	u, created, err := b.users.Ensure(ctx, from.ID, from.UserName, fullName)
	if err != nil {
		lg.Error().Err(err).Msg("user registration failed")
		b.reply(ctx, from.ID, errorText(err), nil)
		return
	}
	if created {
		b.stats.TryRecompute(ctx)
	}
	ctx = withUser(ctx, u)
	if err := b.stats.RecordActivity(ctx, from.ID); err != nil {
		lg.Warn().Err(err).Msg("activity not recorded")
	}

	switch {
	case upd.Message != nil:
		b.onMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		b.onCallback(ctx, upd.CallbackQuery)
	}
}

type userKey struct{}

func withUser(ctx context.Context, u *domain.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// userFrom returns the sender registered for the current update.
func userFrom(ctx context.Context) *domain.User {
	u, _ := ctx.Value(userKey{}).(*domain.User)
	return u
}

// reply sends an HTML message. markup may be nil.
func (b *Bot) reply(ctx context.Context, chatID int64, text string, markup any) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.api.Send(msg); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("chat_id", chatID).Msg("reply not delivered")
	}
}

// fail reports a rejected operation to the user. Storage failures are logged.
func (b *Bot) fail(ctx context.Context, chatID int64, err error, markup any) {
	reason := rejectionReason(err)
	observability.ObserveRejection(reason)
	if reason == "internal" {
		zerolog.Ctx(ctx).Error().Err(err).Msg("operation failed")
	}
	b.reply(ctx, chatID, errorText(err), markup)
}

// SweepDialogs drops dialogs idle longer than the dialog TTL and returns how
// many were removed.
func (b *Bot) SweepDialogs() int { return b.dialogs.sweep() }

func (b *Bot) hasPartner(ctx context.Context, telegramID int64) bool {
	p, err := b.pairing.Partner(ctx, telegramID)
	return err == nil && p != nil
}
