package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tbourn/go-taskbuddy/internal/observability"
	"github.com/tbourn/go-taskbuddy/internal/services"
)

const (
	cmdStart   = "/start"
	cmdHelp    = "/help"
	cmdInvite  = "/invite"
	cmdJoin    = "/join"
	cmdNewTask = "/newtask"
	cmdSkip    = "/skip"
	cmdTasks   = "/tasks"
	cmdStats   = "/stats"
	cmdRemind  = "/remind"
	cmdUnbind  = "/unbind"
	cmdCancel  = "/cancel"
)

var knownCommands = map[string]bool{
	cmdStart: true, cmdHelp: true, cmdInvite: true, cmdJoin: true,
	cmdNewTask: true, cmdSkip: true, cmdTasks: true, cmdStats: true,
	cmdRemind: true, cmdUnbind: true, cmdCancel: true,
}

func chatOf(msg *tgbotapi.Message) int64 {
	if msg.Chat != nil {
		return msg.Chat.ID
	}
	return msg.From.ID
}

func (b *Bot) onMessage(ctx context.Context, msg *tgbotapi.Message) {
	uid, chat := msg.From.ID, chatOf(msg)

	if msg.IsCommand() {
		b.route(ctx, chat, uid, "/"+strings.ToLower(msg.Command()), strings.TrimSpace(msg.CommandArguments()))
		return
	}
	text := strings.TrimSpace(msg.Text)
	if cmd, ok := menuCommands[text]; ok {
		b.route(ctx, chat, uid, cmd, "")
		return
	}
	if dl, ok := b.dialogs.get(uid); ok {
		b.continueDialog(ctx, chat, uid, dl, msg.Text)
		return
	}
	b.reply(ctx, chat, unknownText, nil)
}

// route runs a command. Any command other than /skip abandons an open dialog.
func (b *Bot) route(ctx context.Context, chat, uid int64, cmd, args string) {
	if knownCommands[cmd] {
		observability.ObserveCommand(cmd)
	} else {
		observability.ObserveCommand("unknown")
	}
	hadDialog := false
	if cmd != cmdSkip {
		hadDialog = b.dialogs.clear(uid)
	}

	switch cmd {
	case cmdStart:
		if args != "" {
			b.acceptInvite(ctx, chat, uid, args, nil)
			return
		}
		b.start(ctx, chat)
	case cmdHelp:
		b.reply(ctx, chat, helpText, nil)
	case cmdInvite:
		if args != "" {
			b.acceptInvite(ctx, chat, uid, args, nil)
			return
		}
		b.createInvite(ctx, chat, uid)
	case cmdJoin:
		if args == "" {
			b.askInviteCode(ctx, chat, uid)
			return
		}
		b.acceptInvite(ctx, chat, uid, args, nil)
	case cmdNewTask:
		b.beginNewTask(ctx, chat, uid, args)
	case cmdSkip:
		dl, ok := b.dialogs.get(uid)
		if !ok || dl.step != stepDescription {
			b.reply(ctx, chat, nothingToSkipText, nil)
			return
		}
		b.createTask(ctx, chat, uid, dl.title, "")
	case cmdTasks:
		b.showTasks(ctx, chat, uid)
	case cmdStats:
		b.showStats(ctx, chat, uid)
	case cmdRemind:
		b.showReminders(ctx, chat, uid)
	case cmdUnbind:
		b.askUnbind(ctx, chat, uid)
	case cmdCancel:
		if hadDialog {
			b.reply(ctx, chat, cancelledText, mainMenu(b.hasPartner(ctx, uid)))
			return
		}
		b.reply(ctx, chat, nothingToCancelText, nil)
	default:
		b.reply(ctx, chat, unknownText, nil)
	}
}

func (b *Bot) start(ctx context.Context, chat int64) {
	u := userFrom(ctx)
	b.reply(ctx, chat, welcomeText(u), mainMenu(u.HasPartner()))
}

func (b *Bot) createInvite(ctx context.Context, chat, uid int64) {
	inv, err := b.pairing.CreateInvite(ctx, uid)
	if err != nil {
		b.fail(ctx, chat, err, nil)
		return
	}
	b.reply(ctx, chat, inviteText(inv, b.username), nil)
}

// askInviteCode starts the one-step code-entry dialog that feeds acceptInvite.
func (b *Bot) askInviteCode(ctx context.Context, chat, uid int64) {
	if userFrom(ctx).HasPartner() {
		b.fail(ctx, chat, services.ErrAlreadyPartnered, nil)
		return
	}
	b.dialogs.set(uid, dialog{step: stepInviteCode})
	b.reply(ctx, chat, askInviteCodeText, cancelKeyboard())
}

// acceptInvite pairs uid through code and reports whether it succeeded.
// onError is the markup of the rejection reply and may be nil.
func (b *Bot) acceptInvite(ctx context.Context, chat, uid int64, code string, onError any) bool {
	res, err := b.pairing.AcceptInvite(ctx, code, uid)
	if err != nil {
		b.fail(ctx, chat, err, onError)
		return false
	}
	b.stats.TryRecompute(ctx)
	text := res.Message
	if !res.Notified {
		text += partnerOfflineNote
	}
	b.reply(ctx, chat, text, mainMenu(true))
	return true
}

// beginNewTask starts the title/description dialog. A title given inline
// skips the first step.
func (b *Bot) beginNewTask(ctx context.Context, chat, uid int64, inlineTitle string) {
	if _, err := b.pairing.Partner(ctx, uid); err != nil {
		b.fail(ctx, chat, err, nil)
		return
	}
	if inlineTitle == "" {
		b.dialogs.set(uid, dialog{step: stepTitle})
		b.reply(ctx, chat, askTitleText, cancelKeyboard())
		return
	}
	title, err := services.ValidateTitle(inlineTitle)
	if err != nil {
		b.dialogs.set(uid, dialog{step: stepTitle})
		b.fail(ctx, chat, err, cancelKeyboard())
		return
	}
	b.dialogs.set(uid, dialog{step: stepDescription, title: title})
	b.reply(ctx, chat, askDescriptionText, cancelKeyboard())
}

func (b *Bot) continueDialog(ctx context.Context, chat, uid int64, dl dialog, text string) {
	switch dl.step {
	case stepTitle:
		title, err := services.ValidateTitle(text)
		if err != nil {
			// Stay on the title step so the user can retry.
			b.dialogs.set(uid, dl)
			b.fail(ctx, chat, err, nil)
			return
		}
		b.dialogs.set(uid, dialog{step: stepDescription, title: title})
		b.reply(ctx, chat, askDescriptionText, nil)
	case stepDescription:
		b.createTask(ctx, chat, uid, dl.title, text)
	case stepInviteCode:
		if b.acceptInvite(ctx, chat, uid, strings.TrimSpace(text), cancelKeyboard()) {
			b.dialogs.clear(uid)
			return
		}
		// Keep asking until a code works or the user cancels.
		b.dialogs.set(uid, dl)
	}
}

func (b *Bot) createTask(ctx context.Context, chat, uid int64, title, description string) {
	b.dialogs.clear(uid)
	task, err := b.tasks.Create(ctx, uid, title, description)
	if err != nil {
		b.fail(ctx, chat, err, mainMenu(b.hasPartner(ctx, uid)))
		return
	}
	b.stats.TryRecompute(ctx)
	b.reply(ctx, chat, taskCreatedText(task), mainMenu(true))
}

func (b *Bot) showTasks(ctx context.Context, chat, uid int64) {
	board, err := b.tasks.List(ctx, uid)
	if err != nil {
		b.fail(ctx, chat, err, nil)
		return
	}
	if kb, ok := boardKeyboard(board.Incoming, board.Outgoing); ok {
		b.reply(ctx, chat, boardText(board), kb)
		return
	}
	b.reply(ctx, chat, boardText(board), nil)
}

func (b *Bot) showStats(ctx context.Context, chat, uid int64) {
	ps, err := b.stats.PairStats(ctx, uid)
	if err != nil {
		b.fail(ctx, chat, err, nil)
		return
	}
	b.reply(ctx, chat, statsText(ps), nil)
}

func (b *Bot) showReminders(ctx context.Context, chat, uid int64) {
	if b.reminders == nil {
		b.fail(ctx, chat, services.ErrPushDisabled, nil)
		return
	}
	board, err := b.tasks.List(ctx, uid)
	if err != nil {
		b.fail(ctx, chat, err, nil)
		return
	}
	if len(board.Outgoing) == 0 {
		b.reply(ctx, chat, noRemindableText, nil)
		return
	}
	b.reply(ctx, chat, chooseReminderText, remindKeyboard(board.Outgoing))
}

func (b *Bot) askUnbind(ctx context.Context, chat, uid int64) {
	p, err := b.pairing.Partner(ctx, uid)
	if err != nil {
		b.fail(ctx, chat, err, nil)
		return
	}
	b.reply(ctx, chat, confirmUnbindText(p), confirmUnbindKeyboard())
}
