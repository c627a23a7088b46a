package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tbourn/go-taskbuddy/internal/domain"
)

// Reply-keyboard labels. Pressing one behaves like the mapped command.
const (
	btnNewTask = "📝 New task"
	btnTasks   = "📋 My tasks"
	btnStats   = "📊 Statistics"
	btnRemind  = "🔔 Remind"
	btnInvite  = "🔗 Invite partner"
	btnJoin    = "⌨️ Join with code"
	btnUnbind  = "💔 Unbind"
	btnHelp    = "❓ Help"
	btnCancel  = "❌ Cancel"
)

var menuCommands = map[string]string{
	btnNewTask: cmdNewTask,
	btnTasks:   cmdTasks,
	btnStats:   cmdStats,
	btnRemind:  cmdRemind,
	btnInvite:  cmdInvite,
	btnJoin:    cmdJoin,
	btnUnbind:  cmdUnbind,
	btnHelp:    cmdHelp,
	btnCancel:  cmdCancel,
}

// Callback actions; task buttons carry "<action>:<task id>".
const (
	cbComplete      = "complete_task"
	cbDelete        = "delete_task"
	cbRemind        = "push_task"
	cbConfirmUnbind = "confirm_unbind"
	cbCancelUnbind  = "cancel_unbind"
)

const buttonTitleRunes = 28

func mainMenu(hasPartner bool) tgbotapi.ReplyKeyboardMarkup {
	var kb tgbotapi.ReplyKeyboardMarkup
	if hasPartner {
		kb = tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnNewTask), tgbotapi.NewKeyboardButton(btnTasks)),
			tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnStats), tgbotapi.NewKeyboardButton(btnRemind)),
			tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnUnbind), tgbotapi.NewKeyboardButton(btnHelp)),
		)
	} else {
		kb = tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnInvite), tgbotapi.NewKeyboardButton(btnJoin)),
			tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnTasks), tgbotapi.NewKeyboardButton(btnStats)),
			tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnHelp)),
		)
	}
	kb.ResizeKeyboard = true
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancel)))
	kb.ResizeKeyboard = true
	return kb
}

func taskData(action string, id uint) string { return fmt.Sprintf("%s:%d", action, id) }

// boardKeyboard offers completion for incoming and deletion for outgoing tasks.
// ok is false when the board has no open tasks.
func boardKeyboard(incoming, outgoing []domain.Task) (kb tgbotapi.InlineKeyboardMarkup, ok bool) {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, t := range incoming {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ "+shortTitle(t.Title, buttonTitleRunes), taskData(cbComplete, t.ID))))
	}
	for _, t := range outgoing {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑️ "+shortTitle(t.Title, buttonTitleRunes), taskData(cbDelete, t.ID))))
	}
	if len(rows) == 0 {
		return kb, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}

func remindKeyboard(outgoing []domain.Task) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(outgoing))
	for _, t := range outgoing {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔔 "+shortTitle(t.Title, buttonTitleRunes), taskData(cbRemind, t.ID))))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func confirmUnbindKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Yes, unbind", cbConfirmUnbind),
		tgbotapi.NewInlineKeyboardButtonData("❌ No", cbCancelUnbind),
	))
}
