package dialog

import (
	"mediabot/internal/jobspec"
	"mediabot/internal/telegram"
)

// Callback data prefixes route inline keyboard presses back to the flow.
const (
	callbackKindPrefix = "kind:"
	callbackOpPrefix   = "op:"
	callbackDone       = "inputs:done"
	callbackCancel     = "flow:cancel"
)

func kindKeyboard() *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{
			{Text: "Image", CallbackData: callbackKindPrefix + string(jobspec.KindImage)},
			{Text: "Video", CallbackData: callbackKindPrefix + string(jobspec.KindVideo)},
			{Text: "Document", CallbackData: callbackKindPrefix + string(jobspec.KindDocument)},
		},
	}}
}

// operationKeyboard lays the kind's menu out two buttons per row with a
// trailing cancel row.
func operationKeyboard(kind jobspec.MediaKind) *telegram.InlineKeyboardMarkup {
	ops := jobspec.OperationsFor(kind)
	rows := make([][]telegram.InlineKeyboardButton, 0, len(ops)/2+2)
	for i := 0; i < len(ops); i += 2 {
		row := []telegram.InlineKeyboardButton{
			{Text: ops[i].Label(), CallbackData: callbackOpPrefix + string(ops[i])},
		}
		if i+1 < len(ops) {
			row = append(row, telegram.InlineKeyboardButton{
				Text:         ops[i+1].Label(),
				CallbackData: callbackOpPrefix + string(ops[i+1]),
			})
		}
		rows = append(rows, row)
	}
	rows = append(rows, []telegram.InlineKeyboardButton{{Text: "Cancel", CallbackData: callbackCancel}})
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func collectKeyboard() *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{
			{Text: "Done", CallbackData: callbackDone},
			{Text: "Cancel", CallbackData: callbackCancel},
		},
	}}
}

// Commands returns the command menu registered with Telegram at startup.
func Commands() []telegram.BotCommand {
	return []telegram.BotCommand{
		{Command: "start", Description: "Process a new file"},
		{Command: "status", Description: "Show your recent jobs"},
		{Command: "done", Description: "Finish uploading files"},
		{Command: "cancel", Description: "Abort the current flow"},
		{Command: "help", Description: "How to use this bot"},
	}
}
