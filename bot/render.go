package bot

import (
	"github.com/akramov/fleetpoll/survey"
	"github.com/akramov/fleetpoll/telegram"
)

const (
	btnTakeSurvey   = "📝 Пройти опрос (2 минуты)"
	btnLeaveContact = "📞 Оставить контакт без опроса"
	btnDone         = "Готово ✅"
	btnCancel       = "Отмена ↩️"
	btnSendContact  = "Отправить контакт"
)

func markupFor(p survey.Prompt) any {
	switch p.Keyboard {
	case survey.KeyboardMenu:
		return telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{{Text: btnTakeSurvey, CallbackData: cbStartSurvey}},
			{{Text: btnLeaveContact, CallbackData: cbLeaveContact}},
		}}
	case survey.KeyboardChoice:
		return choiceMarkup(p.Options)
	case survey.KeyboardMulti:
		return multiMarkup(p.Options)
	case survey.KeyboardPhone:
		return telegram.ReplyKeyboardMarkup{
			Keyboard:        [][]telegram.KeyboardButton{{{Text: btnSendContact, RequestContact: true}}},
			ResizeKeyboard:  true,
			OneTimeKeyboard: true,
		}
	case survey.KeyboardRemove:
		return telegram.ReplyKeyboardRemove{RemoveKeyboard: true}
	default:
		return nil
	}
}

// choiceMarkup keeps short option sets on a single row, the way the yes/no
// question reads best, and stacks longer ones.
func choiceMarkup(options []survey.Option) telegram.InlineKeyboardMarkup {
	var rows [][]telegram.InlineKeyboardButton
	if len(options) <= 3 {
		row := make([]telegram.InlineKeyboardButton, 0, len(options))
		for _, o := range options {
			row = append(row, telegram.InlineKeyboardButton{Text: o.Label, CallbackData: cbChoicePrefix + o.Label})
		}
		rows = append(rows, row)
	} else {
		for _, o := range options {
			rows = append(rows, []telegram.InlineKeyboardButton{{Text: o.Label, CallbackData: cbChoicePrefix + o.Label}})
		}
	}
	rows = append(rows, []telegram.InlineKeyboardButton{{Text: btnCancel, CallbackData: cbCancel}})
	return telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func multiMarkup(options []survey.Option) telegram.InlineKeyboardMarkup {
	var rows [][]telegram.InlineKeyboardButton
	for _, o := range options {
		mark := "☐"
		if o.Selected {
			mark = "✅"
		}
		rows = append(rows, []telegram.InlineKeyboardButton{{
			Text:         mark + " " + o.Label,
			CallbackData: cbOptionPrefix + o.Label,
		}})
	}
	rows = append(rows, []telegram.InlineKeyboardButton{{Text: btnDone, CallbackData: cbMultiDone}})
	rows = append(rows, []telegram.InlineKeyboardButton{{Text: btnCancel, CallbackData: cbCancel}})
	return telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}
