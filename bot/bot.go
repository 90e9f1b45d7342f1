// Package bot routes inbound Telegram updates onto the survey state
// machine and renders the machine's prompts back into chat messages. It
// neither owns survey state nor talks to the sink directly.
package bot

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/akramov/fleetpoll/survey"
	"github.com/akramov/fleetpoll/telegram"
)

const (
	cbStartSurvey  = "survey:start"
	cbLeaveContact = "survey:contact"
	cbCancel       = "survey:cancel"
	cbMultiDone    = "opt:done"
	cbChoicePrefix = "choice:"
	cbOptionPrefix = "opt:"
)

const helpText = "Команды:\n" +
	"/start — начать опрос\n" +
	"/cancel — остановить опрос"

type Bot struct {
	client *telegram.Client
	co     *survey.Coordinator
	log    *zap.Logger
}

func New(client *telegram.Client, co *survey.Coordinator, log *zap.Logger) *Bot {
	return &Bot{client: client, co: co, log: log}
}

// HandleUpdate processes one inbound update to completion.
func (b *Bot) HandleUpdate(ctx context.Context, up telegram.Update) error {
	switch {
	case up.CallbackQuery != nil:
		return b.handleCallback(ctx, up.CallbackQuery)
	case up.Message != nil:
		return b.handleMessage(ctx, up.Message)
	}
	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *telegram.Message) error {
	u := userFrom(msg.Chat, msg.From)

	switch {
	case msg.Contact != nil:
		return b.send(ctx, u.ChatID, b.co.Submit(ctx, u, survey.Input{Phone: msg.Contact.PhoneNumber}))
	case isCommand(msg.Text, "start"):
		return b.send(ctx, u.ChatID, []survey.Prompt{survey.Greeting()})
	case isCommand(msg.Text, "cancel"):
		return b.send(ctx, u.ChatID, []survey.Prompt{b.co.Cancel(u)})
	case isCommand(msg.Text, "help"):
		return b.send(ctx, u.ChatID, []survey.Prompt{{Text: helpText}})
	case strings.HasPrefix(strings.TrimSpace(msg.Text), "/"):
		// Unknown command: restate the help text, not an error.
		return b.send(ctx, u.ChatID, []survey.Prompt{{Text: helpText}})
	case strings.TrimSpace(msg.Text) != "":
		return b.send(ctx, u.ChatID, b.co.Submit(ctx, u, survey.Input{Text: msg.Text}))
	}
	return nil
}

func (b *Bot) handleCallback(ctx context.Context, cb *telegram.CallbackQuery) error {
	if cb.Message == nil {
		return b.client.AnswerCallbackQuery(ctx, cb.ID, "")
	}
	u := userFrom(cb.Message.Chat, cb.From)

	var prompts []survey.Prompt
	ack := ""

	switch data := cb.Data; {
	case data == cbStartSurvey:
		prompts = b.co.Start(ctx, u)
	case data == cbLeaveContact:
		var err error
		prompts, err = b.co.SkipToContact(u)
		if err != nil {
			ack = "Сейчас это недоступно"
		}
	case data == cbCancel:
		prompts = []survey.Prompt{b.co.Cancel(u)}
	case data == cbMultiDone:
		var err error
		prompts, err = b.co.Done(ctx, u)
		if err != nil {
			// Stale button from an earlier question; just dismiss.
			return b.client.AnswerCallbackQuery(ctx, cb.ID, "")
		}
	case strings.HasPrefix(data, cbChoicePrefix):
		prompts = b.co.Submit(ctx, u, survey.Input{Choice: strings.TrimPrefix(data, cbChoicePrefix)})
	case strings.HasPrefix(data, cbOptionPrefix):
		return b.toggleOption(ctx, cb, u, strings.TrimPrefix(data, cbOptionPrefix))
	}

	if err := b.client.AnswerCallbackQuery(ctx, cb.ID, ack); err != nil {
		b.log.Warn("answer callback failed", zap.Error(err))
	}
	return b.send(ctx, u.ChatID, prompts)
}

func (b *Bot) toggleOption(ctx context.Context, cb *telegram.CallbackQuery, u survey.User, option string) error {
	p, err := b.co.Toggle(u, option)
	if err != nil {
		return b.client.AnswerCallbackQuery(ctx, cb.ID, "")
	}
	if err := b.client.EditMessageReplyMarkup(ctx, u.ChatID, cb.Message.MessageID, multiMarkup(p.Options)); err != nil {
		return fmt.Errorf("refresh keyboard: %w", err)
	}
	return b.client.AnswerCallbackQuery(ctx, cb.ID, "Обновлено")
}

func (b *Bot) send(ctx context.Context, chatID int64, prompts []survey.Prompt) error {
	for _, p := range prompts {
		if p.Edit {
			// In-place keyboard edits are handled at the callback site.
			continue
		}
		if _, err := b.client.SendMessage(ctx, chatID, p.Text, markupFor(p)); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

func userFrom(chat telegram.Chat, from *telegram.BotUser) survey.User {
	u := survey.User{ChatID: chat.ID}
	if from != nil {
		u.Username = from.Username
	}
	return u
}

func isCommand(text, name string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return false
	}
	token := strings.Fields(t)[0]
	if token == "/"+name {
		return true
	}
	return strings.HasPrefix(token, "/"+name+"@") && len(token) > len("/"+name+"@")
}
