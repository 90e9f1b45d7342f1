package bot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/akramov/fleetpoll/survey"
	"github.com/akramov/fleetpoll/telegram"
)

type recordingSink struct {
	mu   sync.Mutex
	rows [][]string
}

func (r *recordingSink) Name() string { return "recorder" }

func (r *recordingSink) Append(_ context.Context, row []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, row)
	return nil
}

func (r *recordingSink) Close() error { return nil }

type botAPIMock struct {
	mu        sync.Mutex
	nextMsgID int64

	sentTexts   []string
	sentMarkups []json.RawMessage
	editCount   int
	ackTexts    []string
}

func (m *botAPIMock) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var payload map[string]json.RawMessage
	_ = json.NewDecoder(r.Body).Decode(&payload)

	w.Header().Set("Content-Type", "application/json")

	switch path.Base(r.URL.Path) {
	case "sendMessage":
		var text string
		_ = json.Unmarshal(payload["text"], &text)

		m.mu.Lock()
		m.sentTexts = append(m.sentTexts, text)
		m.sentMarkups = append(m.sentMarkups, payload["reply_markup"])
		m.nextMsgID++
		msgID := m.nextMsgID
		m.mu.Unlock()

		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"message_id": msgID},
		})
	case "editMessageReplyMarkup":
		m.mu.Lock()
		m.editCount++
		m.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": true})
	case "answerCallbackQuery":
		var text string
		_ = json.Unmarshal(payload["text"], &text)
		m.mu.Lock()
		m.ackTexts = append(m.ackTexts, text)
		m.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": true})
	default:
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": true})
	}
}

func (m *botAPIMock) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sentTexts...)
}

func (m *botAPIMock) lastText(t *testing.T) string {
	t.Helper()
	texts := m.texts()
	if len(texts) == 0 {
		t.Fatalf("no messages sent")
	}
	return texts[len(texts)-1]
}

func testScript() survey.Script {
	return survey.Script{Questions: []survey.Question{
		{Key: "city", Text: "В каком городе вы работаете?", Kind: survey.KindText, AllowSkip: true},
		{Key: "features", Text: "Какие функции важны?", Kind: survey.KindMulti, Options: []string{"Оплата", "Скоринг"}},
		{Key: "pilot", Text: "Готовы участвовать в пилоте?", Kind: survey.KindSingle, Options: []string{"Да", "Нет"}},
		{Key: "contact_phone", Text: "Оставьте номер телефона.", Kind: survey.KindPhone, Contact: true},
	}}
}

func newTestBot(t *testing.T) (*Bot, *botAPIMock, *recordingSink) {
	t.Helper()
	mock := &botAPIMock{nextMsgID: 100}
	srv := httptest.NewServer(mock)
	t.Cleanup(srv.Close)

	client, err := telegram.NewClient("test-token", telegram.WithEndpoint(srv.URL), telegram.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	script := testScript()
	if err := script.Validate(); err != nil {
		t.Fatalf("test script invalid: %v", err)
	}
	sink := &recordingSink{}
	co := survey.NewCoordinator(script, sink, zap.NewNop())
	return New(client, co, zap.NewNop()), mock, sink
}

func messageUpdate(chatID int64, username, text string) telegram.Update {
	return telegram.Update{
		UpdateID: 1,
		Message: &telegram.Message{
			MessageID: 10,
			Text:      text,
			Chat:      telegram.Chat{ID: chatID},
			From:      &telegram.BotUser{ID: chatID, Username: username},
		},
	}
}

func callbackUpdate(chatID int64, username, data string) telegram.Update {
	return telegram.Update{
		UpdateID: 1,
		CallbackQuery: &telegram.CallbackQuery{
			ID:   "cb1",
			Data: data,
			From: &telegram.BotUser{ID: chatID, Username: username},
			Message: &telegram.Message{
				MessageID: 10,
				Chat:      telegram.Chat{ID: chatID},
			},
		},
	}
}

func TestStartCommandShowsMenu(t *testing.T) {
	b, mock, _ := newTestBot(t)
	ctx := context.Background()

	if err := b.HandleUpdate(ctx, messageUpdate(7, "driver", "/start")); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}

	if !strings.Contains(mock.lastText(t), "Привет") {
		t.Fatalf("expected greeting, got %q", mock.lastText(t))
	}
	var markup telegram.InlineKeyboardMarkup
	if err := json.Unmarshal(mock.sentMarkups[0], &markup); err != nil {
		t.Fatalf("menu markup: %v", err)
	}
	if len(markup.InlineKeyboard) != 2 || markup.InlineKeyboard[0][0].CallbackData != cbStartSurvey {
		t.Fatalf("unexpected menu markup: %+v", markup)
	}
}

func TestFullSurveyOverUpdates(t *testing.T) {
	b, mock, sink := newTestBot(t)
	ctx := context.Background()

	steps := []telegram.Update{
		callbackUpdate(7, "driver", cbStartSurvey),
		messageUpdate(7, "driver", "Ташкент"),
		callbackUpdate(7, "driver", cbOptionPrefix+"Оплата"),
		callbackUpdate(7, "driver", cbMultiDone),
		callbackUpdate(7, "driver", cbChoicePrefix+"Да"),
	}
	for i, up := range steps {
		if err := b.HandleUpdate(ctx, up); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	// Phone arrives as a shared contact.
	contact := messageUpdate(7, "driver", "")
	contact.Message.Contact = &telegram.Contact{PhoneNumber: "+998901234567"}
	if err := b.HandleUpdate(ctx, contact); err != nil {
		t.Fatalf("contact step: %v", err)
	}

	if len(sink.rows) != 1 {
		t.Fatalf("expected one persisted row, got %d", len(sink.rows))
	}
	row := sink.rows[0]
	if row[2] != "@driver" || row[3] != "Ташкент" || row[4] != "Оплата" || row[5] != "Да" || row[6] != "+998901234567" {
		t.Fatalf("unexpected row: %v", row)
	}

	mock.mu.Lock()
	edits := mock.editCount
	mock.mu.Unlock()
	if edits != 1 {
		t.Fatalf("expected one keyboard edit for the toggle, got %d", edits)
	}
	if !strings.Contains(mock.lastText(t), "сохранены") {
		t.Fatalf("expected saved ack, got %q", mock.lastText(t))
	}
}

func TestPlainTextStartsImplicitly(t *testing.T) {
	b, mock, _ := newTestBot(t)
	ctx := context.Background()

	if err := b.HandleUpdate(ctx, messageUpdate(7, "driver", "привет")); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if !strings.Contains(mock.lastText(t), "городе") {
		t.Fatalf("expected first question, got %q", mock.lastText(t))
	}
}

func TestLeaveContactShortcut(t *testing.T) {
	b, mock, sink := newTestBot(t)
	ctx := context.Background()

	if err := b.HandleUpdate(ctx, callbackUpdate(7, "driver", cbLeaveContact)); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if !strings.Contains(mock.lastText(t), "номер телефона") {
		t.Fatalf("expected contact question, got %q", mock.lastText(t))
	}

	contact := messageUpdate(7, "driver", "")
	contact.Message.Contact = &telegram.Contact{PhoneNumber: "+998"}
	if err := b.HandleUpdate(ctx, contact); err != nil {
		t.Fatalf("contact: %v", err)
	}

	if len(sink.rows) != 1 {
		t.Fatalf("expected one row, got %d", len(sink.rows))
	}
	if row := sink.rows[0]; row[3] != "" || row[6] != "+998" {
		t.Fatalf("unexpected row: %v", row)
	}
}

func TestLeaveContactRejectedMidSurvey(t *testing.T) {
	b, mock, _ := newTestBot(t)
	ctx := context.Background()

	// Answer city so the current question no longer allows the shortcut.
	if err := b.HandleUpdate(ctx, callbackUpdate(7, "driver", cbStartSurvey)); err != nil {
		t.Fatal(err)
	}
	if err := b.HandleUpdate(ctx, messageUpdate(7, "driver", "Ташкент")); err != nil {
		t.Fatal(err)
	}
	before := len(mock.texts())

	if err := b.HandleUpdate(ctx, callbackUpdate(7, "driver", cbLeaveContact)); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}

	mock.mu.Lock()
	acks := append([]string(nil), mock.ackTexts...)
	mock.mu.Unlock()
	if len(acks) == 0 || acks[len(acks)-1] != "Сейчас это недоступно" {
		t.Fatalf("expected rejection ack, got %v", acks)
	}
	if len(mock.texts()) != before {
		t.Fatalf("rejected shortcut should not send messages")
	}
}

func TestCancelCallback(t *testing.T) {
	b, mock, sink := newTestBot(t)
	ctx := context.Background()

	if err := b.HandleUpdate(ctx, callbackUpdate(7, "driver", cbStartSurvey)); err != nil {
		t.Fatal(err)
	}
	if err := b.HandleUpdate(ctx, callbackUpdate(7, "driver", cbCancel)); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !strings.Contains(mock.lastText(t), "остановил") {
		t.Fatalf("expected cancel message, got %q", mock.lastText(t))
	}
	if len(sink.rows) != 0 {
		t.Fatalf("cancel persisted a row")
	}
}

func TestUnknownCommandShowsHelp(t *testing.T) {
	b, mock, _ := newTestBot(t)
	ctx := context.Background()

	if err := b.HandleUpdate(ctx, messageUpdate(7, "driver", "/frobnicate")); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if mock.lastText(t) != helpText {
		t.Fatalf("expected help text, got %q", mock.lastText(t))
	}
}

func TestStaleDoneButtonDismissed(t *testing.T) {
	b, mock, sink := newTestBot(t)
	ctx := context.Background()

	// No session at all: the done button is stale.
	if err := b.HandleUpdate(ctx, callbackUpdate(7, "driver", cbMultiDone)); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if len(mock.texts()) != 0 {
		t.Fatalf("stale button should not send messages: %v", mock.texts())
	}
	if len(sink.rows) != 0 {
		t.Fatalf("stale button persisted a row")
	}
}

func TestIsCommand(t *testing.T) {
	cases := []struct {
		text string
		name string
		want bool
	}{
		{"/start", "start", true},
		{" /start ", "start", true},
		{"/START", "start", true},
		{"/start@fleetpoll_bot", "start", true},
		{"/start@", "start", false},
		{"/started", "start", false},
		{"start", "start", false},
		{"", "start", false},
		{"/cancel", "start", false},
	}
	for _, tc := range cases {
		if got := isCommand(tc.text, tc.name); got != tc.want {
			t.Errorf("isCommand(%q, %q) = %v, want %v", tc.text, tc.name, got, tc.want)
		}
	}
}
