package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"
	"time"
)

type apiMock struct {
	mu         sync.Mutex
	statusCode int
	failWith   string

	sendPayloads []map[string]any
	nextMsgID    int64
	updates      []Update
	payloads     map[string][]map[string]any
}

func newAPIMock() *apiMock {
	return &apiMock{
		statusCode: http.StatusOK,
		nextMsgID:  1000,
		payloads:   make(map[string][]map[string]any),
	}
}

func (m *apiMock) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := path.Base(r.URL.Path)

	var payload map[string]any
	_ = json.NewDecoder(r.Body).Decode(&payload)

	m.mu.Lock()
	m.payloads[method] = append(m.payloads[method], payload)
	status := m.statusCode
	failWith := m.failWith
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("upstream error"))
		return
	}
	if failWith != "" {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": failWith})
		return
	}

	switch method {
	case "sendMessage":
		m.mu.Lock()
		m.sendPayloads = append(m.sendPayloads, payload)
		m.nextMsgID++
		msgID := m.nextMsgID
		m.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"message_id": msgID},
		})
	case "getUpdates":
		m.mu.Lock()
		updates := m.updates
		m.updates = nil
		m.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": updates})
	case "getMe":
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"id": 42, "is_bot": true, "username": "fleetpoll_bot"},
		})
	case "getWebhookInfo":
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"url": "https://example.com/webhook", "pending_update_count": 3},
		})
	default:
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": true})
	}
}

func (m *apiMock) lastPayload(t *testing.T, method string) map[string]any {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	got := m.payloads[method]
	if len(got) == 0 {
		t.Fatalf("no %s calls recorded", method)
	}
	return got[len(got)-1]
}

func newTestClient(t *testing.T, mock *apiMock) *Client {
	t.Helper()
	srv := httptest.NewServer(mock)
	t.Cleanup(srv.Close)
	c, err := NewClient("test-token", WithEndpoint(srv.URL), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestDefaultTimeoutCoversLongPoll(t *testing.T) {
	c, err := NewClient("test-token")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	// getUpdates clamps its long-poll timeout to 50s; the transport
	// timeout has to outlive that or every poll dies mid-flight.
	if c.client.Timeout <= 50*time.Second {
		t.Fatalf("http timeout %v does not cover the 50s long-poll ceiling", c.client.Timeout)
	}
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient("  ")
	if err == nil || !strings.Contains(err.Error(), "BotFather") {
		t.Fatalf("expected setup guidance error, got %v", err)
	}
}

func TestSendMessage(t *testing.T) {
	mock := newAPIMock()
	c := newTestClient(t, mock)

	markup := InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{
		{{Text: "Да", CallbackData: "choice:Да"}},
	}}
	msgID, err := c.SendMessage(context.Background(), 7, "Готовы участвовать в пилоте?", markup)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if msgID != 1001 {
		t.Fatalf("message id = %d, want 1001", msgID)
	}

	payload := mock.lastPayload(t, "sendMessage")
	if payload["chat_id"].(float64) != 7 {
		t.Fatalf("unexpected chat_id: %v", payload["chat_id"])
	}
	if payload["text"].(string) != "Готовы участвовать в пилоте?" {
		t.Fatalf("unexpected text: %v", payload["text"])
	}
	if _, ok := payload["reply_markup"]; !ok {
		t.Fatalf("reply_markup missing: %v", payload)
	}
}

func TestSendMessageWithoutMarkup(t *testing.T) {
	mock := newAPIMock()
	c := newTestClient(t, mock)

	if _, err := c.SendMessage(context.Background(), 7, "hi", nil); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if _, ok := mock.lastPayload(t, "sendMessage")["reply_markup"]; ok {
		t.Fatalf("reply_markup should be omitted when nil")
	}
}

func TestGetUpdates(t *testing.T) {
	mock := newAPIMock()
	mock.updates = []Update{
		{UpdateID: 12, Message: &Message{MessageID: 1, Text: "/start", Chat: Chat{ID: 7}}},
		{UpdateID: 13, CallbackQuery: &CallbackQuery{ID: "cb1", Data: "choice:Да"}},
	}
	c := newTestClient(t, mock)

	updates, err := c.GetUpdates(context.Background(), 12, 120, []string{"message", "callback_query"})
	if err != nil {
		t.Fatalf("GetUpdates: %v", err)
	}
	if len(updates) != 2 || updates[0].UpdateID != 12 || updates[1].CallbackQuery.Data != "choice:Да" {
		t.Fatalf("unexpected updates: %+v", updates)
	}

	payload := mock.lastPayload(t, "getUpdates")
	if payload["offset"].(float64) != 12 {
		t.Fatalf("offset not forwarded: %v", payload)
	}
	if payload["timeout"].(float64) != 50 {
		t.Fatalf("timeout should clamp to 50, got %v", payload["timeout"])
	}
}

func TestSetWebhook(t *testing.T) {
	mock := newAPIMock()
	c := newTestClient(t, mock)

	if err := c.SetWebhook(context.Background(), "https://example.com/webhook", true); err != nil {
		t.Fatalf("SetWebhook: %v", err)
	}

	payload := mock.lastPayload(t, "setWebhook")
	if payload["url"].(string) != "https://example.com/webhook" {
		t.Fatalf("unexpected url: %v", payload["url"])
	}
	if payload["drop_pending_updates"].(bool) != true {
		t.Fatalf("drop_pending_updates not set: %v", payload)
	}
	allowed, ok := payload["allowed_updates"].([]any)
	if !ok || len(allowed) != 2 {
		t.Fatalf("allowed_updates missing: %v", payload)
	}
}

func TestGetMeAndWebhookInfo(t *testing.T) {
	mock := newAPIMock()
	c := newTestClient(t, mock)

	me, err := c.GetMe(context.Background())
	if err != nil {
		t.Fatalf("GetMe: %v", err)
	}
	if me.ID != 42 || me.Username != "fleetpoll_bot" {
		t.Fatalf("unexpected bot user: %+v", me)
	}

	info, err := c.GetWebhookInfo(context.Background())
	if err != nil {
		t.Fatalf("GetWebhookInfo: %v", err)
	}
	if info.URL != "https://example.com/webhook" || info.PendingUpdateCount != 3 {
		t.Fatalf("unexpected webhook info: %+v", info)
	}
}

func TestAPIErrorSurfacesDescription(t *testing.T) {
	mock := newAPIMock()
	mock.failWith = "Bad Request: chat not found"
	c := newTestClient(t, mock)

	_, err := c.SendMessage(context.Background(), 7, "hi", nil)
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected API description in error, got %v", err)
	}
}

func TestHTTPErrorSurfacesStatus(t *testing.T) {
	mock := newAPIMock()
	mock.statusCode = http.StatusBadGateway
	c := newTestClient(t, mock)

	_, err := c.GetUpdates(context.Background(), 0, 1, nil)
	if err == nil || !strings.Contains(err.Error(), "status 502") {
		t.Fatalf("expected status error, got %v", err)
	}
}
