// Package telegram is a typed client for the part of the Telegram Bot API
// the survey bot uses. It talks plain HTTPS to api.telegram.org; there is
// no session state beyond the caller-supplied update offset.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultEndpoint = "https://api.telegram.org"

type Client struct {
	baseURL string
	client  *http.Client
}

type Option func(*Client)

// WithEndpoint points the client at a different API host, mainly for
// tests.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(endpoint, "/")
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.client = h
	}
}

func NewClient(token string, opts ...Option) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf(
			"telegram.bot_token is required.\n" +
				"First-time setup:\n" +
				"1) Open Telegram and chat with @BotFather\n" +
				"2) Run /newbot and copy the bot token\n" +
				"3) Run: `fleetpoll config set telegram.bot_token \"<BOT_TOKEN>\"` (or export BOT_TOKEN)",
		)
	}

	c := &Client{
		baseURL: defaultEndpoint,
		client: &http.Client{
			// Must exceed the getUpdates long-poll ceiling of 50s.
			Timeout: 65 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.baseURL = c.baseURL + "/bot" + token
	return c, nil
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// call POSTs one Bot API method and decodes its result into out, which may
// be nil when the result does not matter.
func (c *Client) call(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("telegram %s status %d: %s", method, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var ar apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return err
	}
	if !ar.OK {
		if ar.Description != "" {
			return fmt.Errorf("telegram %s failed: %s", method, ar.Description)
		}
		return fmt.Errorf("telegram %s failed", method)
	}
	if out != nil && len(ar.Result) > 0 {
		if err := json.Unmarshal(ar.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}

// SendMessage sends text with optional reply markup and returns the sent
// message ID.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, markup any) (int64, error) {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if markup != nil {
		payload["reply_markup"] = markup
	}

	var msg Message
	if err := c.call(ctx, "sendMessage", payload, &msg); err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// GetUpdates long-polls for updates past the given offset. timeoutSeconds
// is clamped to the API's 50-second ceiling.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSeconds int, allowedUpdates []string) ([]Update, error) {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 1
	} else if timeoutSeconds > 50 {
		timeoutSeconds = 50
	}
	payload := map[string]any{
		"timeout": timeoutSeconds,
	}
	if offset > 0 {
		payload["offset"] = offset
	}
	if len(allowedUpdates) > 0 {
		payload["allowed_updates"] = allowedUpdates
	}

	var updates []Update
	if err := c.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	payload := map[string]any{
		"callback_query_id": callbackID,
	}
	if text != "" {
		payload["text"] = text
	}
	return c.call(ctx, "answerCallbackQuery", payload, nil)
}

func (c *Client) EditMessageReplyMarkup(ctx context.Context, chatID, messageID int64, markup any) error {
	payload := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}
	if markup != nil {
		payload["reply_markup"] = markup
	}
	return c.call(ctx, "editMessageReplyMarkup", payload, nil)
}

func (c *Client) SetWebhook(ctx context.Context, url string, dropPending bool) error {
	payload := map[string]any{
		"url":                  url,
		"drop_pending_updates": dropPending,
		"allowed_updates":      []string{"message", "callback_query"},
	}
	return c.call(ctx, "setWebhook", payload, nil)
}

func (c *Client) DeleteWebhook(ctx context.Context, dropPending bool) error {
	payload := map[string]any{
		"drop_pending_updates": dropPending,
	}
	return c.call(ctx, "deleteWebhook", payload, nil)
}

func (c *Client) GetWebhookInfo(ctx context.Context) (WebhookInfo, error) {
	var info WebhookInfo
	if err := c.call(ctx, "getWebhookInfo", map[string]any{}, &info); err != nil {
		return WebhookInfo{}, err
	}
	return info, nil
}

// GetMe verifies the token and reports the bot account.
func (c *Client) GetMe(ctx context.Context) (BotUser, error) {
	var me BotUser
	if err := c.call(ctx, "getMe", map[string]any{}, &me); err != nil {
		return BotUser{}, err
	}
	return me, nil
}
