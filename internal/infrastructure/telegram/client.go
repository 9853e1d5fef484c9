// Package telegram is the operator conversation: it delivers inbound events
// via getUpdates and presents drafts with their approval buttons.
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

	"NewsPublisher/internal/ports"
)

const defaultBaseURL = "https://api.telegram.org"

// Update is one inbound event from the operator channel.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message"`
	CallbackQuery *CallbackQuery `json:"callback_query"`
}

// Message is a plain text message.
type Message struct {
	Text string `json:"text"`
	Chat Chat   `json:"chat"`
}

// CallbackQuery is a button press.
type CallbackQuery struct {
	ID      string   `json:"id"`
	Data    string   `json:"data"`
	Message *Message `json:"message"`
}

// Chat identifies the conversation an event belongs to.
type Chat struct {
	ID int64 `json:"id"`
}

// Client talks to the bot API for a single fixed operator chat.
type Client struct {
	baseURL     string
	botToken    string
	chatID      string
	longPollSec int
	client      *http.Client
}

var _ ports.OperatorChannel = (*Client)(nil)

// NewClient registers bot token and operator chat identifier.
func NewClient(botToken, chatID string, longPollSec int) *Client {
	if longPollSec <= 0 {
		longPollSec = 2
	}
	return &Client{
		baseURL:     defaultBaseURL,
		botToken:    botToken,
		chatID:      chatID,
		longPollSec: longPollSec,
		client:      &http.Client{Timeout: time.Duration(longPollSec+10) * time.Second},
	}
}

// SetBaseURL points the client at a test server.
func (c *Client) SetBaseURL(url string) {
	c.baseURL = strings.TrimSuffix(url, "/")
}

// ChatID returns the fixed operator chat identifier.
func (c *Client) ChatID() string {
	return c.chatID
}

// Updates long-polls for messages and button presses at the given offset.
func (c *Client) Updates(ctx context.Context, offset int64) ([]Update, error) {
	var resp struct {
		OK     bool     `json:"ok"`
		Result []Update `json:"result"`
	}
	err := c.call(ctx, "getUpdates", map[string]any{
		"offset":          offset,
		"timeout":         c.longPollSec,
		"allowed_updates": []string{"message", "callback_query"},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, fmt.Errorf("telegram getUpdates not ok")
	}
	return resp.Result, nil
}

// SendMessage posts an HTML message to the operator chat.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	return c.call(ctx, "sendMessage", map[string]any{
		"chat_id":    c.chatID,
		"text":       text,
		"parse_mode": "HTML",
	}, nil)
}

// SendDraft presents the pending draft with the approval buttons, as a photo
// message when an image is attached.
func (c *Client) SendDraft(ctx context.Context, content, imageURL string) error {
	if imageURL == "" {
		return c.call(ctx, "sendMessage", map[string]any{
			"chat_id":      c.chatID,
			"text":         "✍️ <b>DRAFT</b>\n\n" + content,
			"parse_mode":   "HTML",
			"reply_markup": approvalButtons(),
		}, nil)
	}

	return c.call(ctx, "sendPhoto", map[string]any{
		"chat_id":      c.chatID,
		"photo":        imageURL,
		"caption":      "✍️ <b>DRAFT</b>\n\n" + captionExcerpt(content),
		"parse_mode":   "HTML",
		"reply_markup": approvalButtons(),
	}, nil)
}

// AnswerCallback acknowledges a button press so the client stops spinning.
func (c *Client) AnswerCallback(ctx context.Context, callbackID string) error {
	return c.call(ctx, "answerCallbackQuery", map[string]any{
		"callback_query_id": callbackID,
		"show_alert":        false,
	}, nil)
}

func approvalButtons() map[string]any {
	return map[string]any{
		"inline_keyboard": [][]map[string]string{{
			{"text": "✅ Publish", "callback_data": "publish"},
			{"text": "✏️ Edit text", "callback_data": "modify"},
			{"text": "🖼 Change image", "callback_data": "modify_image"},
			{"text": "❌ Cancel", "callback_data": "cancel"},
		}},
	}
}

// captionExcerpt trims long drafts to fit the photo-caption limit, cutting
// at a line boundary.
func captionExcerpt(content string) string {
	const limit = 800
	if len(content) <= limit {
		return content
	}
	cut := content[:limit]
	if i := strings.LastIndex(cut, "\n"); i > 0 {
		cut = cut[:i]
	}
	return cut
}

func (c *Client) call(ctx context.Context, method string, payload map[string]any, out any) error {
	if c.botToken == "" || c.chatID == "" {
		return fmt.Errorf("telegram client misconfigured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", method, err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.botToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram %s error %s: %s", method, resp.Status, strings.TrimSpace(string(raw)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}
