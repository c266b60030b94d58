package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

var telegramAPIBase = "https://api.telegram.org"

// Telegram posts messages through the Bot API sendMessage method.
type Telegram struct {
	token  string
	chatID string
	client *resty.Client
}

// NewTelegram returns a Telegram notifier for one chat.
func NewTelegram(token, chatID string) *Telegram {
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json")
	return &Telegram{token: strings.TrimSpace(token), chatID: strings.TrimSpace(chatID), client: client}
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// Name identifies the notifier in logs.
func (t *Telegram) Name() string { return "telegram" }

// Notify sends msg as Markdown, split to fit the API limit. A part rejected for
// Markdown entity errors is resent as plain text.
func (t *Telegram) Notify(ctx context.Context, msg Message) error {
	if t.token == "" || t.chatID == "" {
		return fmt.Errorf("telegram: %w", ErrNotConfigured)
	}
	for i, part := range msg.Split(TelegramLimit) {
		err := t.send(ctx, part, "Markdown")
		if err != nil && strings.Contains(strings.ToLower(err.Error()), "can't parse entities") {
			err = t.send(ctx, part, "")
		}
		if err != nil {
			return fmt.Errorf("telegram part %d: %w", i+1, err)
		}
	}
	return nil
}

func (t *Telegram) send(ctx context.Context, text, parseMode string) error {
	var out sendMessageResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(sendMessageRequest{
			ChatID:                t.chatID,
			Text:                  text,
			ParseMode:             parseMode,
			DisableWebPagePreview: true,
		}).
		SetResult(&out).
		SetError(&out).
		Post(telegramAPIBase + "/bot" + t.token + "/sendMessage")
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	if resp.IsError() || !out.OK {
		return fmt.Errorf("http status %d: %s", resp.StatusCode(), out.Description)
	}
	return nil
}
