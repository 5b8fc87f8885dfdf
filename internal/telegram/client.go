// Package telegram is a minimal Telegram Bot API client: the notification
// layer needs sendMessage and nothing else.
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

	"measurehub_backend/platform/config"
	"measurehub_backend/platform/logger"
)

const defaultAPIBase = "https://api.telegram.org"

// Delivery identifies a delivered message; the notification deduplicator
// stores it as the delivery handle.
type Delivery struct {
	ChatID    int64
	MessageID int64
}

// Client talks to the Telegram Bot API. A nil *Client is safe to call and
// reports the transport as unconfigured instead of crashing.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *logger.Logger
}

type sendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
		Chat      struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"result"`
}

// NewClient creates a Telegram client, or nil when no bot token is configured.
func NewClient(cfg config.TelegramConfig, log *logger.Logger) *Client {
	if !cfg.IsTelegramEnabled() {
		return nil
	}

	base := cfg.GetTelegramAPIBase()
	if base == "" {
		base = defaultAPIBase
	}

	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		token:   cfg.GetTelegramBotToken(),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// SendMessage delivers text to a chat and returns the delivery handle.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) (Delivery, error) {
	if c == nil {
		return Delivery{}, fmt.Errorf("telegram transport not configured")
	}

	payload := sendMessageRequest{ChatID: chatID, Text: text, ParseMode: "HTML"}
	body, err := json.Marshal(payload)
	if err != nil {
		return Delivery{}, fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return Delivery{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Delivery{}, fmt.Errorf("telegram request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Delivery{}, fmt.Errorf("read telegram response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return Delivery{}, fmt.Errorf("telegram returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed sendMessageResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return Delivery{}, fmt.Errorf("decode telegram response: %w", err)
	}
	if !parsed.OK {
		return Delivery{}, fmt.Errorf("telegram rejected message: %s", parsed.Description)
	}

	c.log.Info("telegram message sent", "chatId", chatID, "messageId", parsed.Result.MessageID)
	return Delivery{ChatID: parsed.Result.Chat.ID, MessageID: parsed.Result.MessageID}, nil
}
