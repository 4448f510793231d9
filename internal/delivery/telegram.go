package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/briefing/internal/common"
	"github.com/ternarybob/briefing/internal/httpclient"
)

// ErrBotNotConfigured is returned when the bot token or chat id is missing
var ErrBotNotConfigured = errors.New("telegram bot not configured")

// TelegramBot broadcasts HTML-formatted messages through the Telegram Bot API
type TelegramBot struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
	logger  arbor.ILogger
}

type telegramResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// NewTelegramBot returns nil when the bot is not configured
func NewTelegramBot(config common.TelegramConfig, logger arbor.ILogger) *TelegramBot {
	if len(config.MissingKeys()) > 0 {
		return nil
	}
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &TelegramBot{
		token:   config.BotToken,
		chatID:  config.ChatID,
		baseURL: baseURL,
		client:  httpclient.NewDefaultHTTPClient(config.Timeout),
		logger:  logger,
	}
}

// Authenticate checks the token with getMe
func (b *TelegramBot) Authenticate(ctx context.Context) error {
	if b == nil {
		return ErrBotNotConfigured
	}
	_, err := b.call(ctx, http.MethodGet, "getMe", nil)
	if err != nil {
		return fmt.Errorf("telegram authentication failed: %w", err)
	}
	return nil
}

// Broadcast sends one message to the configured chat
func (b *TelegramBot) Broadcast(ctx context.Context, text string) error {
	if b == nil {
		return ErrBotNotConfigured
	}

	payload := map[string]interface{}{
		"chat_id":                  b.chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	if _, err := b.call(ctx, http.MethodPost, "sendMessage", payload); err != nil {
		return fmt.Errorf("telegram broadcast failed: %w", err)
	}

	b.logger.Info().Str("chat_id", b.chatID).Int("length", len(text)).Msg("Telegram broadcast sent")
	return nil
}

func (b *TelegramBot) call(ctx context.Context, method, endpoint string, payload interface{}) (*telegramResponse, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	url := fmt.Sprintf("%s/bot%s/%s", b.baseURL, b.token, endpoint)
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var result telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	if !result.OK {
		return &result, fmt.Errorf("telegram API error %d: %s", result.ErrorCode, result.Description)
	}
	return &result, nil
}
