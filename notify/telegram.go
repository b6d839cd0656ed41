package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"immo_scrooper/models"
)

const telegramAPI = "https://api.telegram.org"

// Telegram sends messages through the Bot API.
type Telegram struct {
	client  *http.Client
	baseURL string
	token   string
	chatID  string
}

func NewTelegram(client *http.Client, token, chatID string) *Telegram {
	if client == nil {
		client = http.DefaultClient
	}
	return &Telegram{client: client, baseURL: telegramAPI, token: token, chatID: chatID}
}

// WithBaseURL points the client at another Bot API host.
func (t *Telegram) WithBaseURL(u string) *Telegram {
	c := *t
	c.baseURL = u
	return &c
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *Telegram) Notify(ctx context.Context, l *models.NormalizedListing) error {
	return t.Send(ctx, Format(l))
}

// Send posts an HTML message to the configured chat.
func (t *Telegram) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: t.chatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var result apiResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return fmt.Errorf("telegram status %d: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !result.OK {
		return fmt.Errorf("telegram status %d: %s", resp.StatusCode, result.Description)
	}
	return nil
}
