package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// EventImageGenerated は生成完了時に送るイベント名です。
const EventImageGenerated = "image_generated"

// WebhookPayload はカスタムサーバーに送る本文です。
type WebhookPayload struct {
	Event     string          `json:"event"`
	ImageData string          `json:"image_data"`
	MimeType  string          `json:"mime_type"`
	Metadata  RequestMetadata `json:"metadata"`
	B2Folder  *string         `json:"b2_folder"`
}

// Webhook はカスタムサーバーへ JSON を POST します。
type Webhook struct {
	client *resty.Client
	url    string
}

// NewWebhook は Webhook を生成します。
func NewWebhook(url string, timeout time.Duration) *Webhook {
	return &Webhook{
		client: resty.New().SetTimeout(timeout),
		url:    url,
	}
}

// Notify はペイロードを送信します。2xx 以外の応答はエラーです。
func (w *Webhook) Notify(ctx context.Context, payload WebhookPayload) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("webhook の送信に失敗しました: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook が失敗ステータスを返しました: %d", resp.StatusCode())
	}
	return nil
}
