package storage

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/shouni/nanobanana-studio/pkg/domain"
)

// 配信結果の状態
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Uploader はオブジェクトストレージへのアップロードを抽象化します。
type Uploader interface {
	Upload(ctx context.Context, folder string, objects []Object) (string, error)
}

// Notifier は Webhook 送信を抽象化します。
type Notifier interface {
	Notify(ctx context.Context, payload WebhookPayload) error
}

// RequestMetadata は生成リクエストの付帯情報です。
type RequestMetadata struct {
	IP        string `json:"ip"`
	UserAgent string `json:"userAgent"`
	Timestamp string `json:"timestamp"`
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
}

// Result は配信先ごとの結果です。無効な配信先は nil のままです。
// B2 にはフォルダー URL か "error"、Webhook には "success" か "error" が入ります。
type Result struct {
	B2      *string `json:"b2"`
	Webhook *string `json:"webhook"`
}

// Delivery は生成結果を B2 と Webhook に配信します。
// 配信の失敗は結果に記録するだけで、生成自体を失敗させません。
type Delivery struct {
	uploader Uploader
	notifier Notifier
	now      func() time.Time
}

// NewDelivery は Delivery を生成します。uploader と notifier はどちらも nil を許容します。
func NewDelivery(uploader Uploader, notifier Notifier) *Delivery {
	return &Delivery{uploader: uploader, notifier: notifier, now: time.Now}
}

// Process は画像結果を配信します。テキスト結果は何もしません。
func (d *Delivery) Process(ctx context.Context, result *domain.GenerationResult, prompt string, md RequestMetadata) Result {
	var out Result
	if result == nil || !result.IsImage() {
		return out
	}

	var folderURL *string
	if d.uploader != nil {
		url, err := d.upload(ctx, result, prompt, md)
		if err != nil {
			slog.ErrorContext(ctx, "B2 への保存に失敗しました", "error", err)
			out.B2 = ptr(StatusError)
		} else {
			out.B2 = &url
			folderURL = &url
		}
	}

	if d.notifier != nil {
		err := d.notifier.Notify(ctx, WebhookPayload{
			Event:     EventImageGenerated,
			ImageData: result.Data,
			MimeType:  result.MimeType,
			Metadata:  md,
			B2Folder:  folderURL,
		})
		if err != nil {
			slog.ErrorContext(ctx, "Webhook の送信に失敗しました", "error", err)
			out.Webhook = ptr(StatusError)
		} else {
			out.Webhook = ptr(StatusSuccess)
		}
	}
	return out
}

func (d *Delivery) upload(ctx context.Context, result *domain.GenerationResult, prompt string, md RequestMetadata) (string, error) {
	image, err := result.Decode()
	if err != nil {
		return "", err
	}
	metadataJSON, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return "", err
	}

	return d.uploader.Upload(ctx, d.folderName(), []Object{
		{Name: "image" + imageExtension(result.MimeType), Body: image, ContentType: result.MimeType},
		{Name: "prompt.txt", Body: []byte(prompt), ContentType: "text/plain"},
		{Name: "metadata.json", Body: metadataJSON, ContentType: "application/json"},
	})
}

// folderName は nanobanana/<YYYY-MM-DD>/<HH-MM-SS>-<8桁の16進> 形式のフォルダー名を返します。
func (d *Delivery) folderName() string {
	now := d.now().UTC()
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return "nanobanana/" + now.Format("2006-01-02") + "/" + now.Format("15-04-05") + "-" + id
}

func imageExtension(mimeType string) string {
	if m := mimetype.Lookup(mimeType); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	return ".bin"
}

func ptr(s string) *string {
	return &s
}
