package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shouni/nanobanana-studio/pkg/domain"
	"github.com/shouni/nanobanana-studio/pkg/imgutil"
)

const (
	// ReferenceQuality は参照画像を送信前に再圧縮する際の JPEG 品質です。
	ReferenceQuality = 75
	cacheKeyPrefix   = "reference:"
)

// ImageCacher は参照画像のバイト列キャッシュを抽象化するインターフェースです。
type ImageCacher interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, d time.Duration)
}

// Fetcher は URL からバイト列を取得するインターフェースです。
type Fetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// ReferenceLoader は参照画像 URL の検証・取得・キャッシュ・圧縮を担当します。
type ReferenceLoader struct {
	fetcher  Fetcher
	cache    ImageCacher
	cacheTTL time.Duration
	// validate は SSRF 対策の URL 検証です。テストでのみ差し替えます。
	validate func(rawURL string) (bool, error)
}

// NewReferenceLoader は依存関係を注入して ReferenceLoader を生成します。cache は nil を許容します。
func NewReferenceLoader(fetcher Fetcher, cache ImageCacher, cacheTTL time.Duration) *ReferenceLoader {
	return &ReferenceLoader{
		fetcher:  fetcher,
		cache:    cache,
		cacheTTL: cacheTTL,
		validate: isSafeURL,
	}
}

// Load は URL から参照画像を準備します。
// 取得に失敗した場合は警告を残して nil を返し、呼び出し元はテキストのみで続行します。
func (l *ReferenceLoader) Load(ctx context.Context, rawURL string) *domain.InlineImage {
	key := cacheKeyPrefix + rawURL
	if l.cache != nil {
		if data, found := l.cache.Get(ctx, key); found {
			return toInlineImage(ctx, data)
		}
	}

	// SSRF対策のバリデーション
	if safe, err := l.validate(rawURL); !safe || err != nil {
		slog.WarnContext(ctx, "SSRFの可能性がある、または不正なURLをブロックしました",
			"url", rawURL, "error", err)
		return nil
	}

	data, err := l.fetcher.FetchBytes(ctx, rawURL)
	if err != nil {
		slog.WarnContext(ctx, "参照画像のダウンロードに失敗しました。テキストのみで続行します", "url", rawURL, "error", err)
		return nil
	}

	if compressed, err := imgutil.CompressToJPEG(data, ReferenceQuality); err == nil {
		data = compressed
	} else {
		slog.DebugContext(ctx, "参照画像を圧縮できなかったため元のまま使用します", "url", rawURL, "error", err)
	}

	img := toInlineImage(ctx, data)
	if img != nil && l.cache != nil {
		l.cache.Set(ctx, key, data, l.cacheTTL)
	}
	return img
}

// toInlineImage はバイト列の MIME タイプを判定し、画像でなければ nil を返します。
func toInlineImage(ctx context.Context, data []byte) *domain.InlineImage {
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		slog.WarnContext(ctx, "MIMEタイプが画像ではないため参照画像として使用できません", "detected_mime_type", mimeType)
		return nil
	}
	return &domain.InlineImage{MimeType: mimeType, Data: data}
}

// seedToPtrInt32 は *int64 のシード値を SDK 用の *int32 に変換します。
// 範囲外の値は上位ビットが切り捨てられます。
func seedToPtrInt32(seed *int64) *int32 {
	if seed == nil {
		return nil
	}
	val := int32(*seed)
	return &val
}

// isSafeURL は SSRF 対策として URL を検証します。
// 名前解決されたすべての IP アドレスに対してプライベート IP チェックを行います。
func isSafeURL(rawURL string) (bool, error) {
	parsedURL, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return false, fmt.Errorf("URLパース失敗: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return false, fmt.Errorf("不許可スキーム: %s", parsedURL.Scheme)
	}

	host := parsedURL.Hostname()
	var ips []net.IP
	if ip := net.ParseIP(host); ip != nil {
		ips = []net.IP{ip}
	} else {
		resolved, err := net.LookupIP(host)
		if err != nil {
			return false, fmt.Errorf("名前解決失敗: %w", err)
		}
		ips = resolved
	}

	if len(ips) == 0 {
		return false, fmt.Errorf("IPが見つかりません")
	}
	for _, ip := range ips {
		if err := checkIP(ip); err != nil {
			return false, err
		}
	}
	return true, nil
}

// checkIP はプライベート・ループバック・リンクローカル・未指定のアドレスを拒否します。
func checkIP(ip net.IP) error {
	if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return fmt.Errorf("制限されたネットワークへのアクセスを検知: %s", ip.String())
	}
	return nil
}
