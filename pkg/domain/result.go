package domain

import (
	"encoding/base64"
	"fmt"
)

// ResultKind は GenerationResult のペイロード種別です。
type ResultKind string

const (
	KindInlineImage ResultKind = "inline-image"
	KindText        ResultKind = "text"
)

// GenerationResult はすべてのプロバイダー応答を正規化した結果です。
// Kind が KindInlineImage の場合、Data は base64 エンコード済みの画像です。
// KindText の場合、Data は URL またはテキストそのものです。
type GenerationResult struct {
	Kind     ResultKind `json:"type"`
	MimeType string     `json:"mimeType,omitempty"`
	Data     string     `json:"data"`
}

// NewInlineImage は base64 画像の結果を生成します。不変条件を満たさない場合はエラーを返します。
func NewInlineImage(mimeType, data string) (*GenerationResult, error) {
	r := &GenerationResult{Kind: KindInlineImage, MimeType: mimeType, Data: data}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewText はテキスト（または URL）の結果を生成します。
func NewText(text string) *GenerationResult {
	return &GenerationResult{Kind: KindText, Data: text}
}

// Validate は種別ごとの不変条件を検証します。
func (r *GenerationResult) Validate() error {
	switch r.Kind {
	case KindInlineImage:
		if r.MimeType == "" {
			return fmt.Errorf("inline-image result requires a mime type")
		}
		if r.Data == "" {
			return fmt.Errorf("inline-image result requires data")
		}
		if _, err := base64.StdEncoding.DecodeString(r.Data); err != nil {
			return fmt.Errorf("inline-image data is not valid base64: %w", err)
		}
	case KindText:
		if r.MimeType != "" {
			return fmt.Errorf("text result must not carry a mime type")
		}
	default:
		return fmt.Errorf("unknown result kind: %q", r.Kind)
	}
	return nil
}

// IsImage は結果が画像かどうかを返します。
func (r *GenerationResult) IsImage() bool {
	return r.Kind == KindInlineImage
}

// Decode は画像結果の生バイト列を返します。
func (r *GenerationResult) Decode() ([]byte, error) {
	if r.Kind != KindInlineImage {
		return nil, fmt.Errorf("result kind %q has no image bytes", r.Kind)
	}
	return base64.StdEncoding.DecodeString(r.Data)
}
