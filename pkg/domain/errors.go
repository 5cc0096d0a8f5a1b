package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnrecognizedResponseShape はプロバイダー応答がどの既知の形にも一致しないことを示します。
	ErrUnrecognizedResponseShape = errors.New("unrecognized response shape")
	// ErrUnsupportedImageFormat はメタデータ埋め込みに対応していない MIME タイプです。
	ErrUnsupportedImageFormat = errors.New("unsupported image format")
	// ErrMetadataEncoding は画像の再エンコードに失敗したことを示します。
	ErrMetadataEncoding = errors.New("metadata encoding failed")
	// ErrMetadataTooLarge はプロンプトがコンテナのメタデータ領域に収まらないことを示します。
	// ErrMetadataEncoding と併せてラップされます。
	ErrMetadataTooLarge = errors.New("metadata too large")
	// ErrImageDecoding は画像コンテナ自体を解析できなかったことを示します。
	ErrImageDecoding = errors.New("image decoding failed")

	ErrModelNotFound          = errors.New("model not found")
	ErrProviderNotInitialized = errors.New("provider is not initialized")
)

// ProviderError は通信・認証・クォータなどプロバイダー呼び出し自体の失敗です。
// Detail にはプロバイダーが返したメッセージをそのまま保持します。
type ProviderError struct {
	Provider   string
	StatusCode int
	Detail     string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s API Error", e.Provider)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
