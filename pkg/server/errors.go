package server

import (
	"errors"
	"net/http"

	"github.com/shouni/nanobanana-studio/pkg/domain"
)

// generationStatus は生成エラーを HTTP ステータスに対応付けます。
func generationStatus(err error) int {
	var providerErr *domain.ProviderError
	switch {
	case errors.Is(err, domain.ErrModelNotFound):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrProviderNotInitialized):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrUnrecognizedResponseShape):
		return http.StatusBadGateway
	case errors.As(err, &providerErr):
		if providerErr.StatusCode == http.StatusTooManyRequests {
			return http.StatusTooManyRequests
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// unknownModelLabel は登録されていないモデル id をメトリクスでまとめるラベルです。
const unknownModelLabel = "unknown"

// modelLabel はメトリクスのモデルラベルを返します。
// 未登録のモデル id はクライアントが自由に送れるため、そのままラベルにしません。
func modelLabel(model string, err error) string {
	if errors.Is(err, domain.ErrModelNotFound) {
		return unknownModelLabel
	}
	return model
}
