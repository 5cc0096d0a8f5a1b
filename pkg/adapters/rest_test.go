package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shouni/nanobanana-studio/pkg/domain"
	"github.com/shouni/nanobanana-studio/pkg/normalizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNanobananaREST_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("Gemini モデルは generateContent を呼び出し本文をそのまま返すのだ", func(t *testing.T) {
		var got contentRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1beta/models/gemini-2.5-flash-image:generateContent", r.URL.Path)
			assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"image/png","data":"iVBORw0KGgo="}}]}}]}`))
		}))
		defer srv.Close()

		seed := int64(7)
		adapter := NewNanobananaREST(srv.URL, "test-key", 5*time.Second)
		raw, err := adapter.Generate(ctx, "gemini-2.5-flash-image", "a cat wearing sunglasses", domain.GenerateOptions{
			AspectRatio: "16:9",
			Seed:        &seed,
			References:  []domain.InlineImage{{MimeType: "image/jpeg", Data: []byte{0xFF, 0xD8, 0xFF}}},
		})
		require.NoError(t, err)

		require.Len(t, got.Contents, 1)
		require.Len(t, got.Contents[0].Parts, 2)
		assert.Equal(t, "a cat wearing sunglasses", got.Contents[0].Parts[0].Text)
		assert.Equal(t, "image/jpeg", got.Contents[0].Parts[1].InlineData.MimeType)
		assert.Equal(t, "/9j/", got.Contents[0].Parts[1].InlineData.Data)
		assert.Equal(t, []string{"TEXT", "IMAGE"}, got.GenerationConfig.ResponseModalities)
		assert.Equal(t, "16:9", got.GenerationConfig.ImageConfig.AspectRatio)
		assert.Equal(t, int32(7), *got.GenerationConfig.Seed)

		assert.Equal(t, ProviderName, raw.Provider)
		assert.Equal(t, normalizer.ShapeContent, raw.Shape)
		result, err := normalizer.Normalize(raw)
		require.NoError(t, err)
		assert.Equal(t, &domain.GenerationResult{Kind: domain.KindInlineImage, MimeType: "image/png", Data: "iVBORw0KGgo="}, result)
	})

	t.Run("Imagen モデルは predict を呼び出す", func(t *testing.T) {
		var got predictRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1beta/models/imagen-4.0-generate-001:predict", r.URL.Path)
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_, _ = w.Write([]byte(`{"predictions":[{"bytesBase64Encoded":"AAAA","mimeType":"image/png"}]}`))
		}))
		defer srv.Close()

		adapter := NewNanobananaREST(srv.URL+"/", "test-key", 5*time.Second)
		raw, err := adapter.Generate(ctx, "imagen-4.0-generate-001", "a lighthouse", domain.GenerateOptions{Width: 1080, Height: 1920})
		require.NoError(t, err)

		assert.Equal(t, []predictInstance{{Prompt: "a lighthouse"}}, got.Instances)
		assert.Equal(t, 1, got.Parameters.SampleCount)
		assert.Equal(t, "9:16", got.Parameters.AspectRatio)
		assert.Nil(t, got.Parameters.Seed)

		assert.Equal(t, normalizer.ShapePrediction, raw.Shape)
		result, err := normalizer.Normalize(raw)
		require.NoError(t, err)
		assert.Equal(t, "AAAA", result.Data)
	})

	t.Run("エラー応答はプロバイダーのメッセージを保持した ProviderError になる", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Resource has been exhausted (e.g. check quota).","status":"RESOURCE_EXHAUSTED"}}`))
		}))
		defer srv.Close()

		adapter := NewNanobananaREST(srv.URL, "test-key", 5*time.Second)
		raw, err := adapter.Generate(ctx, "gemini-2.5-flash-image", "prompt", domain.GenerateOptions{})
		assert.Nil(t, raw)

		var pe *domain.ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, http.StatusTooManyRequests, pe.StatusCode)
		assert.Equal(t, "Resource has been exhausted (e.g. check quota).", pe.Detail)
		assert.NotErrorIs(t, err, domain.ErrUnrecognizedResponseShape)
	})

	t.Run("JSON でないエラー本文はそのまま詳細に入れる", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := NewNanobananaREST(srv.URL, "k", 5*time.Second).Generate(ctx, "gemini-3-pro-image-preview", "p", domain.GenerateOptions{})

		var pe *domain.ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "upstream unavailable", pe.Detail)
	})

	t.Run("接続できない場合も ProviderError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := srv.URL
		srv.Close()

		_, err := NewNanobananaREST(url, "k", time.Second).Generate(ctx, "gemini-2.5-flash-image", "p", domain.GenerateOptions{})

		var pe *domain.ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Zero(t, pe.StatusCode)
		assert.Error(t, pe.Err)
	})
}
