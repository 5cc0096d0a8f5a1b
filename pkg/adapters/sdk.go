package adapters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shouni/nanobanana-studio/pkg/domain"
	"github.com/shouni/nanobanana-studio/pkg/normalizer"
	"google.golang.org/genai"
)

// modelsAPI は genai.Models のうちこのアダプターが使うメソッドです。
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateImages(ctx context.Context, model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

// NanobananaSDK は genai SDK 経由で Gemini / Imagen を呼び出すアダプターです。
type NanobananaSDK struct {
	models modelsAPI
}

// NewNanobananaSDK は genai クライアントを初期化してアダプターを生成します。
func NewNanobananaSDK(ctx context.Context, apiKey, baseURL string) (*NanobananaSDK, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("genai クライアントの初期化に失敗しました: %w", err)
	}
	return &NanobananaSDK{models: client.Models}, nil
}

// Name はプロバイダー名を返します。
func (a *NanobananaSDK) Name() string {
	return ProviderName
}

// Generate はモデルに応じて GenerateContent または GenerateImages を呼び出します。
func (a *NanobananaSDK) Generate(ctx context.Context, model, prompt string, opts domain.GenerateOptions) (*normalizer.RawResponse, error) {
	ratio := resolveAspectRatio(opts.AspectRatio, opts.Width, opts.Height)
	slog.InfoContext(ctx, "genai SDK で生成をリクエストします", "model", model, "references", len(opts.References))

	if isPredictModel(model) {
		resp, err := a.models.GenerateImages(ctx, model, prompt, &genai.GenerateImagesConfig{
			NumberOfImages: 1,
			AspectRatio:    ratio,
			Seed:           seedToPtrInt32(opts.Seed),
		})
		if err != nil {
			return nil, sdkProviderError(err)
		}
		return &normalizer.RawResponse{Provider: ProviderName, Shape: normalizer.ShapePrediction, Images: resp}, nil
	}

	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	for _, ref := range opts.References {
		parts = append(parts, genai.NewPartFromBytes(ref.Data, ref.MimeType))
	}

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
		Seed:               seedToPtrInt32(opts.Seed),
	}
	if ratio != "" {
		cfg.ImageConfig = &genai.ImageConfig{AspectRatio: ratio}
	}

	resp, err := a.models.GenerateContent(ctx, model, []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, cfg)
	if err != nil {
		return nil, sdkProviderError(err)
	}
	return &normalizer.RawResponse{Provider: ProviderName, Shape: normalizer.ShapeContent, Content: resp}, nil
}

// sdkProviderError は SDK のエラーを ProviderError に変換し、API のメッセージを保持します。
func sdkProviderError(err error) error {
	pe := &domain.ProviderError{Provider: ProviderName, Err: err}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		pe.StatusCode = apiErr.Code
		pe.Detail = apiErr.Message
	}
	return pe
}
