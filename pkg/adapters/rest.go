package adapters

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shouni/nanobanana-studio/pkg/domain"
	"github.com/shouni/nanobanana-studio/pkg/normalizer"
)

const (
	// DefaultBaseURL は Gemini API の既定のエンドポイントです。
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	apiVersion     = "v1beta"
	apiKeyHeader   = "x-goog-api-key"
	maxErrorDetail = 500
)

type contentRequest struct {
	Contents         []requestContent  `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type requestContent struct {
	Role  string        `json:"role,omitempty"`
	Parts []requestPart `json:"parts"`
}

type requestPart struct {
	Text       string                 `json:"text,omitempty"`
	InlineData *normalizer.InlineData `json:"inlineData,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string     `json:"responseModalities,omitempty"`
	Seed               *int32       `json:"seed,omitempty"`
	ImageConfig        *imageConfig `json:"imageConfig,omitempty"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type predictRequest struct {
	Instances  []predictInstance `json:"instances"`
	Parameters predictParameters `json:"parameters"`
}

type predictInstance struct {
	Prompt string `json:"prompt"`
}

type predictParameters struct {
	SampleCount int    `json:"sampleCount"`
	AspectRatio string `json:"aspectRatio,omitempty"`
	Seed        *int32 `json:"seed,omitempty"`
}

// apiErrorBody は Google API のエラー応答です。
type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// NanobananaREST は Gemini API を REST で呼び出すプロバイダーアダプターです。
// 応答本文は解析せず、そのまま normalizer に渡します。
type NanobananaREST struct {
	client *resty.Client
	apiKey string
}

// NewNanobananaREST は REST アダプターを生成します。baseURL が空の場合は DefaultBaseURL を使います。
func NewNanobananaREST(baseURL, apiKey string, timeout time.Duration) *NanobananaREST {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")+"/"+apiVersion).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &NanobananaREST{client: client, apiKey: apiKey}
}

// Name はプロバイダー名を返します。
func (a *NanobananaREST) Name() string {
	return ProviderName
}

// Generate はモデルに応じて generateContent または predict を呼び出します。
func (a *NanobananaREST) Generate(ctx context.Context, model, prompt string, opts domain.GenerateOptions) (*normalizer.RawResponse, error) {
	var (
		path  string
		body  any
		shape normalizer.Shape
	)
	if isPredictModel(model) {
		path, body, shape = "/models/{model}:predict", buildPredictRequest(prompt, opts), normalizer.ShapePrediction
	} else {
		path, body, shape = "/models/{model}:generateContent", buildContentRequest(prompt, opts), normalizer.ShapeContent
	}

	slog.InfoContext(ctx, "Gemini API にリクエストします", "model", model, "shape", shape, "references", len(opts.References))
	start := time.Now()

	resp, err := a.client.R().
		SetContext(ctx).
		SetPathParam("model", model).
		SetHeader(apiKeyHeader, a.apiKey).
		SetBody(body).
		Post(path)
	if err != nil {
		return nil, &domain.ProviderError{Provider: ProviderName, Err: err}
	}
	if resp.IsError() {
		return nil, &domain.ProviderError{
			Provider:   ProviderName,
			StatusCode: resp.StatusCode(),
			Detail:     errorDetail(resp.Body()),
		}
	}

	slog.InfoContext(ctx, "Gemini API から応答を受信しました", "model", model, "status", resp.StatusCode(), "elapsed", time.Since(start))
	return &normalizer.RawResponse{Provider: ProviderName, Shape: shape, Body: resp.Body()}, nil
}

func buildContentRequest(prompt string, opts domain.GenerateOptions) *contentRequest {
	parts := []requestPart{{Text: prompt}}
	for _, ref := range opts.References {
		parts = append(parts, requestPart{InlineData: &normalizer.InlineData{
			MimeType: ref.MimeType,
			Data:     base64.StdEncoding.EncodeToString(ref.Data),
		}})
	}

	cfg := &generationConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
		Seed:               seedToPtrInt32(opts.Seed),
	}
	if ratio := resolveAspectRatio(opts.AspectRatio, opts.Width, opts.Height); ratio != "" {
		cfg.ImageConfig = &imageConfig{AspectRatio: ratio}
	}

	return &contentRequest{
		Contents:         []requestContent{{Role: "user", Parts: parts}},
		GenerationConfig: cfg,
	}
}

func buildPredictRequest(prompt string, opts domain.GenerateOptions) *predictRequest {
	return &predictRequest{
		Instances: []predictInstance{{Prompt: prompt}},
		Parameters: predictParameters{
			SampleCount: 1,
			AspectRatio: resolveAspectRatio(opts.AspectRatio, opts.Width, opts.Height),
			Seed:        seedToPtrInt32(opts.Seed),
		},
	}
}

// errorDetail はエラー応答からプロバイダーのメッセージを取り出します。
func errorDetail(body []byte) string {
	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	detail := strings.TrimSpace(string(body))
	if len(detail) > maxErrorDetail {
		detail = detail[:maxErrorDetail] + "..."
	}
	return detail
}
