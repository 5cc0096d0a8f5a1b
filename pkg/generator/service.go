package generator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shouni/nanobanana-studio/pkg/domain"
	"github.com/shouni/nanobanana-studio/pkg/normalizer"
)

// Service はモデル選択・プロバイダー呼び出し・応答の正規化をまとめるオーケストレーターです。
type Service struct {
	registry *Registry
	refs     ReferenceLoader
}

// NewService は Service を生成します。refs が nil の場合、参照画像は使用しません。
func NewService(registry *Registry, refs ReferenceLoader) (*Service, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	return &Service{registry: registry, refs: refs}, nil
}

// Models は公開用のモデル一覧を返します。
func (s *Service) Models() []domain.ModelInfo {
	return s.registry.Models()
}

// Generate はリクエストを実行し、正規化した結果を返します。
// 途中のどの段階で失敗しても部分的な結果は返しません。
func (s *Service) Generate(ctx context.Context, req domain.ImageGenerationRequest) (*domain.GenerationResult, error) {
	model, provider, err := s.registry.Resolve(req.Model)
	if err != nil {
		return nil, err
	}

	opts := domain.GenerateOptions{
		Width:       req.Width,
		Height:      req.Height,
		AspectRatio: req.AspectRatio,
		Seed:        req.Seed,
	}
	if req.ReferenceURL != "" && s.refs != nil {
		if img := s.refs.Load(ctx, req.ReferenceURL); img != nil {
			opts.References = append(opts.References, *img)
		}
	}

	start := time.Now()
	raw, err := provider.Generate(ctx, model.ID, req.Prompt, opts)
	if err != nil {
		return nil, fmt.Errorf("モデル %s での生成に失敗しました: %w", model.ID, err)
	}

	result, err := normalizer.Normalize(raw)
	if err != nil {
		slog.WarnContext(ctx, "プロバイダーの応答を正規化できませんでした", "model", model.ID, "provider", provider.Name(), "error", err)
		return nil, err
	}

	slog.InfoContext(ctx, "画像生成が完了しました",
		"model", model.ID,
		"type", result.Kind,
		"mime_type", result.MimeType,
		"elapsed", time.Since(start),
	)
	return result, nil
}
