package generator

import (
	"fmt"

	"github.com/shouni/nanobanana-studio/pkg/domain"
)

// Registry は起動時に一度だけ構築されるモデルとプロバイダーの対応表です。
type Registry struct {
	models    []domain.ModelInfo
	byID      map[string]domain.ModelInfo
	providers map[string]Provider
}

// NewRegistry はモデル一覧と初期化済みのプロバイダーから Registry を生成します。
// API キー未設定などで登録されなかったプロバイダーのモデルは一覧に出ません。
func NewRegistry(models []domain.ModelInfo, providers ...Provider) (*Registry, error) {
	r := &Registry{
		models:    make([]domain.ModelInfo, 0, len(models)),
		byID:      make(map[string]domain.ModelInfo, len(models)),
		providers: make(map[string]Provider, len(providers)),
	}

	for _, p := range providers {
		if p == nil {
			continue
		}
		if _, dup := r.providers[p.Name()]; dup {
			return nil, fmt.Errorf("プロバイダー %q が重複して登録されています", p.Name())
		}
		r.providers[p.Name()] = p
	}

	for _, m := range models {
		if _, dup := r.byID[m.ID]; dup {
			return nil, fmt.Errorf("モデル %q が重複して登録されています", m.ID)
		}
		r.byID[m.ID] = m
		r.models = append(r.models, m)
	}
	return r, nil
}

// Models は利用可能なモデルを登録順に返します。
func (r *Registry) Models() []domain.ModelInfo {
	out := make([]domain.ModelInfo, 0, len(r.models))
	for _, m := range r.models {
		if _, ok := r.providers[m.Provider]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Resolve はモデル id からモデル定義とプロバイダーを引きます。
func (r *Registry) Resolve(modelID string) (domain.ModelInfo, Provider, error) {
	m, ok := r.byID[modelID]
	if !ok {
		return domain.ModelInfo{}, nil, fmt.Errorf("%w: '%s'", domain.ErrModelNotFound, modelID)
	}
	p, ok := r.providers[m.Provider]
	if !ok {
		return domain.ModelInfo{}, nil, fmt.Errorf("%w: '%s'", domain.ErrProviderNotInitialized, m.Provider)
	}
	return m, p, nil
}
