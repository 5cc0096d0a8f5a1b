package generator

import (
	"context"

	"github.com/shouni/nanobanana-studio/pkg/domain"
	"github.com/shouni/nanobanana-studio/pkg/normalizer"
)

// mockProvider は Provider のテスト用モックなのだ。
type mockProvider struct {
	name      string
	raw       *normalizer.RawResponse
	err       error
	called    bool
	gotModel  string
	gotPrompt string
	gotOpts   domain.GenerateOptions
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Generate(ctx context.Context, model, prompt string, opts domain.GenerateOptions) (*normalizer.RawResponse, error) {
	m.called = true
	m.gotModel, m.gotPrompt, m.gotOpts = model, prompt, opts
	return m.raw, m.err
}

// mockLoader は ReferenceLoader のテスト用モックなのだ。
type mockLoader struct {
	img    *domain.InlineImage
	gotURL string
}

func (m *mockLoader) Load(ctx context.Context, rawURL string) *domain.InlineImage {
	m.gotURL = rawURL
	return m.img
}
