package server

import (
	"context"

	"github.com/shouni/nanobanana-studio/pkg/domain"
	"github.com/shouni/nanobanana-studio/pkg/storage"
)

type mockGenerator struct {
	models  []domain.ModelInfo
	result  *domain.GenerationResult
	err     error
	lastReq domain.ImageGenerationRequest
	calls   int
	// hadDeadline は最後の呼び出しのコンテキストに期限があったかどうかです。
	hadDeadline bool
}

func (m *mockGenerator) Models() []domain.ModelInfo {
	return m.models
}

func (m *mockGenerator) Generate(ctx context.Context, req domain.ImageGenerationRequest) (*domain.GenerationResult, error) {
	m.calls++
	m.lastReq = req
	_, m.hadDeadline = ctx.Deadline()
	return m.result, m.err
}

type mockDeliverer struct {
	result storage.Result
	prompt string
	md     storage.RequestMetadata
	calls  int
}

func (m *mockDeliverer) Process(ctx context.Context, result *domain.GenerationResult, prompt string, md storage.RequestMetadata) storage.Result {
	m.calls++
	m.prompt = prompt
	m.md = md
	return m.result
}
