package generator

import (
	"context"

	"github.com/shouni/nanobanana-studio/pkg/domain"
	"github.com/shouni/nanobanana-studio/pkg/normalizer"
)

// Provider は外部の画像生成 API を呼び出すアダプターのインターフェースです。
type Provider interface {
	// Name はモデル定義の provider と対応するプロバイダー名を返します。
	Name() string
	// Generate は生成を実行し、未加工の応答を返します。
	// 通信・認証・クォータの失敗は *domain.ProviderError として返します。
	Generate(ctx context.Context, model, prompt string, opts domain.GenerateOptions) (*normalizer.RawResponse, error)
}

// ReferenceLoader は参照画像 URL を送信可能な画像に変換します。
// 取得できない場合は nil を返し、生成はテキストのみで続行されます。
type ReferenceLoader interface {
	Load(ctx context.Context, rawURL string) *domain.InlineImage
}
