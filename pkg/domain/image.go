package domain

// ImageGenerationRequest は単一の画像生成要求です。
// Prompt には文字列化済みのプロンプト（JSON ビルダー形式の場合も含む）を渡します。
type ImageGenerationRequest struct {
	Model        string
	Prompt       string
	Width        int
	Height       int
	AspectRatio  string
	ReferenceURL string
	Seed         *int64
}

// GenerateOptions はプロバイダーアダプターへ渡す生成オプションです。
type GenerateOptions struct {
	Width       int
	Height      int
	AspectRatio string
	Seed        *int64
	References  []InlineImage
}

// InlineImage はリクエストに同梱する参照画像です。
type InlineImage struct {
	MimeType string
	Data     []byte
}

// ModelInfo は利用可能なモデルの定義です。
type ModelInfo struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Provider    string `json:"-" yaml:"provider"`
	Description string `json:"description" yaml:"description"`
}

// ImageInfo は画像インスペクションの結果です。
type ImageInfo struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Prompt string `json:"prompt"`
}
