package generator

import "github.com/shouni/nanobanana-studio/pkg/domain"

// DefaultProvider はモデル定義で provider が省略された場合のプロバイダー名です。
const DefaultProvider = "nanobanana"

// DefaultModels は組み込みのモデル一覧を返します。
func DefaultModels() []domain.ModelInfo {
	return []domain.ModelInfo{
		{
			ID:          "gemini-2.5-flash-image",
			Name:        "Gemini Flash Image",
			Provider:    DefaultProvider,
			Description: "Fast generation with Gemini 2.5 Flash",
		},
		{
			ID:          "gemini-3-pro-image-preview",
			Name:        "Gemini Pro Image (Preview)",
			Provider:    DefaultProvider,
			Description: "High quality with Gemini 3 Pro",
		},
		{
			ID:          "imagen-4.0-fast-generate-001",
			Name:        "Imagen 4 Fast",
			Provider:    DefaultProvider,
			Description: "Ultra fast Imagen 4 generation",
		},
		{
			ID:          "imagen-4.0-generate-001",
			Name:        "Imagen 4 Standard",
			Provider:    DefaultProvider,
			Description: "Standard quality Imagen 4",
		},
	}
}
