package generator

import (
	"bytes"
	"fmt"
	"os"

	"github.com/shouni/nanobanana-studio/pkg/domain"
	"gopkg.in/yaml.v3"
)

// catalogFile はモデル定義ファイルの構造です。
//
//	models:
//	  - id: gemini-2.5-flash-image
//	    name: Gemini Flash Image
//	    provider: nanobanana
//	    description: Fast generation with Gemini 2.5 Flash
type catalogFile struct {
	Models []domain.ModelInfo `yaml:"models"`
}

// LoadModels は YAML のモデル定義ファイルを読み込みます。path が空の場合は DefaultModels を返します。
func LoadModels(path string) ([]domain.ModelInfo, error) {
	if path == "" {
		return DefaultModels(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("モデル定義ファイルの読み込みに失敗しました: %w", err)
	}
	return ParseModels(data)
}

// ParseModels は YAML のモデル定義を解析して検証します。
func ParseModels(data []byte) ([]domain.ModelInfo, error) {
	var file catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("モデル定義の解析に失敗しました: %w", err)
	}
	if len(file.Models) == 0 {
		return nil, fmt.Errorf("モデル定義が空です")
	}

	seen := make(map[string]bool, len(file.Models))
	for i := range file.Models {
		m := &file.Models[i]
		if m.ID == "" {
			return nil, fmt.Errorf("%d 番目のモデルに id がありません", i+1)
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("モデル id が重複しています: %s", m.ID)
		}
		seen[m.ID] = true
		if m.Name == "" {
			m.Name = m.ID
		}
		if m.Provider == "" {
			m.Provider = DefaultProvider
		}
	}
	return file.Models, nil
}
