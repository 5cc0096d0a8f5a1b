package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PromptString はリクエストの prompt フィールドを文字列に正規化します。
// JSON 文字列はそのまま、オブジェクトなど構造化された値はキー順を保った JSON 文字列になります。
func PromptString(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("prompt is empty")
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", fmt.Errorf("prompt is not a valid JSON string: %w", err)
		}
		return s, nil
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return "", fmt.Errorf("prompt is not valid JSON: %w", err)
	}
	return compact.String(), nil
}

// PromptFromValue は任意の値をプロンプト文字列に変換します。
func PromptFromValue(v any) (string, error) {
	switch p := v.(type) {
	case string:
		return p, nil
	case json.RawMessage:
		return PromptString(p)
	case []byte:
		return PromptString(p)
	}

	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to serialize prompt: %w", err)
	}
	return string(b), nil
}
