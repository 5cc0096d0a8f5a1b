package metadata

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptString(t *testing.T) {
	t.Run("JSON 文字列はそのまま返す", func(t *testing.T) {
		got, err := PromptString(json.RawMessage(`"a cat wearing sunglasses"`))
		require.NoError(t, err)
		assert.Equal(t, "a cat wearing sunglasses", got)
	})

	t.Run("オブジェクトはキー順を保って直列化する", func(t *testing.T) {
		got, err := PromptString(json.RawMessage(`{ "subject": "cat",  "style": {"mood": "cool"} }`))
		require.NoError(t, err)
		assert.Equal(t, `{"subject":"cat","style":{"mood":"cool"}}`, got)
	})

	t.Run("配列や数値も JSON として扱う", func(t *testing.T) {
		got, err := PromptString(json.RawMessage(`[1, 2]`))
		require.NoError(t, err)
		assert.Equal(t, `[1,2]`, got)
	})

	t.Run("空や不正な JSON はエラー", func(t *testing.T) {
		for _, raw := range []string{"", "   ", `{"a":`, `"unterminated`} {
			_, err := PromptString(json.RawMessage(raw))
			assert.Error(t, err, raw)
		}
	})
}

func TestPromptFromValue(t *testing.T) {
	got, err := PromptFromValue("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", got)

	got, err = PromptFromValue(map[string]any{"b": 1, "a": "x"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":1}`, got)

	got, err = PromptFromValue([]byte(`"quoted"`))
	require.NoError(t, err)
	assert.Equal(t, "quoted", got)
}
