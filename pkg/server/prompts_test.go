package server

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptLibrary(t *testing.T) {
	env := newTestEnv(t)

	t.Run("キーがなければ 403", func(t *testing.T) {
		rec := env.do(jsonRequest(t, http.MethodGet, "/api/prompts/m", nil, ""))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("保存して一覧で読み出せる", func(t *testing.T) {
		rec := env.do(jsonRequest(t, http.MethodPost, "/api/prompts/m", `{"name":"cat","content":"a cat","format":"text"}`, testKey))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = env.do(jsonRequest(t, http.MethodPost, "/api/prompts/m",
			`{"name":"rows","content":[{"key":"subject","value":"dog"}],"format":"json"}`, testKey))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = env.do(jsonRequest(t, http.MethodGet, "/api/prompts/m", nil, testKey))
		require.Equal(t, http.StatusOK, rec.Code)

		var got []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 2)
		assert.Equal(t, "cat", got[0]["name"])
		assert.Equal(t, "a cat", got[0]["content"])
		assert.Equal(t, "text", got[0]["format"])
		assert.NotEmpty(t, got[0]["timestamp"])
		assert.Equal(t, []any{map[string]any{"key": "subject", "value": "dog"}}, got[1]["content"])
	})

	t.Run("他のモデルの一覧は空配列", func(t *testing.T) {
		rec := env.do(jsonRequest(t, http.MethodGet, "/api/prompts/other", nil, testKey))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("不正な入力は 400", func(t *testing.T) {
		for _, body := range []string{
			`{"name":"","content":"x"}`,
			`{"name":"n","content":"x","format":"yaml"}`,
			`{"name":"n"}`,
		} {
			rec := env.do(jsonRequest(t, http.MethodPost, "/api/prompts/m", body, testKey))
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		}
	})

	t.Run("削除して存在しなければ 404", func(t *testing.T) {
		rec := env.do(jsonRequest(t, http.MethodDelete, "/api/prompts/m/cat", nil, testKey))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"deleted":true}`, rec.Body.String())

		rec = env.do(jsonRequest(t, http.MethodDelete, "/api/prompts/m/cat", nil, testKey))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
