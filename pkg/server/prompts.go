package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shouni/nanobanana-studio/pkg/metadata"
	"github.com/shouni/nanobanana-studio/pkg/store"
)

type promptBody struct {
	Name    string          `json:"name"`
	Content json.RawMessage `json:"content"`
	Format  string          `json:"format"`
}

type promptResponse struct {
	Name      string    `json:"name"`
	Content   any       `json:"content"`
	Format    string    `json:"format"`
	Timestamp time.Time `json:"timestamp"`
}

func toPromptResponse(e store.PromptEntry) promptResponse {
	var content any = e.Content
	if e.Format == store.FormatJSON && json.Valid([]byte(e.Content)) {
		content = json.RawMessage(e.Content)
	}
	return promptResponse{Name: e.Name, Content: content, Format: e.Format, Timestamp: e.Timestamp}
}

func (s *Server) handleListPrompts(c *gin.Context) {
	entries, err := s.store.Prompts(c.Request.Context(), c.Param("model"))
	if err != nil {
		requestLogger(c).Error("プロンプト一覧の取得に失敗しました", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load prompts"})
		return
	}

	out := make([]promptResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toPromptResponse(e))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleSavePrompt(c *gin.Context) {
	var body promptBody
	if !bindJSON(c, &body) {
		return
	}

	content, err := promptContent(body.Content, body.Format)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid prompt content"})
		return
	}

	entry, err := s.store.SavePrompt(c.Request.Context(), c.Param("model"), body.Name, content, body.Format)
	if err != nil {
		if errors.Is(err, store.ErrInvalidPrompt) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		requestLogger(c).Error("プロンプトの保存に失敗しました", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save prompt"})
		return
	}
	c.JSON(http.StatusOK, toPromptResponse(*entry))
}

func (s *Server) handleDeletePrompt(c *gin.Context) {
	deleted, err := s.store.DeletePrompt(c.Request.Context(), c.Param("model"), c.Param("name"))
	if err != nil {
		requestLogger(c).Error("プロンプトの削除に失敗しました", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete prompt"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Prompt not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// promptContent は保存形式に合わせて content を文字列化します。
// json 形式は構造をそのまま圧縮した JSON テキスト、text 形式は文字列として保存します。
func promptContent(raw json.RawMessage, format string) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", errors.New("content is required")
	}
	if format == store.FormatJSON {
		var compact bytes.Buffer
		if err := json.Compact(&compact, trimmed); err != nil {
			return "", err
		}
		return compact.String(), nil
	}
	return metadata.PromptString(trimmed)
}
