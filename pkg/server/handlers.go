package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shouni/nanobanana-studio/pkg/domain"
	"github.com/shouni/nanobanana-studio/pkg/metadata"
	"github.com/shouni/nanobanana-studio/pkg/storage"
	"github.com/shouni/nanobanana-studio/pkg/store"
)

const defaultDownloadMimeType = "image/png"

type generateRequest struct {
	Prompt       json.RawMessage `json:"prompt"`
	Model        string          `json:"model"`
	Width        int             `json:"width"`
	Height       int             `json:"height"`
	AspectRatio  string          `json:"aspectRatio"`
	ReferenceURL string          `json:"referenceUrl"`
	Seed         *int64          `json:"seed"`
}

type generateResponse struct {
	*domain.GenerationResult
	Delivery storage.Result `json:"delivery"`
}

type downloadRequest struct {
	ImageData string          `json:"imageData"`
	Prompt    json.RawMessage `json:"prompt"`
	MimeType  string          `json:"mimeType"`
}

func (s *Server) handleModels(c *gin.Context) {
	c.JSON(http.StatusOK, s.generator.Models())
}

func (s *Server) handleGenerate(c *gin.Context) {
	log := requestLogger(c)
	ctx := c.Request.Context()

	var req generateRequest
	if !bindJSON(c, &req) {
		return
	}
	prompt, ok := promptFrom(req.Prompt)
	log.Info("生成リクエストを受け付けました", "model", req.Model, "prompt_length", len(prompt), "ip", c.ClientIP())
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Prompt is required"})
		return
	}
	if req.Model == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Model ID is required"})
		return
	}

	genCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := s.generator.Generate(genCtx, domain.ImageGenerationRequest{
		Model:        req.Model,
		Prompt:       prompt,
		Width:        req.Width,
		Height:       req.Height,
		AspectRatio:  req.AspectRatio,
		ReferenceURL: req.ReferenceURL,
		Seed:         req.Seed,
	})
	label := modelLabel(req.Model, err)
	s.metrics.generationDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	if err != nil {
		log.Error("生成に失敗しました", "model", req.Model, "error", err)
		s.metrics.generationsTotal.WithLabelValues(label, "failure").Inc()
		s.recordGeneration(c, req.Model, prompt, nil, err)
		c.JSON(generationStatus(err), gin.H{
			"error":   "Failed to generate image",
			"details": err.Error(),
		})
		return
	}
	s.metrics.generationsTotal.WithLabelValues(label, "success").Inc()

	md := storage.RequestMetadata{
		IP:        clientIP(c),
		UserAgent: c.GetHeader("User-Agent"),
		Timestamp: s.now().UTC().Format(time.RFC3339Nano),
		Model:     req.Model,
		Prompt:    prompt,
	}
	var delivery storage.Result
	if s.deliverer != nil {
		delivery = s.deliverer.Process(ctx, result, prompt, md)
		s.metrics.observeDelivery(delivery)
	}

	s.recordGeneration(c, req.Model, prompt, result, nil)
	log.Info("画像を生成しました", "model", req.Model, "type", result.Kind)
	c.JSON(http.StatusOK, generateResponse{GenerationResult: result, Delivery: delivery})
}

func (s *Server) recordGeneration(c *gin.Context, model, prompt string, result *domain.GenerationResult, genErr error) {
	if s.store == nil {
		return
	}
	entry := &store.GenerationLog{
		ReqID:        c.GetString(reqIDKey),
		Model:        model,
		PromptLength: len(prompt),
		Status:       store.StatusSucceeded,
	}
	if result != nil {
		entry.Kind = string(result.Kind)
	}
	if genErr != nil {
		entry.Status = store.StatusFailed
		entry.Error = genErr.Error()
	}
	if err := s.store.RecordGeneration(c.Request.Context(), entry); err != nil {
		requestLogger(c).Warn("生成ログを保存できませんでした", "error", err)
	}
}

func (s *Server) handleDownload(c *gin.Context) {
	log := requestLogger(c)

	var req downloadRequest
	if !bindJSON(c, &req) {
		return
	}
	prompt, ok := promptFrom(req.Prompt)
	if req.ImageData == "" || !ok {
		log.Warn("ダウンロードに必要なデータがありません")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing image data or prompt"})
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.ImageData)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image data"})
		return
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = defaultDownloadMimeType
	}
	format, err := metadata.FormatFromMimeType(mimeType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported image format"})
		return
	}

	out, err := metadata.Embed(data, prompt, mimeType)
	if errors.Is(err, domain.ErrMetadataTooLarge) {
		log.Warn("プロンプトがメタデータの上限を超えています", "format", format, "prompt_length", len(prompt))
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Prompt is too long to embed in image metadata"})
		return
	}
	if err != nil {
		log.Error("メタデータの埋め込みに失敗しました", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process image download"})
		return
	}

	filename := fmt.Sprintf("nanobanana-%d.%s", s.now().UnixMilli(), format.Extension())
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, format.MimeType(), out)
	log.Info("メタデータ付きの画像を返しました", "format", format, "bytes", len(out))
}

func (s *Server) handleInspect(c *gin.Context) {
	log := requestLogger(c)

	header, err := c.FormFile("image")
	if err != nil {
		if isBodyTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image uploaded"})
		return
	}
	if header.Size > maxInspectSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to inspect image"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to inspect image"})
		return
	}

	info, err := metadata.Inspect(data)
	if err != nil {
		log.Warn("画像を解析できませんでした", "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrImageDecoding) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": "Failed to inspect image"})
		return
	}

	log.Info("画像を解析しました", "found", info.Prompt != domain.NoPromptSentinel, "format", info.Format)
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleWatch(c *gin.Context) {
	c.File(filepath.Join(s.staticDir, "watch.html"))
}

// bindJSON は本文を読み取り、失敗時は応答を書き込んで false を返します。
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		if isBodyTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return false
	}
	return true
}

// promptFrom は prompt フィールドを文字列にします。欠落・null・空文字列は false です。
func promptFrom(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", false
	}
	prompt, err := metadata.PromptString(trimmed)
	if err != nil || prompt == "" {
		return "", false
	}
	return prompt, true
}

// clientIP は X-Forwarded-For をそのまま、なければ接続元アドレスを返します。
func clientIP(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return host
}
