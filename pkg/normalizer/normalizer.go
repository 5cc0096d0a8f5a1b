package normalizer

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shouni/nanobanana-studio/pkg/domain"
	"google.golang.org/genai"
)

// Shape はプロバイダー応答の系統です。
type Shape string

const (
	// ShapeAuto は JSON のキーから系統を判定します。
	ShapeAuto Shape = ""
	// ShapeContent は candidates → content → parts 形式です。
	ShapeContent Shape = "content"
	// ShapePrediction は predictions 配列形式です。
	ShapePrediction Shape = "prediction"
)

// DefaultPredictionMimeType は predictions 応答が MIME タイプを省略した場合の既定値です。
const DefaultPredictionMimeType = "image/png"

// RawResponse はプロバイダーアダプターが返す未加工の応答です。
// REST 経由の場合は Body に JSON を、SDK 経由の場合は Content か Images に型付きの応答を保持します。
type RawResponse struct {
	Provider string
	Shape    Shape
	Body     []byte
	Content  *genai.GenerateContentResponse
	Images   *genai.GenerateImagesResponse
}

// Normalize はプロバイダー応答を GenerationResult に変換します。
// 既知のペイロードが見つからない場合は domain.ErrUnrecognizedResponseShape を返します。
func Normalize(raw *RawResponse) (*domain.GenerationResult, error) {
	if raw == nil {
		return nil, unrecognized("", "empty response")
	}
	switch {
	case raw.Content != nil:
		return FromGenAIContent(raw.Provider, raw.Content)
	case raw.Images != nil:
		return FromGenAIImages(raw.Provider, raw.Images)
	default:
		return NormalizeJSON(raw.Provider, raw.Shape, raw.Body)
	}
}

// NormalizeJSON は JSON 本文を指定された系統として解釈し、正規化します。
func NormalizeJSON(provider string, shape Shape, body []byte) (*domain.GenerationResult, error) {
	if len(body) == 0 {
		return nil, unrecognized(provider, "empty body")
	}
	if shape == ShapeAuto {
		detected, err := detectShape(body)
		if err != nil {
			return nil, unrecognized(provider, err.Error())
		}
		shape = detected
	}

	switch shape {
	case ShapeContent:
		var resp ContentResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, unrecognized(provider, fmt.Sprintf("invalid JSON: %v", err))
		}
		return FromContent(provider, &resp)
	case ShapePrediction:
		var resp PredictResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, unrecognized(provider, fmt.Sprintf("invalid JSON: %v", err))
		}
		return FromPredictions(provider, &resp)
	default:
		return nil, unrecognized(provider, fmt.Sprintf("unknown shape %q", shape))
	}
}

// FromContent は generateContent 形式の応答を正規化します。
// 最初の候補のうち、インラインデータを持つパーツがあれば画像、なければ最初のテキストを採用します。
func FromContent(provider string, resp *ContentResponse) (*domain.GenerationResult, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return nil, unrecognized(provider, "prompt blocked: "+resp.PromptFeedback.BlockReason)
		}
		return nil, unrecognized(provider, "no candidates")
	}

	candidate := resp.Candidates[0]
	if candidate.Content != nil {
		// 先頭パーツに限らず全パーツから画像を探す。先頭がテキストでも後続の画像を採用する。
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			return inlineImage(provider, part.InlineData.MimeType, part.InlineData.Data, true)
		}
		for _, part := range candidate.Content.Parts {
			if part.Thought || part.Text == "" {
				continue
			}
			return domain.NewText(part.Text), nil
		}
	}

	return nil, unrecognized(provider, finishDetail(candidate.FinishReason))
}

// FromPredictions は predictions 形式の応答を正規化します。
func FromPredictions(provider string, resp *PredictResponse) (*domain.GenerationResult, error) {
	if resp == nil || len(resp.Predictions) == 0 {
		return nil, unrecognized(provider, "no predictions")
	}

	p := resp.Predictions[0]
	if p.BytesBase64Encoded == "" {
		if p.RaiFilteredReason != "" {
			return nil, unrecognized(provider, "filtered: "+p.RaiFilteredReason)
		}
		return nil, unrecognized(provider, "prediction has no image bytes")
	}

	mimeType := p.MimeType
	if mimeType == "" {
		mimeType = DefaultPredictionMimeType
	}
	return inlineImage(provider, mimeType, p.BytesBase64Encoded, false)
}

// FromGenAIContent は SDK の GenerateContentResponse を正規化します。
func FromGenAIContent(provider string, resp *genai.GenerateContentResponse) (*domain.GenerationResult, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return nil, unrecognized(provider, "prompt blocked: "+string(resp.PromptFeedback.BlockReason))
		}
		return nil, unrecognized(provider, "no candidates")
	}

	// 最初の候補 (Candidate) のみを利用する。
	candidate := resp.Candidates[0]
	if candidate.Content != nil {
		// 先頭パーツに限らず全パーツから画像を探す。先頭がテキストでも後続の画像を採用する。
		for _, part := range candidate.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			encoded := base64.StdEncoding.EncodeToString(part.InlineData.Data)
			return inlineImage(provider, part.InlineData.MIMEType, encoded, true)
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought || part.Text == "" {
				continue
			}
			return domain.NewText(part.Text), nil
		}
	}

	return nil, unrecognized(provider, finishDetail(string(candidate.FinishReason)))
}

// FromGenAIImages は SDK の GenerateImagesResponse を predictions 形式として正規化します。
func FromGenAIImages(provider string, resp *genai.GenerateImagesResponse) (*domain.GenerationResult, error) {
	if resp == nil || len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0] == nil {
		return nil, unrecognized(provider, "no generated images")
	}

	generated := resp.GeneratedImages[0]
	if generated.Image == nil || len(generated.Image.ImageBytes) == 0 {
		if generated.RAIFilteredReason != "" {
			return nil, unrecognized(provider, "filtered: "+generated.RAIFilteredReason)
		}
		return nil, unrecognized(provider, "generated image has no bytes")
	}

	mimeType := generated.Image.MIMEType
	if mimeType == "" {
		mimeType = DefaultPredictionMimeType
	}
	return inlineImage(provider, mimeType, base64.StdEncoding.EncodeToString(generated.Image.ImageBytes), false)
}

// inlineImage は base64 を検証したうえで画像結果を組み立てます。
// sniff が true の場合、MIME タイプ未宣言ならバイト列から推定します。
func inlineImage(provider, mimeType, data string, sniff bool) (*domain.GenerationResult, error) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, unrecognized(provider, fmt.Sprintf("inline data is not valid base64: %v", err))
	}
	if mimeType == "" && sniff {
		detected := http.DetectContentType(decoded)
		if !strings.HasPrefix(detected, "image/") {
			return nil, unrecognized(provider, "inline data without mime type is not an image")
		}
		mimeType = detected
	}

	result, err := domain.NewInlineImage(mimeType, data)
	if err != nil {
		return nil, unrecognized(provider, err.Error())
	}
	return result, nil
}

func detectShape(body []byte) (Shape, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(body, &keys); err != nil {
		return ShapeAuto, fmt.Errorf("invalid JSON: %w", err)
	}
	if _, ok := keys["predictions"]; ok {
		return ShapePrediction, nil
	}
	if _, ok := keys["candidates"]; ok {
		return ShapeContent, nil
	}
	if _, ok := keys["promptFeedback"]; ok {
		return ShapeContent, nil
	}
	return ShapeAuto, fmt.Errorf("neither candidates nor predictions present")
}

func finishDetail(reason string) string {
	if reason == "" || reason == string(genai.FinishReasonStop) || reason == string(genai.FinishReasonUnspecified) {
		return "no inline data or text in first candidate"
	}
	return fmt.Sprintf("no inline data or text in first candidate (FinishReason: %s)", reason)
}

func unrecognized(provider, detail string) error {
	if provider == "" {
		return fmt.Errorf("%w: %s", domain.ErrUnrecognizedResponseShape, detail)
	}
	return fmt.Errorf("%w from %s: %s", domain.ErrUnrecognizedResponseShape, provider, detail)
}
