package normalizer

// ContentResponse は generateContent 系 API（candidates → content → parts）の応答です。
type ContentResponse struct {
	Candidates     []ContentCandidate `json:"candidates"`
	PromptFeedback *PromptFeedback    `json:"promptFeedback,omitempty"`
}

// ContentCandidate は応答候補の 1 件です。
type ContentCandidate struct {
	Content      *ContentBody `json:"content,omitempty"`
	FinishReason string       `json:"finishReason,omitempty"`
}

// ContentBody は候補の本文です。
type ContentBody struct {
	Role  string        `json:"role,omitempty"`
	Parts []ContentPart `json:"parts"`
}

// ContentPart はテキストまたはインラインバイナリを運ぶパーツです。
type ContentPart struct {
	Text       string      `json:"text,omitempty"`
	Thought    bool        `json:"thought,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// InlineData は base64 文字列のまま保持するバイナリです。
type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// PromptFeedback はプロンプト自体がブロックされた場合の情報です。
type PromptFeedback struct {
	BlockReason        string `json:"blockReason,omitempty"`
	BlockReasonMessage string `json:"blockReasonMessage,omitempty"`
}

// PredictResponse は predict 系 API（Imagen など）の応答です。
type PredictResponse struct {
	Predictions []Prediction `json:"predictions"`
}

// Prediction は predictions 配列の 1 要素です。
type Prediction struct {
	MimeType           string `json:"mimeType,omitempty"`
	BytesBase64Encoded string `json:"bytesBase64Encoded,omitempty"`
	RaiFilteredReason  string `json:"raiFilteredReason,omitempty"`
}
