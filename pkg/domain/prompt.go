package domain

// NoPromptSentinel はプロンプトが見つからなかった場合の固定文言です。
const NoPromptSentinel = "No embedded prompt found."

// ExtractedPrompt は画像メタデータから読み出したプロンプトです。
type ExtractedPrompt struct {
	Found bool
	Text  string
}

// FoundPrompt は見つかったプロンプトを包みます。
func FoundPrompt(text string) ExtractedPrompt {
	return ExtractedPrompt{Found: true, Text: text}
}

// NotFound はプロンプトが存在しないことを表す値を返します。
func NotFound() ExtractedPrompt {
	return ExtractedPrompt{Found: false, Text: NoPromptSentinel}
}
