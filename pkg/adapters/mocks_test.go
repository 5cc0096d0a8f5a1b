package adapters

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"google.golang.org/genai"
)

// mockFetcher は Fetcher のテスト用モックなのだ。
type mockFetcher struct {
	calls     int
	fetchFunc func(ctx context.Context, url string) ([]byte, error)
}

func (m *mockFetcher) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	m.calls++
	return m.fetchFunc(ctx, url)
}

// mockCache は ImageCacher のテスト用モックなのだ。
type mockCache struct {
	data map[string][]byte
	ttl  time.Duration
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, bool) {
	v, ok := m.data[key]
	return v, ok
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, d time.Duration) {
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[key] = value
	m.ttl = d
}

// fakeModels は genai.Models の代わりに呼び出し内容を記録するのだ。
type fakeModels struct {
	model         string
	prompt        string
	contents      []*genai.Content
	contentConfig *genai.GenerateContentConfig
	imagesConfig  *genai.GenerateImagesConfig
	contentResp   *genai.GenerateContentResponse
	imagesResp    *genai.GenerateImagesResponse
	err           error
	contentCalled bool
	imagesCalled  bool
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.contentCalled = true
	f.model, f.contents, f.contentConfig = model, contents, config
	return f.contentResp, f.err
}

func (f *fakeModels) GenerateImages(ctx context.Context, model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error) {
	f.imagesCalled = true
	f.model, f.prompt, f.imagesConfig = model, prompt, config
	return f.imagesResp, f.err
}

// newPNG はテスト用の小さな PNG を生成するのだ。
func newPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{uint8(x * 60), uint8(y * 60), 200, 255})
		}
	}
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}
