package adapters

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allowAll(string) (bool, error) { return true, nil }

func TestReferenceLoader_Load(t *testing.T) {
	ctx := context.Background()
	pngData := newPNG(t)

	t.Run("キャッシュにある場合はダウンロードせずに返すのだ", func(t *testing.T) {
		cache := &mockCache{data: map[string][]byte{cacheKeyPrefix + "http://test.com/img.png": pngData}}
		fetcher := &mockFetcher{}
		loader := NewReferenceLoader(fetcher, cache, time.Hour)

		img := loader.Load(ctx, "http://test.com/img.png")

		require.NotNil(t, img)
		assert.Equal(t, "image/png", img.MimeType)
		assert.Equal(t, pngData, img.Data)
		assert.Zero(t, fetcher.calls)
	})

	t.Run("キャッシュにない場合はDLしてJPEGに圧縮し保存するのだ", func(t *testing.T) {
		cache := &mockCache{}
		fetcher := &mockFetcher{fetchFunc: func(ctx context.Context, url string) ([]byte, error) {
			return pngData, nil
		}}
		loader := NewReferenceLoader(fetcher, cache, 30*time.Minute)
		loader.validate = allowAll

		img := loader.Load(ctx, "https://example.com/new.png")

		require.NotNil(t, img)
		assert.Equal(t, "image/jpeg", img.MimeType)
		assert.Equal(t, 1, fetcher.calls)
		assert.Equal(t, img.Data, cache.data[cacheKeyPrefix+"https://example.com/new.png"])
		assert.Equal(t, 30*time.Minute, cache.ttl)
	})

	t.Run("cache が nil でも動作する", func(t *testing.T) {
		fetcher := &mockFetcher{fetchFunc: func(ctx context.Context, url string) ([]byte, error) {
			return pngData, nil
		}}
		loader := NewReferenceLoader(fetcher, nil, time.Hour)
		loader.validate = allowAll

		assert.NotNil(t, loader.Load(ctx, "https://example.com/a.png"))
	})

	t.Run("ダウンロード失敗時は nil を返す", func(t *testing.T) {
		fetcher := &mockFetcher{fetchFunc: func(ctx context.Context, url string) ([]byte, error) {
			return nil, errors.New("404")
		}}
		loader := NewReferenceLoader(fetcher, &mockCache{}, time.Hour)
		loader.validate = allowAll

		assert.Nil(t, loader.Load(ctx, "https://example.com/missing.png"))
	})

	t.Run("画像でないデータはキャッシュせず nil を返す", func(t *testing.T) {
		cache := &mockCache{}
		fetcher := &mockFetcher{fetchFunc: func(ctx context.Context, url string) ([]byte, error) {
			return []byte("<html>not an image</html>"), nil
		}}
		loader := NewReferenceLoader(fetcher, cache, time.Hour)
		loader.validate = allowAll

		assert.Nil(t, loader.Load(ctx, "https://example.com/page"))
		assert.Empty(t, cache.data)
	})

	t.Run("内部ネットワークの URL はダウンロードしない", func(t *testing.T) {
		fetcher := &mockFetcher{}
		loader := NewReferenceLoader(fetcher, nil, time.Hour)

		assert.Nil(t, loader.Load(ctx, "http://127.0.0.1/secret.png"))
		assert.Nil(t, loader.Load(ctx, "file:///etc/passwd"))
		assert.Zero(t, fetcher.calls)
	})

	t.Run("許可された URL から内部ネットワークへ転送されても取得もキャッシュもしないのだ", func(t *testing.T) {
		var internalHits atomic.Int32
		internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			internalHits.Add(1)
			_, _ = w.Write(pngData)
		}))
		defer internal.Close()

		public := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, internal.URL+"/secret.png", http.StatusFound)
		}))
		defer public.Close()

		check := onlyPrefix(public.URL)
		cache := &mockCache{}
		loader := NewReferenceLoader(NewRestyFetcher(newRestyClient(time.Second, check, nil)), cache, time.Hour)
		loader.validate = check

		assert.Nil(t, loader.Load(ctx, public.URL+"/img.png"))
		assert.Empty(t, cache.data)
		assert.Zero(t, internalHits.Load())
	})
}

func TestIsSafeURL(t *testing.T) {
	blocked := []string{
		"http://127.0.0.1/a.png",
		"http://10.0.0.5/a.png",
		"http://192.168.1.1/a.png",
		"http://169.254.169.254/latest/meta-data",
		"http://[::1]/a.png",
		"http://0.0.0.0/a.png",
		"ftp://8.8.8.8/a.png",
		"not a url",
	}
	for _, u := range blocked {
		safe, err := isSafeURL(u)
		assert.False(t, safe, u)
		assert.Error(t, err, u)
	}

	safe, err := isSafeURL("https://8.8.8.8/image.png")
	require.NoError(t, err)
	assert.True(t, safe)
}

func TestCheckIP(t *testing.T) {
	for _, ip := range []string{"127.0.0.1", "10.1.2.3", "172.16.0.1", "169.254.169.254", "::1", "fe80::1", "0.0.0.0"} {
		assert.Error(t, checkIP(net.ParseIP(ip)), ip)
	}
	assert.NoError(t, checkIP(net.ParseIP("8.8.8.8")))
}

func TestResolveAspectRatio(t *testing.T) {
	assert.Equal(t, "3:4", resolveAspectRatio("3:4", 1920, 1080))
	assert.Equal(t, "16:9", resolveAspectRatio("", 1920, 1080))
	assert.Equal(t, "1:1", resolveAspectRatio("", 1024, 1024))
	assert.Equal(t, "", resolveAspectRatio("", 1000, 333))
	assert.Equal(t, "", resolveAspectRatio("", 0, 0))
}

func TestSeedToPtrInt32(t *testing.T) {
	assert.Nil(t, seedToPtrInt32(nil))

	seed := int64(42)
	got := seedToPtrInt32(&seed)
	require.NotNil(t, got)
	assert.Equal(t, int32(42), *got)
}
