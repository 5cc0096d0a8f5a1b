package storage

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/shouni/nanobanana-studio/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedDelivery(uploader Uploader, notifier Notifier) *Delivery {
	d := NewDelivery(uploader, notifier)
	d.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }
	return d
}

func TestDelivery_Process(t *testing.T) {
	image, err := domain.NewInlineImage("image/png", "aGVsbG8=")
	require.NoError(t, err)
	md := RequestMetadata{IP: "10.0.0.1", UserAgent: "test", Timestamp: "2026-03-04T05:06:07Z", Model: "m", Prompt: "a cat"}

	t.Run("B2 と Webhook の両方に配信する", func(t *testing.T) {
		uploader := &mockUploader{url: "https://bucket.endpoint/folder/"}
		notifier := &mockNotifier{}

		got := fixedDelivery(uploader, notifier).Process(context.Background(), image, "a cat", md)

		require.NotNil(t, got.B2)
		require.NotNil(t, got.Webhook)
		assert.Equal(t, "https://bucket.endpoint/folder/", *got.B2)
		assert.Equal(t, StatusSuccess, *got.Webhook)

		assert.Regexp(t, regexp.MustCompile(`^nanobanana/2026-03-04/05-06-07-[0-9a-f]{8}$`), uploader.folder)
		require.Len(t, uploader.objects, 3)
		assert.Equal(t, Object{Name: "image.png", Body: []byte("hello"), ContentType: "image/png"}, uploader.objects[0])
		assert.Equal(t, Object{Name: "prompt.txt", Body: []byte("a cat"), ContentType: "text/plain"}, uploader.objects[1])
		var decoded RequestMetadata
		require.NoError(t, json.Unmarshal(uploader.objects[2].Body, &decoded))
		assert.Equal(t, md, decoded)

		require.Len(t, notifier.payloads, 1)
		p := notifier.payloads[0]
		assert.Equal(t, EventImageGenerated, p.Event)
		assert.Equal(t, "aGVsbG8=", p.ImageData)
		require.NotNil(t, p.B2Folder)
		assert.Equal(t, "https://bucket.endpoint/folder/", *p.B2Folder)
	})

	t.Run("B2 の失敗は error と記録され Webhook の b2_folder は null", func(t *testing.T) {
		uploader := &mockUploader{err: errors.New("boom")}
		notifier := &mockNotifier{}

		got := fixedDelivery(uploader, notifier).Process(context.Background(), image, "a cat", md)

		assert.Equal(t, StatusError, *got.B2)
		assert.Equal(t, StatusSuccess, *got.Webhook)
		assert.Nil(t, notifier.payloads[0].B2Folder)
	})

	t.Run("Webhook の失敗は error と記録される", func(t *testing.T) {
		got := fixedDelivery(nil, &mockNotifier{err: errors.New("down")}).Process(context.Background(), image, "a cat", md)

		assert.Nil(t, got.B2)
		assert.Equal(t, StatusError, *got.Webhook)
	})

	t.Run("テキスト結果は配信しない", func(t *testing.T) {
		uploader := &mockUploader{url: "x"}
		notifier := &mockNotifier{}

		got := fixedDelivery(uploader, notifier).Process(context.Background(), domain.NewText("https://example.com/a.png"), "p", md)

		assert.Equal(t, Result{}, got)
		assert.Empty(t, uploader.objects)
		assert.Empty(t, notifier.payloads)
	})

	t.Run("配信先がなければ両方 null", func(t *testing.T) {
		got := NewDelivery(nil, nil).Process(context.Background(), image, "p", md)

		raw, err := json.Marshal(got)
		require.NoError(t, err)
		assert.JSONEq(t, `{"b2":null,"webhook":null}`, string(raw))
	})
}

func TestImageExtension(t *testing.T) {
	assert.Equal(t, ".png", imageExtension("image/png"))
	assert.Equal(t, ".jpg", imageExtension("image/jpeg"))
	assert.Equal(t, ".webp", imageExtension("image/webp"))
	assert.Equal(t, ".bin", imageExtension("application/x-unknown-thing"))
}
