package storage

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type putCall struct {
	Bucket      string
	Key         string
	ContentType string
	Body        []byte
}

// mockPutter は PutObject の呼び出しを記録する ObjectPutter です。
type mockPutter struct {
	mu      sync.Mutex
	calls   []putCall
	failKey string
}

func (m *mockPutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Key)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, putCall{
		Bucket:      aws.ToString(in.Bucket),
		Key:         key,
		ContentType: aws.ToString(in.ContentType),
		Body:        body,
	})
	if m.failKey != "" && key == m.failKey {
		return nil, errors.New("access denied")
	}
	return &s3.PutObjectOutput{}, nil
}

func (m *mockPutter) byName(name string) (putCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.calls {
		if len(c.Key) >= len(name) && c.Key[len(c.Key)-len(name):] == name {
			return c, true
		}
	}
	return putCall{}, false
}

type mockUploader struct {
	folder  string
	objects []Object
	url     string
	err     error
}

func (m *mockUploader) Upload(ctx context.Context, folder string, objects []Object) (string, error) {
	m.folder = folder
	m.objects = objects
	return m.url, m.err
}

type mockNotifier struct {
	payloads []WebhookPayload
	err      error
}

func (m *mockNotifier) Notify(ctx context.Context, payload WebhookPayload) error {
	m.payloads = append(m.payloads, payload)
	return m.err
}
