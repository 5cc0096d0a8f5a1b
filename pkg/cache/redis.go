package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "nanobanana:"

// RedisImageCache は参照画像のバイト列を Redis に保存するキャッシュです。
// Redis の障害はログに残すだけで呼び出し元には返しません。
type RedisImageCache struct {
	client *redis.Client
}

// Options は Redis の接続設定です。
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisImageCache は Redis に接続し、疎通を確認してからキャッシュを返します。
func NewRedisImageCache(ctx context.Context, opts Options) (*RedisImageCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisImageCache{client: client}, nil
}

// Get はキャッシュされたバイト列を返します。
func (c *RedisImageCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.WarnContext(ctx, "キャッシュの読み込みに失敗しました", "key", key, "error", err)
		}
		return nil, false
	}
	return data, true
}

// Set はバイト列を有効期限付きで保存します。
func (c *RedisImageCache) Set(ctx context.Context, key string, value []byte, d time.Duration) {
	if err := c.client.Set(ctx, keyPrefix+key, value, d).Err(); err != nil {
		slog.WarnContext(ctx, "キャッシュの書き込みに失敗しました", "key", key, "error", err)
	}
}

// Close は接続を閉じます。
func (c *RedisImageCache) Close() error {
	return c.client.Close()
}
