package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	TransportREST = "rest"
	TransportSDK  = "sdk"

	defaultAccessKey = "default-secret-key"
)

// B2Config は Backblaze B2 (S3 互換 API) の接続設定です。
type B2Config struct {
	KeyID    string
	Key      string
	Endpoint string
	Region   string
	Bucket   string
}

// Enabled は認証情報が揃っているかどうかを返します。
func (c B2Config) Enabled() bool {
	return c.KeyID != "" && c.Key != ""
}

// RedisConfig は参照画像キャッシュの接続設定です。Addr が空の場合はキャッシュを使いません。
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Config はプロセス起動時に一度だけ読み込まれるアプリケーション設定です。
type Config struct {
	Port          string
	SiteAccessKey string
	StaticDir     string

	NanobananaAPIKey  string
	GeminiTransport   string
	GeminiBaseURL     string
	GenerationTimeout time.Duration
	ModelsFile        string

	LogFile  string
	LogLevel slog.Level

	DatabasePath string
	Redis        RedisConfig

	B2             B2Config
	WebhookURL     string
	WebhookTimeout time.Duration
}

// Load は .env（存在すれば）と環境変数から設定を読み込みます。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env が無い場合はシステムの環境変数だけを使う
		slog.Debug(".env ファイルが見つからないため環境変数のみを使用します", "error", err)
	}
	return FromEnv()
}

// FromEnv は環境変数だけから設定を組み立てて検証します。
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "3000"),
		SiteAccessKey: getEnv("SITE_ACCESS_KEY", defaultAccessKey),
		StaticDir:     getEnv("STATIC_DIR", "public"),

		NanobananaAPIKey: os.Getenv("NANOBANANA_API_KEY"),
		GeminiTransport:  strings.ToLower(getEnv("GEMINI_TRANSPORT", TransportREST)),
		GeminiBaseURL:    os.Getenv("GEMINI_BASE_URL"),
		ModelsFile:       os.Getenv("MODELS_FILE"),

		LogFile:      getEnv("LOG_FILE", "data/logs/server.log"),
		DatabasePath: getEnv("DATABASE_PATH", "data/nanobanana.db"),

		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},

		B2: B2Config{
			KeyID:    os.Getenv("B2_APPLICATION_KEY_ID"),
			Key:      os.Getenv("B2_APPLICATION_KEY"),
			Endpoint: os.Getenv("B2_ENDPOINT"),
			Region:   getEnv("B2_REGION", "us-west-004"),
			Bucket:   os.Getenv("B2_BUCKET_NAME"),
		},
		WebhookURL: os.Getenv("CUSTOM_SERVER_URL"),
	}

	var err error
	if cfg.GenerationTimeout, err = getDuration("GENERATION_TIMEOUT", 120*time.Second); err != nil {
		return nil, err
	}
	if cfg.WebhookTimeout, err = getDuration("WEBHOOK_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Redis.TTL, err = getDuration("REFERENCE_CACHE_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.Redis.DB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL が不正です: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.GeminiTransport != TransportREST && c.GeminiTransport != TransportSDK {
		return fmt.Errorf("GEMINI_TRANSPORT は %q か %q を指定してください: %q", TransportREST, TransportSDK, c.GeminiTransport)
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT が数値ではありません: %q", c.Port)
	}
	if c.B2.Enabled() {
		if c.B2.Endpoint == "" {
			return fmt.Errorf("B2_ENDPOINT is required when B2 keys are set")
		}
		if c.B2.Bucket == "" {
			return fmt.Errorf("B2_BUCKET_NAME is required when B2 keys are set")
		}
	}
	return nil
}

// UsesDefaultAccessKey は SITE_ACCESS_KEY が未設定のまま既定値を使っているかを返します。
func (c *Config) UsesDefaultAccessKey() bool {
	return c.SiteAccessKey == defaultAccessKey
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s が数値ではありません: %q", key, v)
	}
	return n, nil
}

// getDuration は "90s" のような期間表記と、秒数のみの整数表記の両方を受け付けます。
func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s が期間として解釈できません: %q", key, v)
	}
	return d, nil
}
