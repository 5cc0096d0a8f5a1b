package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/shouni/nanobanana-studio/pkg/adapters"
	"github.com/shouni/nanobanana-studio/pkg/cache"
	"github.com/shouni/nanobanana-studio/pkg/config"
	"github.com/shouni/nanobanana-studio/pkg/generator"
	"github.com/shouni/nanobanana-studio/pkg/server"
	"github.com/shouni/nanobanana-studio/pkg/storage"
	"github.com/shouni/nanobanana-studio/pkg/store"
)

const referenceFetchTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("サーバーを起動できませんでした", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	closeLog, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.UsesDefaultAccessKey() {
		slog.Warn("SITE_ACCESS_KEY が未設定のため既定のキーを使用しています")
	}

	svc, closeCache, err := newService(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	srv, err := server.New(server.Options{
		AccessKey:         cfg.SiteAccessKey,
		StaticDir:         cfg.StaticDir,
		Generator:         svc,
		Deliverer:         newDelivery(cfg),
		Store:             db,
		GenerationTimeout: cfg.GenerationTimeout,
	})
	if err != nil {
		return err
	}

	slog.Info("モデルを読み込みました", "count", len(svc.Models()))
	return srv.Run(ctx, ":"+cfg.Port)
}

// setupLogger は標準出力とログファイルの両方に JSON で出力するロガーを設定します。
func setupLogger(cfg *config.Config) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
		return nil, fmt.Errorf("ログディレクトリの作成に失敗しました: %w", err)
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("ログファイルを開けませんでした: %w", err)
	}

	handler := slog.NewJSONHandler(io.MultiWriter(os.Stdout, f), &slog.HandlerOptions{Level: cfg.LogLevel})
	slog.SetDefault(slog.New(handler))
	return func() { _ = f.Close() }, nil
}

func newService(ctx context.Context, cfg *config.Config) (*generator.Service, func(), error) {
	noop := func() {}

	models, err := generator.LoadModels(cfg.ModelsFile)
	if err != nil {
		return nil, noop, err
	}

	var providers []generator.Provider
	if cfg.NanobananaAPIKey == "" {
		slog.Warn("NANOBANANA_API_KEY が未設定のため nanobanana のモデルは利用できません")
	} else {
		p, err := newProvider(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		providers = append(providers, p)
	}

	registry, err := generator.NewRegistry(models, providers...)
	if err != nil {
		return nil, noop, err
	}

	var imageCache adapters.ImageCacher
	closeCache := noop
	if cfg.Redis.Addr != "" {
		c, err := cache.NewRedisImageCache(ctx, cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			slog.Warn("Redis に接続できないため参照画像をキャッシュしません", "error", err)
		} else {
			imageCache = c
			closeCache = func() { _ = c.Close() }
		}
	}
	refs := adapters.NewReferenceLoader(adapters.NewDefaultFetcher(referenceFetchTimeout), imageCache, cfg.Redis.TTL)

	svc, err := generator.NewService(registry, refs)
	if err != nil {
		closeCache()
		return nil, noop, err
	}
	return svc, closeCache, nil
}

func newProvider(ctx context.Context, cfg *config.Config) (generator.Provider, error) {
	switch cfg.GeminiTransport {
	case config.TransportSDK:
		slog.Info("genai SDK 経由で nanobanana に接続します")
		return adapters.NewNanobananaSDK(ctx, cfg.NanobananaAPIKey, cfg.GeminiBaseURL)
	default:
		slog.Info("REST 経由で nanobanana に接続します")
		return adapters.NewNanobananaREST(cfg.GeminiBaseURL, cfg.NanobananaAPIKey, cfg.GenerationTimeout), nil
	}
}

func newDelivery(cfg *config.Config) *storage.Delivery {
	var uploader storage.Uploader
	if cfg.B2.Enabled() {
		uploader = storage.NewB2Uploader(storage.B2Config{
			KeyID:    cfg.B2.KeyID,
			Key:      cfg.B2.Key,
			Endpoint: cfg.B2.Endpoint,
			Region:   cfg.B2.Region,
			Bucket:   cfg.B2.Bucket,
		})
		slog.Info("B2 への保存を有効にしました", "bucket", cfg.B2.Bucket)
	}

	var notifier storage.Notifier
	if cfg.WebhookURL != "" {
		notifier = storage.NewWebhook(cfg.WebhookURL, cfg.WebhookTimeout)
		slog.Info("Webhook への通知を有効にしました")
	}
	return storage.NewDelivery(uploader, notifier)
}
