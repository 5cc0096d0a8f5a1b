package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
	"github.com/shouni/nanobanana-studio/pkg/domain"
	"github.com/shouni/nanobanana-studio/pkg/storage"
	"github.com/shouni/nanobanana-studio/pkg/store"
)

const (
	maxJSONBody    = 50 << 20
	maxInspectSize = 10 << 20

	shutdownTimeout = 10 * time.Second
)

// Generator はモデル一覧と画像生成を提供します。
type Generator interface {
	Models() []domain.ModelInfo
	Generate(ctx context.Context, req domain.ImageGenerationRequest) (*domain.GenerationResult, error)
}

// Deliverer は生成結果を外部へ配信します。
type Deliverer interface {
	Process(ctx context.Context, result *domain.GenerationResult, prompt string, md storage.RequestMetadata) storage.Result
}

// PromptStore はプロンプトライブラリと生成ログの永続化先です。
type PromptStore interface {
	Prompts(ctx context.Context, model string) ([]store.PromptEntry, error)
	SavePrompt(ctx context.Context, model, name, content, format string) (*store.PromptEntry, error)
	DeletePrompt(ctx context.Context, model, name string) (bool, error)
	RecordGeneration(ctx context.Context, entry *store.GenerationLog) error
}

// Options は Server の依存関係です。Deliverer と Store は省略できます。
type Options struct {
	AccessKey string
	StaticDir string
	Generator Generator
	Deliverer Deliverer
	Store     PromptStore
	Metrics   *Metrics
	// GenerationTimeout は 1 回の生成に許す時間です。0 の場合は制限しません。
	GenerationTimeout time.Duration
}

// Server は HTTP API と静的 UI を提供します。
type Server struct {
	engine    *gin.Engine
	generator Generator
	deliverer Deliverer
	store     PromptStore
	metrics   *Metrics
	staticDir string
	timeout   time.Duration
	now       func() time.Time
}

// New はルーティングを組み立てた Server を生成します。
func New(opts Options) (*Server, error) {
	if opts.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if opts.AccessKey == "" {
		return nil, fmt.Errorf("access key is required")
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	if opts.StaticDir == "" {
		opts.StaticDir = "public"
	}

	s := &Server{
		generator: opts.Generator,
		deliverer: opts.Deliverer,
		store:     opts.Store,
		metrics:   opts.Metrics,
		staticDir: opts.StaticDir,
		timeout:   opts.GenerationTimeout,
		now:       time.Now,
	}
	s.engine = s.routes(opts.AccessKey)
	return s, nil
}

func (s *Server) routes(accessKey string) *gin.Engine {
	engine := gin.New()
	engine.MaxMultipartMemory = maxInspectSize
	engine.Use(gin.Recovery())
	engine.Use(requestID())
	engine.Use(accessLog(s.metrics))
	engine.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", AccessKeyHeader},
		ExposeHeaders:   []string{"Content-Disposition", RequestIDHeader},
		MaxAge:          12 * time.Hour,
	}))
	engine.Use(static.Serve("/", static.LocalFile(s.staticDir, false)))

	engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	engine.GET("/watch", s.handleWatch)

	api := engine.Group("/api")
	api.POST("/download", limitBody(maxJSONBody), s.handleDownload)
	api.POST("/inspect", limitBody(maxJSONBody), s.handleInspect)

	secured := api.Group("", verifyAccessKey(accessKey), limitBody(maxJSONBody))
	secured.GET("/models", s.handleModels)
	secured.POST("/generate", s.handleGenerate)
	if s.store != nil {
		secured.GET("/prompts/:model", s.handleListPrompts)
		secured.POST("/prompts/:model", s.handleSavePrompt)
		secured.DELETE("/prompts/:model/:name", s.handleDeletePrompt)
	}
	return engine
}

// Handler は http.Handler としてのサーバーを返します。
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run は addr で待ち受け、ctx がキャンセルされると処理中のリクエストを待って終了します。
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("サーバーを起動しました", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	slog.Info("サーバーを停止しています")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("サーバーの停止に失敗しました: %w", err)
	}
	return nil
}
