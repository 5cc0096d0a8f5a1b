package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrInvalidPrompt は保存しようとしたプロンプトが不正な場合のエラーです。
var ErrInvalidPrompt = errors.New("invalid prompt entry")

// Store はプロンプトライブラリと生成ログを SQLite に保存します。
type Store struct {
	db *gorm.DB
}

// Open は path の SQLite データベースを開き、テーブルを作成します。
// ":memory:" 以外の場合は親ディレクトリも作成します。
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("データディレクトリの作成に失敗しました: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("データベースを開けませんでした: %w", err)
	}
	return New(db)
}

// New は既存の接続から Store を生成し、マイグレーションを実行します。
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&PromptEntry{}, &GenerationLog{}); err != nil {
		return nil, fmt.Errorf("マイグレーションに失敗しました: %w", err)
	}
	return &Store{db: db}, nil
}

// Close は接続を閉じます。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) withContext(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}
