package store

import (
	"context"
	"fmt"
	"time"
)

// 生成ログの状態
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// GenerationLog は生成リクエスト 1 件の記録です。プロンプト本文は保存しません。
type GenerationLog struct {
	ID           uint   `gorm:"primaryKey"`
	ReqID        string `gorm:"index;not null"`
	Model        string `gorm:"index"`
	PromptLength int
	Kind         string
	Status       string `gorm:"not null"`
	Error        string
	CreatedAt    time.Time
}

// RecordGeneration は生成ログを追加します。
func (s *Store) RecordGeneration(ctx context.Context, entry *GenerationLog) error {
	if err := s.withContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("生成ログの記録に失敗しました: %w", err)
	}
	return nil
}

// RecentGenerations は新しい順に最大 limit 件の生成ログを返します。
func (s *Store) RecentGenerations(ctx context.Context, limit int) ([]GenerationLog, error) {
	var logs []GenerationLog
	err := s.withContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("生成ログの取得に失敗しました: %w", err)
	}
	return logs, nil
}
