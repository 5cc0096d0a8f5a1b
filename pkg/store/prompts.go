package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm/clause"
)

// プロンプトの保存形式
const (
	FormatText = "text"
	FormatJSON = "json"
)

// PromptEntry はモデルごとに名前付きで保存されたプロンプトです。
// Content は FormatText なら文字列、FormatJSON なら JSON テキストです。
type PromptEntry struct {
	ID        uint      `gorm:"primaryKey"`
	Model     string    `gorm:"uniqueIndex:idx_prompt_model_name;not null"`
	Name      string    `gorm:"uniqueIndex:idx_prompt_model_name;not null"`
	Content   string    `gorm:"not null"`
	Format    string    `gorm:"not null;default:text"`
	Timestamp time.Time `gorm:"not null"`
}

// Prompts はモデルの保存済みプロンプトを保存順に返します。
func (s *Store) Prompts(ctx context.Context, model string) ([]PromptEntry, error) {
	var entries []PromptEntry
	err := s.withContext(ctx).
		Where("model = ?", model).
		Order("id").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("プロンプト一覧の取得に失敗しました: %w", err)
	}
	return entries, nil
}

// SavePrompt は同じ名前があれば上書きし、なければ追加します。
// 上書きしても一覧での位置は変わりません。
func (s *Store) SavePrompt(ctx context.Context, model, name, content, format string) (*PromptEntry, error) {
	if format == "" {
		format = FormatText
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidPrompt)
	}
	if format != FormatText && format != FormatJSON {
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidPrompt, format)
	}

	entry := &PromptEntry{
		Model:     model,
		Name:      name,
		Content:   content,
		Format:    format,
		Timestamp: time.Now().UTC(),
	}
	err := s.withContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "model"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "format", "timestamp"}),
	}).Create(entry).Error
	if err != nil {
		return nil, fmt.Errorf("プロンプトの保存に失敗しました: %w", err)
	}
	return entry, nil
}

// DeletePrompt は名前が一致するプロンプトを削除し、削除したかどうかを返します。
func (s *Store) DeletePrompt(ctx context.Context, model, name string) (bool, error) {
	res := s.withContext(ctx).
		Where("model = ? AND name = ?", model, name).
		Delete(&PromptEntry{})
	if res.Error != nil {
		return false, fmt.Errorf("プロンプトの削除に失敗しました: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
