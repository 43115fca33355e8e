// Package history persists completed analysis turns for later review.
package history

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/eleven-am/glance/internal/shared"
)

// Turn is one completed response turn from either pipeline.
type Turn struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	TurnID    uint64    `gorm:"index" json:"turn_id"`
	Source    string    `gorm:"index" json:"source"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&Turn{})
}

// Record satisfies the orchestrator's persistence hook.
func (s *Store) Record(ctx context.Context, turnID uint64, source, text string) error {
	return s.db.WithContext(ctx).Create(&Turn{
		ID:     shared.NewID("turn_"),
		TurnID: turnID,
		Source: source,
		Text:   text,
	}).Error
}

// Recent returns the newest turns first, optionally filtered by source.
func (s *Store) Recent(ctx context.Context, source string, limit int) ([]*Turn, error) {
	if limit <= 0 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if source != "" {
		q = q.Where("source = ?", source)
	}
	var turns []*Turn
	err := q.Find(&turns).Error
	return turns, err
}

// Clear deletes all stored turns.
func (s *Store) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("1 = 1").Delete(&Turn{}).Error
}
