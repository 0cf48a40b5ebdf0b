package training

import (
	"context"
	"errors"
	"fmt"

	"persona-app/internal/domain/personas"

	"gorm.io/gorm"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Persona(ctx context.Context, id uint) (*personas.Persona, error) {
	var persona personas.Persona
	err := s.db.WithContext(ctx).First(&persona, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch persona: %w", err)
	}
	return &persona, nil
}

func (s *GormStore) UpdateProgress(ctx context.Context, id uint, progress int) error {
	return s.transition(ctx, id, map[string]interface{}{
		"progress": progress,
	})
}

func (s *GormStore) MarkReady(ctx context.Context, id uint, thumbnailURL string) error {
	return s.transition(ctx, id, map[string]interface{}{
		"status":        personas.StatusReady,
		"progress":      100,
		"thumbnail_url": thumbnailURL,
	})
}

func (s *GormStore) MarkFailed(ctx context.Context, id uint) error {
	return s.transition(ctx, id, map[string]interface{}{
		"status": personas.StatusFailed,
	})
}

// transition only fires while the persona is still training, which keeps the
// training -> ready|failed state machine monotonic even under duplicate jobs.
func (s *GormStore) transition(ctx context.Context, id uint, updates map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&personas.Persona{}).
		Where("id = ? AND status = ?", id, personas.StatusTraining).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update persona %d: %w", id, res.Error)
	}
	return nil
}
