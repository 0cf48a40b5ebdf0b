package generation

import (
	"context"
	"errors"
	"fmt"

	"persona-app/internal/domain/generations"
	"persona-app/internal/domain/personas"

	"gorm.io/gorm"
)

// GormStore is the database-backed Store used in production; tests swap in
// fakes behind the Store interface.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) PersonaForUser(ctx context.Context, id, userID uint) (*personas.Persona, error) {
	var persona personas.Persona
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&persona).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch persona: %w", err)
	}
	return &persona, nil
}

func (s *GormStore) CreateGeneration(ctx context.Context, g *generations.Generation) error {
	if err := s.db.WithContext(ctx).Create(g).Error; err != nil {
		return fmt.Errorf("insert generation: %w", err)
	}
	return nil
}

func (s *GormStore) DeleteGeneration(ctx context.Context, id uint) error {
	if err := s.db.WithContext(ctx).Delete(&generations.Generation{}, id).Error; err != nil {
		return fmt.Errorf("delete generation: %w", err)
	}
	return nil
}
