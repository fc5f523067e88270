package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"doi-hand/models"
	"doi-hand/services"
)

// ContextStore ist die gorm-Implementierung von services.ContextStore.
type ContextStore struct {
	db *gorm.DB
}

// NewContextStore erstellt einen neuen ContextStore.
func NewContextStore(db *gorm.DB) *ContextStore {
	return &ContextStore{db: db}
}

// Get liefert den Kontext oder einen NotFound-Fehler.
func (s *ContextStore) Get(ctx context.Context, id uint) (*models.JournalContext, error) {
	var jc models.JournalContext
	if err := s.db.WithContext(ctx).First(&jc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("kontext %d nicht gefunden: %w", id, err)
		}
		return nil, err
	}
	return &jc, nil
}

var _ services.ContextStore = (*ContextStore)(nil)
