package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"doi-hand/models"
	"doi-hand/services"
)

// DoiStore ist die gorm-Implementierung von services.DoiStore.
type DoiStore struct {
	db *gorm.DB
}

// NewDoiStore erstellt einen neuen DoiStore.
func NewDoiStore(db *gorm.DB) *DoiStore {
	return &DoiStore{db: db}
}

// Get liefert einen DOI-Eintrag oder services.ErrDoiNotFound.
func (s *DoiStore) Get(ctx context.Context, id uint) (*models.Doi, error) {
	var doi models.Doi
	if err := s.db.WithContext(ctx).First(&doi, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", services.ErrDoiNotFound, id)
		}
		return nil, err
	}
	return &doi, nil
}

// Create legt einen neuen Eintrag mit Status Unregistered an.
func (s *DoiStore) Create(ctx context.Context, contextID uint, value string) (*models.Doi, error) {
	doi := models.Doi{
		ContextID: contextID,
		DOI:       value,
		Status:    models.DoiStatusUnregistered,
	}
	if err := s.db.WithContext(ctx).Create(&doi).Error; err != nil {
		return nil, err
	}
	return &doi, nil
}

// Insert legt einen vollständig vorbereiteten Eintrag an (Clone-on-Edit).
func (s *DoiStore) Insert(ctx context.Context, d *models.Doi) error {
	return s.db.WithContext(ctx).Create(d).Error
}

// Delete entfernt einen Eintrag endgültig. Referenzzählung macht der Resolver.
func (s *DoiStore) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&models.Doi{}, id).Error
}

// ListBySubmission sammelt alle DOI-Einträge, die von Publikationsversionen
// oder Galleys der Submission referenziert werden.
func (s *DoiStore) ListBySubmission(ctx context.Context, submissionID uint) ([]models.Doi, error) {
	var dois []models.Doi
	err := s.db.WithContext(ctx).
		Where("id IN (?)", s.db.Model(&models.Publication{}).
			Select("doi_id").
			Where("submission_id = ? AND doi_id IS NOT NULL", submissionID)).
		Or("id IN (?)", s.db.Model(&models.Galley{}).
			Select("doi_id").
			Where("submission_id = ? AND doi_id IS NOT NULL", submissionID)).
		Find(&dois).Error
	if err != nil {
		return nil, err
	}
	return dois, nil
}

// TransitionStatus setzt den Status per Compare-and-Swap. false bedeutet:
// der Eintrag war nicht (mehr) in einem der erwarteten Ausgangszustände.
func (s *DoiStore) TransitionStatus(ctx context.Context, id uint, from []models.DoiStatus, to models.DoiStatus) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Doi{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

var _ services.DoiStore = (*DoiStore)(nil)
