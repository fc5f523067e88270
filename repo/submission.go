package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"doi-hand/models"
	"doi-hand/services"
)

// SubmissionStore ist die gorm-Implementierung von services.SubmissionStore.
// Submissions werden immer mit Publikationsversionen und Galleys vorgeladen.
type SubmissionStore struct {
	db *gorm.DB
}

// NewSubmissionStore erstellt einen neuen SubmissionStore.
func NewSubmissionStore(db *gorm.DB) *SubmissionStore {
	return &SubmissionStore{db: db}
}

func (s *SubmissionStore) preloaded(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Preload("Publications.Galleys").Preload("Publications")
}

// Get liefert eine Submission oder einen NotFound-Fehler.
func (s *SubmissionStore) Get(ctx context.Context, id uint) (*models.Submission, error) {
	var sub models.Submission
	if err := s.preloaded(ctx).First(&sub, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("submission %d nicht gefunden: %w", id, err)
		}
		return nil, err
	}
	return &sub, nil
}

// ListByIDs liefert die vorhandenen Submissions zu den IDs; fehlende IDs
// werden von der aufrufenden Batch-Validierung behandelt.
func (s *SubmissionStore) ListByIDs(ctx context.Context, ids []uint) ([]models.Submission, error) {
	var subs []models.Submission
	if len(ids) == 0 {
		return subs, nil
	}
	if err := s.preloaded(ctx).Where("id IN ?", ids).Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

// ListNeedingDeposit liefert alle veröffentlichten Submissions des Kontexts,
// die mindestens einen DOI mit Status Unregistered oder Stale tragen.
func (s *SubmissionStore) ListNeedingDeposit(ctx context.Context, contextID uint) ([]models.Submission, error) {
	needy := []models.DoiStatus{models.DoiStatusUnregistered, models.DoiStatusStale}

	doiIDs := s.db.Model(&models.Doi{}).
		Select("id").
		Where("context_id = ? AND status IN ?", contextID, needy)

	pubSubs := s.db.Model(&models.Publication{}).
		Select("submission_id").
		Where("doi_id IN (?)", doiIDs)
	galleySubs := s.db.Model(&models.Galley{}).
		Select("submission_id").
		Where("doi_id IN (?)", doiIDs)

	var subs []models.Submission
	err := s.preloaded(ctx).
		Where("context_id = ? AND status = ?", contextID, models.SubmissionStatusPublished).
		Where(s.db.Where("id IN (?)", pubSubs).Or("id IN (?)", galleySubs)).
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

var _ services.SubmissionStore = (*SubmissionStore)(nil)
