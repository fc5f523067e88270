package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"doi-hand/models"
	"doi-hand/services"
)

// PublicationHandle ist das OwnerHandle für Publikationsversionen.
type PublicationHandle struct {
	db *gorm.DB
}

// NewPublicationHandle erstellt ein neues PublicationHandle.
func NewPublicationHandle(db *gorm.DB) *PublicationHandle {
	return &PublicationHandle{db: db}
}

func (h *PublicationHandle) Type() services.PubObjectType {
	return services.TypePublication
}

func (h *PublicationHandle) Get(ctx context.Context, id uint) (*services.PubObject, error) {
	var pub models.Publication
	if err := h.db.WithContext(ctx).First(&pub, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: publication %d", services.ErrPubObjectNotFound, id)
		}
		return nil, err
	}
	return &services.PubObject{ID: pub.ID, SubmissionID: pub.SubmissionID, DoiID: pub.DoiID}, nil
}

func (h *PublicationHandle) SetDoiID(ctx context.Context, id uint, doiID *uint) error {
	return h.db.WithContext(ctx).
		Model(&models.Publication{}).
		Where("id = ?", id).
		Update("doi_id", doiID).Error
}

func (h *PublicationHandle) CountDoiRefs(ctx context.Context, doiID uint) (int64, error) {
	var n int64
	err := h.db.WithContext(ctx).
		Model(&models.Publication{}).
		Where("doi_id = ?", doiID).
		Count(&n).Error
	return n, err
}

func (h *PublicationHandle) ListBySubmission(ctx context.Context, submissionID uint) ([]services.PubObject, error) {
	var pubs []models.Publication
	if err := h.db.WithContext(ctx).Where("submission_id = ?", submissionID).Find(&pubs).Error; err != nil {
		return nil, err
	}
	out := make([]services.PubObject, 0, len(pubs))
	for _, p := range pubs {
		out = append(out, services.PubObject{ID: p.ID, SubmissionID: p.SubmissionID, DoiID: p.DoiID})
	}
	return out, nil
}

// GalleyHandle ist das OwnerHandle für Galleys.
type GalleyHandle struct {
	db *gorm.DB
}

// NewGalleyHandle erstellt ein neues GalleyHandle.
func NewGalleyHandle(db *gorm.DB) *GalleyHandle {
	return &GalleyHandle{db: db}
}

func (h *GalleyHandle) Type() services.PubObjectType {
	return services.TypeGalley
}

func (h *GalleyHandle) Get(ctx context.Context, id uint) (*services.PubObject, error) {
	var galley models.Galley
	if err := h.db.WithContext(ctx).First(&galley, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: galley %d", services.ErrPubObjectNotFound, id)
		}
		return nil, err
	}
	return &services.PubObject{ID: galley.ID, SubmissionID: galley.SubmissionID, DoiID: galley.DoiID}, nil
}

func (h *GalleyHandle) SetDoiID(ctx context.Context, id uint, doiID *uint) error {
	return h.db.WithContext(ctx).
		Model(&models.Galley{}).
		Where("id = ?", id).
		Update("doi_id", doiID).Error
}

func (h *GalleyHandle) CountDoiRefs(ctx context.Context, doiID uint) (int64, error) {
	var n int64
	err := h.db.WithContext(ctx).
		Model(&models.Galley{}).
		Where("doi_id = ?", doiID).
		Count(&n).Error
	return n, err
}

func (h *GalleyHandle) ListBySubmission(ctx context.Context, submissionID uint) ([]services.PubObject, error) {
	var galleys []models.Galley
	if err := h.db.WithContext(ctx).Where("submission_id = ?", submissionID).Find(&galleys).Error; err != nil {
		return nil, err
	}
	out := make([]services.PubObject, 0, len(galleys))
	for _, g := range galleys {
		out = append(out, services.PubObject{ID: g.ID, SubmissionID: g.SubmissionID, DoiID: g.DoiID})
	}
	return out, nil
}

var (
	_ services.OwnerHandle = (*PublicationHandle)(nil)
	_ services.OwnerHandle = (*GalleyHandle)(nil)
)
