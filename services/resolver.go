package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"doi-hand/models"
)

// PubObjectType kennzeichnet, welche Art von Pub-Objekt einen DOI trägt.
// Die Menge ist klein und geschlossen; der Resolver dispatcht darüber.
type PubObjectType string

const (
	TypePublication PubObjectType = "publication"
	TypeGalley      PubObjectType = "galley"
)

// IsValid prüft, ob der Typ bekannt ist.
func (t PubObjectType) IsValid() bool {
	return t == TypePublication || t == TypeGalley
}

// PubObject ist die typneutrale Sicht des Resolvers auf ein Pub-Objekt:
// nur Identität, Submission-Zugehörigkeit und die DOI-Referenz.
type PubObject struct {
	ID           uint
	SubmissionID uint
	DoiID        *uint
}

// OwnerHandle kapselt den Zugriff auf die doi_id-Referenz eines konkreten
// Pub-Objekt-Typs, ohne dass der Aufrufer den Typ kennen muss.
type OwnerHandle interface {
	Type() PubObjectType

	// Get liefert das Pub-Objekt oder ErrPubObjectNotFound.
	Get(ctx context.Context, id uint) (*PubObject, error)

	// SetDoiID setzt (oder löscht, bei nil) die DOI-Referenz des Objekts.
	SetDoiID(ctx context.Context, id uint, doiID *uint) error

	// CountDoiRefs zählt, wie viele Objekte dieses Typs den DOI referenzieren.
	CountDoiRefs(ctx context.Context, doiID uint) (int64, error)

	// ListBySubmission liefert alle Objekte dieses Typs einer Submission.
	ListBySubmission(ctx context.Context, submissionID uint) ([]PubObject, error)
}

// Resolver ordnet Pub-Objekt-Typen ihren OwnerHandles zu und implementiert
// die beiden referenzsicheren Mutationspfade: Clone-on-Edit und Löschen mit
// Referenzprüfung. DOI-Einträge können von mehreren Pub-Objekten geteilt
// werden; ein In-Place-Update würde alle Referenten gleichzeitig verändern.
type Resolver struct {
	dois    DoiStore
	handles map[PubObjectType]OwnerHandle
	log     *zap.Logger
}

// NewResolver erstellt einen Resolver über die gegebenen OwnerHandles.
func NewResolver(dois DoiStore, log *zap.Logger, handles ...OwnerHandle) *Resolver {
	m := make(map[PubObjectType]OwnerHandle, len(handles))
	for _, h := range handles {
		m[h.Type()] = h
	}
	return &Resolver{dois: dois, handles: m, log: log}
}

// Resolve liefert das OwnerHandle für den Typ oder ErrUnsupportedPubObjectType.
func (r *Resolver) Resolve(t PubObjectType) (OwnerHandle, error) {
	h, ok := r.handles[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPubObjectType, t)
	}
	return h, nil
}

// EditDoi ändert den DOI-Wert für genau ein Pub-Objekt. Der bestehende
// Eintrag wird nie in-place mutiert: seine Attribute werden in einen neuen
// Eintrag mit dem neuen Wert geklont, das Objekt wird umgehängt, und der
// alte Eintrag wird gelöscht, sobald ihn niemand mehr referenziert.
func (r *Resolver) EditDoi(ctx context.Context, t PubObjectType, objectID, doiID uint, newValue string) (*models.Doi, error) {
	handle, err := r.Resolve(t)
	if err != nil {
		return nil, err
	}

	obj, err := handle.Get(ctx, objectID)
	if err != nil {
		return nil, err
	}
	if obj.DoiID == nil || *obj.DoiID != doiID {
		return nil, fmt.Errorf("%w: %s %d referenziert DOI %d nicht", ErrDoiNotFound, t, objectID, doiID)
	}

	orig, err := r.dois.Get(ctx, doiID)
	if err != nil {
		return nil, err
	}

	clone := &models.Doi{
		ContextID: orig.ContextID,
		DOI:       newValue,
		Status:    orig.Status,
	}
	if err := r.dois.Insert(ctx, clone); err != nil {
		return nil, err
	}
	if err := handle.SetDoiID(ctx, objectID, &clone.ID); err != nil {
		return nil, err
	}

	if err := r.cleanupOrphan(ctx, doiID); err != nil {
		return nil, err
	}

	r.log.Info("DOI-Wert per Clone-on-Edit geändert",
		zap.String("pub_object_type", string(t)),
		zap.Uint("pub_object_id", objectID),
		zap.Uint("old_doi_id", doiID),
		zap.Uint("new_doi_id", clone.ID))
	return clone, nil
}

// RemoveDoi löscht die DOI-Referenz eines Pub-Objekts und räumt den Eintrag
// ab, wenn er danach von niemandem mehr referenziert wird.
func (r *Resolver) RemoveDoi(ctx context.Context, t PubObjectType, objectID, doiID uint) error {
	handle, err := r.Resolve(t)
	if err != nil {
		return err
	}

	obj, err := handle.Get(ctx, objectID)
	if err != nil {
		return err
	}
	if obj.DoiID == nil || *obj.DoiID != doiID {
		return fmt.Errorf("%w: %s %d referenziert DOI %d nicht", ErrDoiNotFound, t, objectID, doiID)
	}

	if err := handle.SetDoiID(ctx, objectID, nil); err != nil {
		return err
	}
	return r.cleanupOrphan(ctx, doiID)
}

// CountReferences zählt die Referenzen auf einen DOI über alle Typen hinweg.
func (r *Resolver) CountReferences(ctx context.Context, doiID uint) (int64, error) {
	var total int64
	for _, h := range r.handles {
		n, err := h.CountDoiRefs(ctx, doiID)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// cleanupOrphan löscht den Eintrag, wenn keine Referenz mehr existiert
// (referenzgezählte Löschung, keine Kaskade).
func (r *Resolver) cleanupOrphan(ctx context.Context, doiID uint) error {
	refs, err := r.CountReferences(ctx, doiID)
	if err != nil {
		return err
	}
	if refs > 0 {
		return nil
	}
	if err := r.dois.Delete(ctx, doiID); err != nil {
		return err
	}
	r.log.Info("Verwaisten DOI-Eintrag gelöscht", zap.Uint("doi_id", doiID))
	return nil
}
