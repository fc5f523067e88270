package services

import (
	"context"

	"doi-hand/models"
)

// Die Services arbeiten ausschließlich gegen diese Store-Interfaces; die
// gorm-Implementierungen liegen im repo-Paket und werden beim Start injiziert.

// DoiStore ist die Persistenzgrenze für DOI-Einträge. Referenzielle
// Integrität (wer referenziert welchen Eintrag) prüft der Store bewusst
// nicht — das ist Aufgabe des Resolvers.
type DoiStore interface {
	// Get liefert einen Eintrag oder ErrDoiNotFound.
	Get(ctx context.Context, id uint) (*models.Doi, error)

	// Create legt einen neuen Eintrag mit Status Unregistered an.
	Create(ctx context.Context, contextID uint, value string) (*models.Doi, error)

	// Insert legt einen vollständig vorbereiteten Eintrag an (Clone-on-Edit).
	Insert(ctx context.Context, d *models.Doi) error

	// Delete entfernt einen Eintrag endgültig.
	Delete(ctx context.Context, id uint) error

	// ListBySubmission liefert alle DOI-Einträge, die von Pub-Objekten der
	// Submission referenziert werden.
	ListBySubmission(ctx context.Context, submissionID uint) ([]models.Doi, error)

	// TransitionStatus setzt den Status per Compare-and-Swap: der Übergang
	// findet nur statt, wenn der aktuelle Status in from enthalten ist.
	// Rückgabe false = kein Übergang (Status hatte sich geändert).
	TransitionStatus(ctx context.Context, id uint, from []models.DoiStatus, to models.DoiStatus) (bool, error)
}

// SubmissionStore liefert Submissions inklusive Publikationsversionen und
// Galleys (vorgeladen), wie sie Lifecycle- und Deposit-Operationen brauchen.
type SubmissionStore interface {
	Get(ctx context.Context, id uint) (*models.Submission, error)
	ListByIDs(ctx context.Context, ids []uint) ([]models.Submission, error)

	// ListNeedingDeposit liefert alle veröffentlichten Submissions des
	// Kontexts, die mindestens einen DOI mit Status Unregistered oder Stale
	// tragen (Grundlage des deposit-all-Sweeps).
	ListNeedingDeposit(ctx context.Context, contextID uint) ([]models.Submission, error)
}

// ContextStore löst Kontexte auf; die Agency-Konfiguration wird zu Beginn
// jeder Operation frisch aus dem Kontext gelesen, nie gecacht.
type ContextStore interface {
	Get(ctx context.Context, id uint) (*models.JournalContext, error)
}

// ArtifactStore persistiert exportierte Agency-XMLs (S3 + Metadaten-Zeile).
type ArtifactStore interface {
	SaveExport(ctx context.Context, jc *models.JournalContext, agencyName, fileName string, data []byte, userID uint) (*models.ExportArtifact, error)
}
