package models

import "time"

// Submission-Status (vereinfachter Workflow; für die DOI-Vergabe zählt nur "published").
const (
	SubmissionStatusQueued    = "queued"
	SubmissionStatusPublished = "published"
	SubmissionStatusDeclined  = "declined"
)

// Submission repräsentiert eine eingereichte Arbeit. Eine Submission kann
// mehrere DOI-tragende Pub-Objekte besitzen (Publikationsversionen, Galleys),
// die bei Statusübergängen immer gemeinsam bewegt werden.
type Submission struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ContextID uint   `json:"context_id" gorm:"index;not null"`
	Status    string `json:"status" gorm:"index;default:'queued'"`

	Publications []Publication `json:"publications,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (Submission) TableName() string {
	return "submissions"
}

// IsPublished meldet, ob die Submission veröffentlicht ist.
func (s *Submission) IsPublished() bool {
	return s.Status == SubmissionStatusPublished
}

// Title liefert den Titel der ersten Publikationsversion (für Fehlermeldungen).
func (s *Submission) Title() string {
	if len(s.Publications) == 0 {
		return ""
	}
	return s.Publications[0].Title
}
