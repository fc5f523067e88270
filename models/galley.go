package models

import "time"

// Galley repräsentiert eine Darstellungsform einer Publikation (z.B. das
// PDF- oder HTML-Galley) und kann einen eigenen DOI tragen. SubmissionID ist
// denormalisiert, damit Batch-Operationen nicht über Publications joinen müssen.
type Galley struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PublicationID uint  `json:"publication_id" gorm:"index;not null"`
	SubmissionID  uint  `json:"submission_id" gorm:"index;not null"`
	DoiID         *uint `json:"doi_id,omitempty" gorm:"index"`

	Label  string `json:"label"` // z.B. "PDF"
	Locale string `json:"locale,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (Galley) TableName() string {
	return "galleys"
}
