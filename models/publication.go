package models

import "time"

// Publication repräsentiert eine Publikationsversion einer Submission und
// ist eines der Pub-Objekte, die einen DOI tragen können. Die doi_id-Spalte
// ist bewusst nullable: ein Pub-Objekt referenziert höchstens einen DOI.
type Publication struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SubmissionID uint  `json:"submission_id" gorm:"index;not null"`
	DoiID        *uint `json:"doi_id,omitempty" gorm:"index"`

	Title   string `json:"title"`
	Authors string `json:"authors,omitempty"`
	Year    int    `json:"year"`
	Volume  int    `json:"volume"`
	Issue   int    `json:"issue"`
	Pages   string `json:"pages,omitempty"`
	URLPath string `json:"url_path,omitempty"` // öffentliche Landing-Page der Publikation

	Galleys []Galley `json:"galleys,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (Publication) TableName() string {
	return "publications"
}
