package models

import "time"

// DoiStatus beschreibt den Registrierungszustand eines DOI-Eintrags
// gegenüber der Registration Agency.
type DoiStatus string

const (
	// DoiStatusUnregistered: angelegt, aber noch nie bei einer Agency deponiert.
	DoiStatusUnregistered DoiStatus = "unregistered"
	// DoiStatusSubmitted: Deposit wurde angestoßen, Bestätigung steht aus.
	DoiStatusSubmitted DoiStatus = "submitted"
	// DoiStatusRegistered: Registrierung wurde vom Manager bestätigt.
	DoiStatusRegistered DoiStatus = "registered"
	// DoiStatusStale: Metadaten haben sich nach dem Deposit geändert,
	// der Eintrag bei der Agency ist veraltet und muss neu deponiert werden.
	DoiStatusStale DoiStatus = "stale"
)

func (s DoiStatus) String() string { return string(s) }

// IsValid prüft, ob der Status ein bekannter Zustand ist.
func (s DoiStatus) IsValid() bool {
	switch s {
	case DoiStatusUnregistered, DoiStatusSubmitted, DoiStatusRegistered, DoiStatusStale:
		return true
	}
	return false
}

// NeedsDeposit meldet, ob der Eintrag beim nächsten Sweep deponiert werden soll.
func (s DoiStatus) NeedsDeposit() bool {
	return s == DoiStatusUnregistered || s == DoiStatusStale
}

// Doi repräsentiert einen persistenten Identifier-Eintrag. Ein Eintrag gehört
// genau einem Kontext; Pub-Objekte referenzieren ihn über ihre doi_id-Spalte.
// Wertänderungen für ein einzelnes Pub-Objekt laufen über Clone-on-Edit
// (services.Resolver), niemals über ein In-Place-Update eines geteilten Eintrags.
type Doi struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ContextID uint      `json:"context_id" gorm:"index;not null"`
	DOI       string    `json:"doi" gorm:"column:doi;index;default:''"`
	Status    DoiStatus `json:"status" gorm:"type:varchar(20);index;default:'unregistered'"`
}

// TableName gibt explizit den Tabellennamen an.
func (Doi) TableName() string {
	return "dois"
}
