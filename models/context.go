package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// JournalContext repräsentiert einen Publikationskontext (eine Zeitschrift).
// DOI-Präfix, Suffix-Muster und die zuständige Registration Agency sind pro
// Kontext konfiguriert und werden zu Beginn jeder Operation frisch aufgelöst.
type JournalContext struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name     string `json:"name" gorm:"not null"`
	Initials string `json:"initials" gorm:"uniqueIndex;not null"` // z.B. "jcs"

	// DOI-Konfiguration
	DoiPrefix        string `json:"doi_prefix"`                              // z.B. "10.1234"; leer = Assignment deaktiviert
	DoiSuffixPattern string `json:"doi_suffix_pattern" gorm:"default:''"`    // leer = Default-Muster
	EnabledDoiTypes  string `json:"enabled_doi_types" gorm:"default:'publication,galley'"`

	// Name des Agency-Adapters ("crossref", "datacite"); leer = keine Agency.
	RegistrationAgency string `json:"registration_agency" gorm:"default:''"`
	// Adapter-spezifische Einstellungen (z.B. Test-Modus, Registrant-Name).
	AgencySettings datatypes.JSON `json:"agency_settings,omitempty" gorm:"type:jsonb"`
}

// TableName gibt explizit den Tabellennamen an.
func (JournalContext) TableName() string {
	return "journal_contexts"
}

// HasDoiType prüft, ob der Kontext DOIs für den gegebenen Pub-Objekt-Typ vergibt.
func (c *JournalContext) HasDoiType(t string) bool {
	for _, enabled := range strings.Split(c.EnabledDoiTypes, ",") {
		if strings.TrimSpace(enabled) == t {
			return true
		}
	}
	return false
}
