package agency

import (
	"context"

	"doi-hand/models"
)

// DepositPackage bündelt eine Submission mit ihren Publikationsversionen,
// Galleys und den zugehörigen DOI-Einträgen für Export und Deposit.
type DepositPackage struct {
	Submission models.Submission
	Dois       []models.Doi
}

// Result ist das Ergebnis eines Deposits bei der Agency.
type Result struct {
	HasErrors       bool   `json:"has_errors"`
	ResponseMessage string `json:"response_message"`
}

// Agency ist das Interface, das jeder Registration-Agency-Adapter
// (z.B. Crossref, DataCite) implementieren muss.
type Agency interface {
	// Name gibt den eindeutigen Namen des Adapters zurück (z.B. "crossref").
	Name() string

	// ExportSubmissions erzeugt das Deposit-XML für die gegebenen Pakete.
	// Metadatenfehler werden als error zurückgegeben; es findet kein Upload statt.
	ExportSubmissions(ctx context.Context, pkgs []DepositPackage, jc *models.JournalContext) ([]byte, error)

	// DepositSubmissions überträgt das Deposit-XML an die Agency. Abgelehnte
	// Deposits melden HasErrors im Result; error ist Transportfehlern vorbehalten.
	DepositSubmissions(ctx context.Context, pkgs []DepositPackage, jc *models.JournalContext) (*Result, error)
}

// DoiByID löst den DOI-Eintrag zu einer doi_id aus dem Paket auf.
func (p *DepositPackage) DoiByID(id uint) *models.Doi {
	for i := range p.Dois {
		if p.Dois[i].ID == id {
			return &p.Dois[i]
		}
	}
	return nil
}
