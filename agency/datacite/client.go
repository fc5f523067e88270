package datacite

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"doi-hand/agency"
	"doi-hand/config"
	"doi-hand/models"
)

const kernelNamespace = "http://datacite.org/schema/kernel-4"

var httpClient = &http.Client{Timeout: 120 * time.Second}

// Client implementiert das Agency-Interface für die DataCite-MDS-API.
type Client struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewClient erstellt einen neuen DataCite-Client.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{Config: cfg, Logger: logger}
}

// Name gibt den Namen des Adapters zurück.
func (c *Client) Name() string {
	return "datacite"
}

// ExportSubmissions baut das Metadaten-XML für die gegebenen Pakete. DataCite
// kennt keine Batch-Deposits; der Export bündelt alle Resources in einem Dokument.
func (c *Client) ExportSubmissions(ctx context.Context, pkgs []agency.DepositPackage, jc *models.JournalContext) ([]byte, error) {
	resources, err := buildResources(pkgs, jc)
	if err != nil {
		return nil, err
	}

	out, err := xml.MarshalIndent(Resources{Resources: resources}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("datacite: XML-Serialisierung fehlgeschlagen: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

// DepositSubmissions registriert Metadaten und URL für jeden DOI einzeln
// (MDS: POST /metadata, danach POST /doi). Abgelehnte DOIs werden im
// Result gesammelt, Transportfehler brechen ab.
func (c *Client) DepositSubmissions(ctx context.Context, pkgs []agency.DepositPackage, jc *models.JournalContext) (*agency.Result, error) {
	log := c.Logger.With(zap.String("agency", c.Name()), zap.Uint("context_id", jc.ID))

	var rejected []string
	for _, pkg := range pkgs {
		resources, err := buildResources([]agency.DepositPackage{pkg}, jc)
		if err != nil {
			rejected = append(rejected, err.Error())
			continue
		}
		landing := landingPage(&pkg)

		for _, res := range resources {
			if err := c.depositOne(ctx, res, landing); err != nil {
				if isTransport(err) {
					return nil, err
				}
				rejected = append(rejected, err.Error())
			}
		}
	}

	if len(rejected) > 0 {
		log.Warn("DataCite hat Deposits abgelehnt", zap.Int("rejected", len(rejected)))
		return &agency.Result{HasErrors: true, ResponseMessage: strings.Join(rejected, "; ")}, nil
	}

	log.Info("DataCite-Deposit angenommen", zap.Int("submissions", len(pkgs)))
	return &agency.Result{HasErrors: false, ResponseMessage: "OK"}, nil
}

type rejectionError struct{ msg string }

func (e *rejectionError) Error() string { return e.msg }

func isTransport(err error) bool {
	_, rejection := err.(*rejectionError)
	return !rejection
}

// depositOne registriert einen einzelnen DOI (Metadaten + URL).
func (c *Client) depositOne(ctx context.Context, res Resource, landing string) error {
	payload, err := xml.Marshal(res)
	if err != nil {
		return err
	}
	if err := c.post(ctx, "/metadata", "application/xml;charset=UTF-8", append([]byte(xml.Header), payload...)); err != nil {
		return err
	}

	body := fmt.Sprintf("doi=%s\nurl=%s", res.Identifier.Value, landing)
	return c.post(ctx, "/doi", "text/plain;charset=UTF-8", []byte(body))
}

// post sendet eine authentifizierte Anfrage an die MDS-API.
func (c *Client) post(ctx context.Context, path, contentType string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Config.DataCiteBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.Config.DataCiteUser, c.Config.DataCitePassword)
	req.Header.Set("Content-Type", contentType)

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return &rejectionError{msg: fmt.Sprintf("datacite %s: status %d: %s", path, resp.StatusCode, string(msg))}
	}
	return nil
}

// buildResources konvertiert Deposit-Pakete in DataCite-Resources (eine pro DOI).
func buildResources(pkgs []agency.DepositPackage, jc *models.JournalContext) ([]Resource, error) {
	var resources []Resource
	var problems []string

	for _, pkg := range pkgs {
		sub := pkg.Submission
		if len(sub.Publications) == 0 {
			problems = append(problems, fmt.Sprintf("submission %d: keine Publikationsversion", sub.ID))
			continue
		}

		for _, pub := range sub.Publications {
			if pub.DoiID != nil {
				doi := pkg.DoiByID(*pub.DoiID)
				if doi == nil || doi.DOI == "" {
					problems = append(problems, fmt.Sprintf("submission %d: publication %d ohne DOI-Wert", sub.ID, pub.ID))
				} else {
					resources = append(resources, newResource(doi.DOI, pub.Title, pub.Authors, pub.Year, jc, "Text"))
				}
			}
			for _, galley := range pub.Galleys {
				if galley.DoiID == nil {
					continue
				}
				gdoi := pkg.DoiByID(*galley.DoiID)
				if gdoi == nil || gdoi.DOI == "" {
					problems = append(problems, fmt.Sprintf("submission %d: galley %d ohne DOI-Wert", sub.ID, galley.ID))
					continue
				}
				resources = append(resources, newResource(gdoi.DOI, pub.Title+" ("+galley.Label+")", pub.Authors, pub.Year, jc, "Text"))
			}
		}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("datacite: %s", strings.Join(problems, "; "))
	}
	if len(resources) == 0 {
		return nil, fmt.Errorf("datacite: keine deponierbaren DOIs im Batch")
	}
	return resources, nil
}

func newResource(doi, title, authors string, year int, jc *models.JournalContext, kind string) Resource {
	res := Resource{
		Xmlns:      kernelNamespace,
		Identifier: Identifier{Type: "DOI", Value: doi},
		Titles:     []Title{{Value: title}},
		Publisher:  jc.Name,
		Year:       year,
		Resource:   TypeGen{General: kind, Value: "Article"},
	}
	for _, a := range strings.Split(authors, ";") {
		if a = strings.TrimSpace(a); a != "" {
			res.Creators = append(res.Creators, Creator{Name: a})
		}
	}
	return res
}

// landingPage bestimmt die Ziel-URL für die DOI-Auflösung.
func landingPage(pkg *agency.DepositPackage) string {
	for _, pub := range pkg.Submission.Publications {
		if pub.URLPath != "" {
			return pub.URLPath
		}
	}
	return ""
}
