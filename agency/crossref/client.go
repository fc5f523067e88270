package crossref

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"doi-hand/agency"
	"doi-hand/config"
	"doi-hand/models"
)

const schemaVersion = "4.3.6"
const schemaNamespace = "http://www.crossref.org/schema/4.3.6"

var httpClient = &http.Client{Timeout: 120 * time.Second}

// Client implementiert das Agency-Interface für Crossref.
type Client struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewClient erstellt einen neuen Crossref-Client.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{Config: cfg, Logger: logger}
}

// Name gibt den Namen des Adapters zurück.
func (c *Client) Name() string {
	return "crossref"
}

// ExportSubmissions baut das doi_batch-XML für die gegebenen Pakete.
func (c *Client) ExportSubmissions(ctx context.Context, pkgs []agency.DepositPackage, jc *models.JournalContext) ([]byte, error) {
	batch, err := c.buildBatch(pkgs, jc)
	if err != nil {
		return nil, err
	}

	out, err := xml.MarshalIndent(batch, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("crossref: XML-Serialisierung fehlgeschlagen: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

// DepositSubmissions überträgt das Deposit-XML an den Crossref-Deposit-Servlet.
func (c *Client) DepositSubmissions(ctx context.Context, pkgs []agency.DepositPackage, jc *models.JournalContext) (*agency.Result, error) {
	log := c.Logger.With(zap.String("agency", c.Name()), zap.Uint("context_id", jc.ID))

	payload, err := c.ExportSubmissions(ctx, pkgs, jc)
	if err != nil {
		return &agency.Result{HasErrors: true, ResponseMessage: err.Error()}, nil
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("mdFile", fmt.Sprintf("crossref-%d.xml", time.Now().Unix()))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(payload); err != nil {
		return nil, err
	}
	writer.Close()

	depositURL := fmt.Sprintf("%s?%s", c.Config.CrossrefBaseURL, url.Values{
		"operation":    {"doMDUpload"},
		"login_id":     {c.Config.CrossrefUser},
		"login_passwd": {c.Config.CrossrefPassword},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, depositURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	log.Info("Sende Deposit an Crossref", zap.Int("submissions", len(pkgs)))
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := string(respBody)

	if resp.StatusCode != http.StatusOK {
		log.Warn("Crossref hat den Deposit abgelehnt", zap.Int("status", resp.StatusCode))
		return &agency.Result{HasErrors: true, ResponseMessage: fmt.Sprintf("status %d: %s", resp.StatusCode, msg)}, nil
	}
	// Der Servlet antwortet mit 200 und meldet Fehler nur im Body.
	if strings.Contains(strings.ToUpper(msg), "FAILURE") {
		return &agency.Result{HasErrors: true, ResponseMessage: msg}, nil
	}

	log.Info("Crossref-Deposit angenommen")
	return &agency.Result{HasErrors: false, ResponseMessage: msg}, nil
}

// buildBatch konvertiert die Deposit-Pakete in das Crossref-Batch-Modell.
func (c *Client) buildBatch(pkgs []agency.DepositPackage, jc *models.JournalContext) (*DoiBatch, error) {
	var journals []Journal
	var problems []string

	for _, pkg := range pkgs {
		sub := pkg.Submission
		if len(sub.Publications) == 0 {
			problems = append(problems, fmt.Sprintf("submission %d: keine Publikationsversion", sub.ID))
			continue
		}

		for _, pub := range sub.Publications {
			if pub.DoiID == nil {
				continue
			}
			doi := pkg.DoiByID(*pub.DoiID)
			if doi == nil || doi.DOI == "" {
				problems = append(problems, fmt.Sprintf("submission %d: publication %d ohne DOI-Wert", sub.ID, pub.ID))
				continue
			}

			article := JournalArticle{
				PublicationType: "full_text",
				Titles:          Titles{Title: pub.Title},
				DoiData: DoiData{
					DOI:      doi.DOI,
					Resource: pub.URLPath,
				},
			}
			if pub.Year > 0 {
				article.PublicationDate = &PublicationDate{MediaType: "online", Year: pub.Year}
			}
			if first, last, ok := splitPages(pub.Pages); ok {
				article.Pages = &Pages{FirstPage: first, LastPage: last}
			}
			if names := contributorNames(pub.Authors); len(names) > 0 {
				article.Contributors = &Contributors{PersonNames: names}
			}

			// Galley-DOIs als Komponenten des Artikels
			for _, galley := range pub.Galleys {
				if galley.DoiID == nil {
					continue
				}
				gdoi := pkg.DoiByID(*galley.DoiID)
				if gdoi == nil || gdoi.DOI == "" {
					problems = append(problems, fmt.Sprintf("submission %d: galley %d ohne DOI-Wert", sub.ID, galley.ID))
					continue
				}
				article.Components = append(article.Components, Component{
					ParentRelation: "isPartOf",
					Description:    galley.Label,
					DoiData:        DoiData{DOI: gdoi.DOI, Resource: pub.URLPath},
				})
			}

			journal := Journal{
				Metadata: JournalMetadata{FullTitle: jc.Name, AbbrevTitle: jc.Initials},
				Articles: []JournalArticle{article},
			}
			if pub.Volume > 0 || pub.Issue > 0 {
				journal.Issue = &JournalIssue{
					Volume: strconv.Itoa(pub.Volume),
					Issue:  strconv.Itoa(pub.Issue),
				}
				if pub.Year > 0 {
					journal.Issue.PublicationDate = &PublicationDate{MediaType: "online", Year: pub.Year}
				}
			}
			journals = append(journals, journal)
		}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("crossref: %s", strings.Join(problems, "; "))
	}
	if len(journals) == 0 {
		return nil, fmt.Errorf("crossref: keine deponierbaren Publikationen im Batch")
	}

	now := time.Now()
	return &DoiBatch{
		Version: schemaVersion,
		Xmlns:   schemaNamespace,
		Head: Head{
			DoiBatchID: fmt.Sprintf("%s-%d", jc.Initials, now.Unix()),
			Timestamp:  now.UnixNano() / int64(time.Millisecond),
			Depositor: Depositor{
				DepositorName: c.Config.CrossrefDepositorName,
				EmailAddress:  c.Config.CrossrefDepositorEmail,
			},
			Registrant: jc.Name,
		},
		Body: Body{Journals: journals},
	}, nil
}

// splitPages zerlegt eine Seitenangabe wie "11-24" in erste und letzte Seite.
func splitPages(pages string) (string, string, bool) {
	pages = strings.TrimSpace(pages)
	if pages == "" {
		return "", "", false
	}
	parts := strings.SplitN(pages, "-", 2)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true
	}
	return pages, "", true
}

// contributorNames zerlegt den Autoren-String ("Nachname, Vorname; ...").
func contributorNames(authors string) []PersonName {
	var names []PersonName
	for i, entry := range strings.Split(authors, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name := PersonName{Role: "author", Sequence: "additional", Surname: entry}
		if i == 0 {
			name.Sequence = "first"
		}
		if parts := strings.SplitN(entry, ",", 2); len(parts) == 2 {
			name.Surname = strings.TrimSpace(parts[0])
			name.GivenName = strings.TrimSpace(parts[1])
		}
		names = append(names, name)
	}
	return names
}
