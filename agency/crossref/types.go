package crossref

import "encoding/xml"

// Strukturen für das Crossref-Deposit-Schema (doi_batch 4.3.6, reduziert auf
// die Elemente, die wir tatsächlich befüllen).

type DoiBatch struct {
	XMLName xml.Name `xml:"doi_batch"`
	Version string   `xml:"version,attr"`
	Xmlns   string   `xml:"xmlns,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

type Head struct {
	DoiBatchID string    `xml:"doi_batch_id"`
	Timestamp  int64     `xml:"timestamp"`
	Depositor  Depositor `xml:"depositor"`
	Registrant string    `xml:"registrant"`
}

type Depositor struct {
	DepositorName string `xml:"depositor_name"`
	EmailAddress  string `xml:"email_address"`
}

type Body struct {
	Journals []Journal `xml:"journal"`
}

type Journal struct {
	Metadata JournalMetadata  `xml:"journal_metadata"`
	Issue    *JournalIssue    `xml:"journal_issue,omitempty"`
	Articles []JournalArticle `xml:"journal_article"`
}

type JournalMetadata struct {
	FullTitle   string `xml:"full_title"`
	AbbrevTitle string `xml:"abbrev_title,omitempty"`
}

type JournalIssue struct {
	PublicationDate *PublicationDate `xml:"publication_date,omitempty"`
	Volume          string           `xml:"journal_volume>volume,omitempty"`
	Issue           string           `xml:"issue,omitempty"`
}

type JournalArticle struct {
	PublicationType string           `xml:"publication_type,attr"`
	Titles          Titles           `xml:"titles"`
	Contributors    *Contributors    `xml:"contributors,omitempty"`
	PublicationDate *PublicationDate `xml:"publication_date,omitempty"`
	Pages           *Pages           `xml:"pages,omitempty"`
	DoiData         DoiData          `xml:"doi_data"`
	Components      []Component      `xml:"component_list>component,omitempty"`
}

type Titles struct {
	Title string `xml:"title"`
}

type Contributors struct {
	PersonNames []PersonName `xml:"person_name"`
}

type PersonName struct {
	Role      string `xml:"contributor_role,attr"`
	Sequence  string `xml:"sequence,attr"`
	GivenName string `xml:"given_name,omitempty"`
	Surname   string `xml:"surname"`
}

type PublicationDate struct {
	MediaType string `xml:"media_type,attr"`
	Year      int    `xml:"year"`
}

type Pages struct {
	FirstPage string `xml:"first_page,omitempty"`
	LastPage  string `xml:"last_page,omitempty"`
}

type DoiData struct {
	DOI      string `xml:"doi"`
	Resource string `xml:"resource"`
}

// Component bildet Galley-DOIs als Komponenten des Artikels ab.
type Component struct {
	ParentRelation string  `xml:"parent_relation,attr"`
	Description    string  `xml:"description,omitempty"`
	DoiData        DoiData `xml:"doi_data"`
}
