package datacite

import "encoding/xml"

// Strukturen für das DataCite-Metadata-Schema (kernel-4, reduziert).

type Resources struct {
	XMLName   xml.Name   `xml:"resources"`
	Resources []Resource `xml:"resource"`
}

type Resource struct {
	XMLName    xml.Name   `xml:"resource"`
	Xmlns      string     `xml:"xmlns,attr"`
	Identifier Identifier `xml:"identifier"`
	Creators   []Creator  `xml:"creators>creator"`
	Titles     []Title    `xml:"titles>title"`
	Publisher  string     `xml:"publisher"`
	Year       int        `xml:"publicationYear"`
	Resource   TypeGen    `xml:"resourceType"`
}

type Identifier struct {
	Type  string `xml:"identifierType,attr"`
	Value string `xml:",chardata"`
}

type Creator struct {
	Name string `xml:"creatorName"`
}

type Title struct {
	Value string `xml:",chardata"`
}

type TypeGen struct {
	General string `xml:"resourceTypeGeneral,attr"`
	Value   string `xml:",chardata"`
}
