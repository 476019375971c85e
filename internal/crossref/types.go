package crossref

import "github.com/edithatogo/citeref/internal/csl"

// WorkResponse is the envelope returned by GET /works/{doi}.
type WorkResponse struct {
	Status      string `json:"status"`
	MessageType string `json:"message-type"`
	Message     *Work  `json:"message"`
}

// Work is the subset of CrossRef work metadata mapped into records.
type Work struct {
	DOI               string             `json:"DOI"`
	Type              string             `json:"type"`
	Title             []string           `json:"title"`
	Subtitle          []string           `json:"subtitle"`
	Author            []Contributor      `json:"author"`
	Editor            []Contributor      `json:"editor"`
	ContainerTitle    []string           `json:"container-title"`
	Publisher         string             `json:"publisher"`
	PublisherLocation string             `json:"publisher-location"`
	Issued            *csl.Date          `json:"issued"`
	URL               string             `json:"URL"`
	ISBN              []string           `json:"ISBN"`
	Volume            csl.FlexibleString `json:"volume"`
	Issue             csl.FlexibleString `json:"issue"`
	Page              csl.FlexibleString `json:"page"`
	Abstract          string             `json:"abstract"`
}

// Contributor is a CrossRef person or organization.
// Organizations carry only Name.
type Contributor struct {
	Given    string `json:"given"`
	Family   string `json:"family"`
	Name     string `json:"name"`
	Literal  string `json:"literal"`
	ORCID    string `json:"ORCID"`
	Sequence string `json:"sequence"`
}
