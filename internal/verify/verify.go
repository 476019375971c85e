// Package verify checks a manuscript's citation keys against a record
// collection.
package verify

import (
	"fmt"
	"strings"

	"github.com/edithatogo/citeref/internal/csl"
	"github.com/edithatogo/citeref/internal/manuscript"
	"github.com/edithatogo/citeref/internal/schema"
)

// DefaultLowInfoThreshold is the populated-field count below which a record
// is low information.
const DefaultLowInfoThreshold = 4

// Severity grades an issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue types.
const (
	IssueMissing        = "missing_citation"
	IssueUnused         = "unused_citation"
	IssueDuplicate      = "duplicate_citation"
	IssueLowInformation = "low_information_citation"
	IssueDegenerate     = "degenerate_citation"
	IssueSchema         = "schema_error"
	IssueRequiredField  = "missing_required_field"
	IssueLowConfidence  = "low_confidence_citation"
)

// Issue is a single diagnostic.
type Issue struct {
	Type      string   `json:"type"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
	Citations []string `json:"citations,omitempty"`
}

// Options tunes a verification pass.
type Options struct {
	// LowInfoThreshold defaults to DefaultLowInfoThreshold when zero.
	LowInfoThreshold int
	// StrictFields makes required-field errors invalidate the report.
	StrictFields bool
}

func (o Options) lowInfoThreshold() int {
	if o.LowInfoThreshold <= 0 {
		return DefaultLowInfoThreshold
	}
	return o.LowInfoThreshold
}

// Summary counts the report's findings.
type Summary struct {
	TotalManuscriptCitations int `json:"totalManuscriptCitations"`
	TotalCslCitations        int `json:"totalCslCitations"`
	MissingCitations         int `json:"missingCitations"`
	UnusedCitations          int `json:"unusedCitations"`
	DuplicateCitations       int `json:"duplicateCitations"`
	LowInfoCitations         int `json:"lowInfoCitations"`
	DegenerateCitations      int `json:"degenerateCitations"`
	SchemaErrors             int `json:"schemaErrors"`
	FieldErrors              int `json:"fieldErrors"`
}

// Report is the outcome of one verification pass. Slices are never nil.
type Report struct {
	IsValid           bool           `json:"isValid"`
	ManuscriptKeys    []string       `json:"manuscriptCitations"`
	Occurrences       map[string]int `json:"occurrences"`
	RecordIDs         []string       `json:"cslCitationIds"`
	Missing           []string       `json:"missingCitations"`
	Unused            []string       `json:"unusedCitations"`
	DuplicateIDs      []string       `json:"duplicateIds"`
	LowInformationIDs []string       `json:"lowInformationIds"`
	DegenerateIDs     []string       `json:"degenerateIds"`
	SchemaErrors      []string       `json:"schemaErrors"`
	FieldErrors       []string       `json:"fieldErrors"`
	Issues            []Issue        `json:"issues"`
	Summary           Summary        `json:"summary"`
}

// HasErrors reports whether any issue has error severity.
func (r *Report) HasErrors() bool {
	for _, is := range r.Issues {
		if is.Severity == SeverityError {
			return true
		}
	}
	return false
}

// AddIssue appends an issue. Error issues invalidate the report.
func (r *Report) AddIssue(is Issue) {
	r.Issues = append(r.Issues, is)
	if is.Severity == SeverityError {
		r.IsValid = false
	}
}

// Verify compares the citation keys in text with the ids of records.
//
// Duplicate, low-information and degenerate checks run over the raw
// collection, so one record can appear in several lists.
func Verify(text string, records []csl.Record, opts Options) *Report {
	keys := manuscript.Keys(text)
	ids := uniqueIDs(records)

	idSet := toSet(ids)
	keySet := toSet(keys)

	r := &Report{
		ManuscriptKeys:    nonNil(keys),
		Occurrences:       manuscript.Occurrences(text),
		RecordIDs:         nonNil(ids),
		Missing:           []string{},
		Unused:            []string{},
		DuplicateIDs:      duplicateIDs(records),
		LowInformationIDs: []string{},
		DegenerateIDs:     []string{},
		SchemaErrors:      nonNil(schema.ValidateRecords(records)),
		FieldErrors:       nonNil(schema.ValidateRequiredFields(records)),
	}

	for _, k := range keys {
		if !idSet[k] {
			r.Missing = append(r.Missing, k)
		}
	}
	for _, id := range ids {
		if !keySet[id] {
			r.Unused = append(r.Unused, id)
		}
	}

	threshold := opts.lowInfoThreshold()
	for _, rec := range records {
		if len(rec.PopulatedFields()) < threshold {
			r.LowInformationIDs = append(r.LowInformationIDs, rec.ID)
		}
		if rec.Degenerate() {
			r.DegenerateIDs = append(r.DegenerateIDs, rec.ID)
		}
	}

	r.IsValid = len(r.Missing) == 0 && len(r.SchemaErrors) == 0
	if opts.StrictFields && len(r.FieldErrors) > 0 {
		r.IsValid = false
	}

	r.Issues = []Issue{}
	r.collectIssues(opts)

	r.Summary = Summary{
		TotalManuscriptCitations: len(r.ManuscriptKeys),
		TotalCslCitations:        len(r.RecordIDs),
		MissingCitations:         len(r.Missing),
		UnusedCitations:          len(r.Unused),
		DuplicateCitations:       len(r.DuplicateIDs),
		LowInfoCitations:         len(r.LowInformationIDs),
		DegenerateCitations:      len(r.DegenerateIDs),
		SchemaErrors:             len(r.SchemaErrors),
		FieldErrors:              len(r.FieldErrors),
	}
	return r
}

func (r *Report) collectIssues(opts Options) {
	if len(r.SchemaErrors) > 0 {
		r.Issues = append(r.Issues, Issue{
			Type:     IssueSchema,
			Severity: SeverityError,
			Message:  "Invalid CSL-JSON format: " + strings.Join(r.SchemaErrors, "; "),
		})
	}
	if len(r.FieldErrors) > 0 {
		sev := SeverityWarning
		if opts.StrictFields {
			sev = SeverityError
		}
		r.Issues = append(r.Issues, Issue{
			Type:     IssueRequiredField,
			Severity: sev,
			Message:  "CSL-JSON has missing required fields: " + strings.Join(r.FieldErrors, "; "),
		})
	}
	if len(r.Missing) > 0 {
		r.Issues = append(r.Issues, Issue{
			Type:      IssueMissing,
			Severity:  SeverityError,
			Message:   "Citations referenced in manuscript but not found in reference list: " + strings.Join(r.Missing, ", "),
			Citations: r.Missing,
		})
	}
	if len(r.Unused) > 0 {
		r.Issues = append(r.Issues, Issue{
			Type:      IssueUnused,
			Severity:  SeverityWarning,
			Message:   "Citations in reference list but not used in manuscript: " + strings.Join(r.Unused, ", "),
			Citations: r.Unused,
		})
	}
	if len(r.DuplicateIDs) > 0 {
		r.Issues = append(r.Issues, Issue{
			Type:      IssueDuplicate,
			Severity:  SeverityWarning,
			Message:   "Duplicate citation IDs found: " + strings.Join(r.DuplicateIDs, ", "),
			Citations: r.DuplicateIDs,
		})
	}
	if len(r.LowInformationIDs) > 0 {
		r.Issues = append(r.Issues, Issue{
			Type:      IssueLowInformation,
			Severity:  SeverityWarning,
			Message:   fmt.Sprintf("Citations with low information content (fewer than %d fields): %s", opts.lowInfoThreshold(), strings.Join(r.LowInformationIDs, ", ")),
			Citations: r.LowInformationIDs,
		})
	}
	if len(r.DegenerateIDs) > 0 {
		r.Issues = append(r.Issues, Issue{
			Type:      IssueDegenerate,
			Severity:  SeverityWarning,
			Message:   "Citations with neither a title nor an identifier: " + strings.Join(r.DegenerateIDs, ", "),
			Citations: r.DegenerateIDs,
		})
	}
}

// uniqueIDs returns record ids in first-seen order without repeats.
func uniqueIDs(records []csl.Record) []string {
	seen := make(map[string]bool, len(records))
	var ids []string
	for _, r := range records {
		if !seen[r.ID] {
			seen[r.ID] = true
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// duplicateIDs returns each repeated id once, in order of first repetition.
func duplicateIDs(records []csl.Record) []string {
	count := make(map[string]int, len(records))
	dups := []string{}
	for _, r := range records {
		count[r.ID]++
		if count[r.ID] == 2 {
			dups = append(dups, r.ID)
		}
	}
	return dups
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
