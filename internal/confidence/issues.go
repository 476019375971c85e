package confidence

import (
	"time"

	"github.com/edithatogo/citeref/internal/csl"
)

// Issues lists the gaps that keep a record's score down.
func Issues(r csl.Record) []string {
	var issues []string
	if r.Title == "" {
		issues = append(issues, "Missing title")
	}
	if len(r.Author) == 0 {
		issues = append(issues, "No authors listed")
	}
	if r.Issued.IsZero() {
		issues = append(issues, "Missing publication date")
	}
	if !r.HasAuthoritativeID() {
		issues = append(issues, "Missing authoritative identifier (DOI, ISBN, PMID)")
	}
	if r.URL == "" {
		issues = append(issues, "Missing URL for verification")
	}
	return issues
}

// Filter returns the records whose score lies in [min, max].
func Filter(records []csl.Record, min, max float64) []csl.Record {
	year := time.Now().Year()
	var out []csl.Record
	for _, r := range records {
		s := ScoreAt(r, nil, year)
		if s >= min && s <= max {
			out = append(out, r)
		}
	}
	return out
}
