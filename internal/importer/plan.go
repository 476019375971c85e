package importer

import (
	"strings"

	"github.com/edithatogo/citeref/internal/csl"
)

// Action is what applying an imported record will do to the store.
type Action string

const (
	ActionNew    Action = "new"
	ActionUpdate Action = "update"
	// ActionSkip marks a record repeated within the same import.
	ActionSkip Action = "skip"
)

// Planned pairs an imported record with its action. For updates the record's
// id is rewritten to the id of the existing record it matched.
type Planned struct {
	Record       csl.Record `json:"record"`
	Action       Action     `json:"action"`
	ExistingID   string     `json:"existingId,omitempty"`
	MatchedByDOI bool       `json:"matchedByDoi,omitempty"`
}

// Plan matches incoming records against existing ones, first by id and then
// by DOI.
func Plan(existing, incoming []csl.Record) []Planned {
	byDOI := make(map[string]string)
	for _, r := range existing {
		if doi := normalizedDOI(r.DOI); doi != "" {
			if _, ok := byDOI[doi]; !ok {
				byDOI[doi] = r.ID
			}
		}
	}

	seen := make(map[string]bool)
	out := make([]Planned, 0, len(incoming))

	for _, rec := range incoming {
		p := Planned{Record: rec}

		switch {
		case seen[rec.ID]:
			p.Action = ActionSkip
		case hasID(existing, rec.ID):
			p.Action = ActionUpdate
			p.ExistingID = rec.ID
		default:
			if id, ok := byDOI[normalizedDOI(rec.DOI)]; ok {
				p.Action = ActionUpdate
				p.ExistingID = id
				p.MatchedByDOI = true
				p.Record.ID = id
			} else {
				p.Action = ActionNew
			}
		}

		seen[rec.ID] = true
		out = append(out, p)
	}

	return out
}

func hasID(records []csl.Record, id string) bool {
	_, ok := csl.FindByID(records, id)
	return ok
}

func normalizedDOI(doi string) string {
	return strings.ToLower(csl.NormalizeDOI(doi))
}
