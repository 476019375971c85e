package verify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/edithatogo/citeref/internal/csl"
)

// PlaceholderNote marks records created for missing citations.
const PlaceholderNote = "This is a placeholder citation that needs to be properly filled in"

// FixPlan lists the store changes that would resolve a report's missing and
// unused citations.
type FixPlan struct {
	Add    []csl.Record `json:"addedCitations"`
	Remove []string     `json:"removedCitations"`
}

// PlanFixes builds placeholders for every missing key and lists every unused id.
func PlanFixes(r *Report, now time.Time) FixPlan {
	plan := FixPlan{Add: []csl.Record{}, Remove: append([]string{}, r.Unused...)}
	for _, id := range r.Missing {
		plan.Add = append(plan.Add, Placeholder(id, now))
	}
	return plan
}

// Placeholder returns a stub record for a citation key with no record.
func Placeholder(id string, now time.Time) csl.Record {
	accessed, _ := json.Marshal(csl.NewDate(now.Year(), int(now.Month()), now.Day()))
	return csl.Record{
		ID:    id,
		Type:  csl.TypeArticle,
		Title: fmt.Sprintf("PLACEHOLDER: Missing citation for %s", id),
		Note:  PlaceholderNote,
		Extra: map[string]json.RawMessage{"accessed": accessed},
	}
}

// Apply returns records with the selected fixes applied.
func (p FixPlan) Apply(records []csl.Record, addMissing, removeUnused bool) []csl.Record {
	out := append([]csl.Record(nil), records...)

	if addMissing {
		for _, rec := range p.Add {
			if _, exists := csl.FindByID(out, rec.ID); !exists {
				out = append(out, rec)
			}
		}
	}

	if removeUnused && len(p.Remove) > 0 {
		drop := toSet(p.Remove)
		kept := out[:0:0]
		for _, rec := range out {
			if !drop[rec.ID] {
				kept = append(kept, rec)
			}
		}
		out = kept
	}

	return out
}
