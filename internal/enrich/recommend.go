package enrich

import (
	"sort"
	"time"

	"github.com/edithatogo/citeref/internal/confidence"
	"github.com/edithatogo/citeref/internal/csl"
)

// Recommendation flags a record that needs manual attention.
type Recommendation struct {
	ID         string   `json:"id"`
	Title      string   `json:"title,omitempty"`
	Confidence float64  `json:"confidence"`
	Issues     []string `json:"issues"`
	Enrichable bool     `json:"enrichable"`
}

// Recommendations lists records scoring below threshold, lowest first.
// A non-positive threshold selects confidence.DefaultThreshold.
func Recommendations(records []csl.Record, threshold float64) []Recommendation {
	year := time.Now().Year()
	var out []Recommendation
	for _, r := range records {
		score := confidence.ScoreAt(r, nil, year)
		if !confidence.NeedsManualVerification(score, threshold) {
			continue
		}
		out = append(out, Recommendation{
			ID:         r.ID,
			Title:      r.Title,
			Confidence: score,
			Issues:     confidence.Issues(r),
			Enrichable: csl.NormalizeDOI(r.DOI) != "",
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence < out[j].Confidence
		}
		return out[i].ID < out[j].ID
	})
	return out
}
