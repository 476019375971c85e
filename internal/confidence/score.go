// Package confidence computes the [0,1] quality score of a citation record.
//
// The score is a pure function of the record fields, an optional
// pre-enrichment snapshot and the current year.
package confidence

import (
	"math"
	"regexp"
	"time"

	"github.com/edithatogo/citeref/internal/csl"
)

// Scoring weights.
const (
	BaseScore          = 0.5
	CompletenessWeight = 0.2
	DOIWeight          = 0.15
	ISBNWeight         = 0.10
	PMIDWeight         = 0.05
	AuthorWeight       = 0.1
	DateWeight         = 0.05
	URLWeight          = 0.05
	AddedFieldWeight   = 0.02
	AddedFieldCap      = 0.1

	// EarliestYear is the first issued year considered plausible.
	EarliestYear = 1800

	// DefaultThreshold is the score below which a record needs manual verification.
	DefaultThreshold = 0.7
)

// urlPattern is a permissive host pattern; it is not a URL validator.
var urlPattern = regexp.MustCompile(`^(https?://)?([\da-z.-]+)\.([a-z.]{2,6})([/\w .-]*)*/?$`)

// Score returns the confidence of r, measured against the current year.
// snapshot is the record before enrichment and may be nil.
func Score(r csl.Record, snapshot *csl.Record) float64 {
	return ScoreAt(r, snapshot, time.Now().Year())
}

// ScoreAt is Score with an explicit current year.
func ScoreAt(r csl.Record, snapshot *csl.Record, currentYear int) float64 {
	score := BaseScore

	// Completeness of title, author and type
	present := 0
	if r.Title != "" {
		present++
	}
	if len(r.Author) > 0 {
		present++
	}
	if r.Type != "" {
		present++
	}
	score += float64(present) / 3 * CompletenessWeight

	// Authoritative identifiers, additive
	if r.DOI != "" {
		score += DOIWeight
	}
	if r.ISBN != "" {
		score += ISBNWeight
	}
	if r.PMID != "" {
		score += PMIDWeight
	}

	// Author quality
	if len(r.Author) > 0 {
		named := 0
		for _, a := range r.Author {
			if a.Resolvable() {
				named++
			}
		}
		score += float64(named) / float64(len(r.Author)) * AuthorWeight
	}

	// Date plausibility
	if year := r.Year(); year >= EarliestYear && year <= currentYear {
		score += DateWeight
	}

	if r.URL != "" && urlPattern.MatchString(r.URL) {
		score += URLWeight
	}

	if snapshot != nil {
		score += math.Min(float64(AddedFields(r, *snapshot))*AddedFieldWeight, AddedFieldCap)
	}

	return math.Max(0, math.Min(1, score))
}

// AddedFields counts the populated fields of r that are empty in snapshot.
func AddedFields(r, snapshot csl.Record) int {
	before := make(map[string]bool)
	for _, f := range snapshot.PopulatedFields() {
		before[f] = true
	}
	added := 0
	for _, f := range r.PopulatedFields() {
		if !before[f] {
			added++
		}
	}
	return added
}

// NeedsManualVerification reports whether score falls below threshold.
// A non-positive threshold selects DefaultThreshold.
func NeedsManualVerification(score, threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return score < threshold
}

// Annotate returns r with its derived confidence fields recomputed.
func Annotate(r csl.Record, snapshot *csl.Record, threshold float64) csl.Record {
	out := r.Clone()
	score := Score(r, snapshot)
	needs := NeedsManualVerification(score, threshold)
	out.Confidence = &score
	out.NeedsVerification = &needs
	return out
}
