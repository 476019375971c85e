package confidence

import (
	"math"
	"testing"

	"github.com/edithatogo/citeref/internal/csl"
)

const testYear = 2026

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScoreAt_Components(t *testing.T) {
	full := []csl.Name{{Family: "Smith", Given: "J"}}

	tests := []struct {
		name   string
		record csl.Record
		want   float64
	}{
		{
			name:   "type only",
			record: csl.Record{ID: "a", Type: csl.TypeBook},
			want:   0.5 + 0.2/3,
		},
		{
			name:   "title author type",
			record: csl.Record{ID: "a", Type: csl.TypeBook, Title: "T", Author: full},
			want:   0.5 + 0.2 + 0.1,
		},
		{
			name:   "doi adds 0.15",
			record: csl.Record{ID: "a", Type: csl.TypeBook, DOI: "10.1/x"},
			want:   0.5 + 0.2/3 + 0.15,
		},
		{
			name:   "all identifiers additive",
			record: csl.Record{ID: "a", Type: csl.TypeBook, DOI: "10.1/x", ISBN: "978", PMID: "1"},
			want:   0.5 + 0.2/3 + 0.15 + 0.10 + 0.05,
		},
		{
			name:   "half the authors resolvable",
			record: csl.Record{ID: "a", Type: csl.TypeBook, Author: []csl.Name{{Family: "A"}, {}}},
			want:   0.5 + 0.2*2/3 + 0.05,
		},
		{
			name:   "plausible year",
			record: csl.Record{ID: "a", Type: csl.TypeBook, Issued: csl.NewDate(1999)},
			want:   0.5 + 0.2/3 + 0.05,
		},
		{
			name:   "future year ignored",
			record: csl.Record{ID: "a", Type: csl.TypeBook, Issued: csl.NewDate(testYear + 1)},
			want:   0.5 + 0.2/3,
		},
		{
			name:   "ancient year ignored",
			record: csl.Record{ID: "a", Type: csl.TypeBook, Issued: csl.NewDate(1799)},
			want:   0.5 + 0.2/3,
		},
		{
			name:   "url matches host pattern",
			record: csl.Record{ID: "a", Type: csl.TypeBook, URL: "https://example.org/path/page"},
			want:   0.5 + 0.2/3 + 0.05,
		},
		{
			name:   "url does not match",
			record: csl.Record{ID: "a", Type: csl.TypeBook, URL: "not a url"},
			want:   0.5 + 0.2/3,
		},
		{
			name: "clamped at one",
			record: csl.Record{
				ID: "a", Type: csl.TypeArticleJournal, Title: "T", Author: full,
				DOI: "10.1/x", ISBN: "978", PMID: "1", Issued: csl.NewDate(2000),
				URL: "https://example.org",
			},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreAt(tt.record, nil, testYear)
			if !approx(got, tt.want) {
				t.Errorf("ScoreAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScoreAt_EmptyRecordInRange(t *testing.T) {
	got := ScoreAt(csl.Record{}, nil, testYear)
	if !approx(got, BaseScore) {
		t.Errorf("ScoreAt(empty) = %v, want %v", got, BaseScore)
	}
}

func TestScoreAt_DOIFloor(t *testing.T) {
	got := ScoreAt(csl.Record{ID: "x", DOI: "10.1/x"}, nil, testYear)
	if got < 0.65 {
		t.Errorf("ScoreAt(doi only) = %v, want >= 0.65", got)
	}
}

func TestScoreAt_AddedFieldsCapped(t *testing.T) {
	snapshot := csl.Record{ID: "a", Type: csl.TypeBook}
	enriched := csl.Record{ID: "a", Type: csl.TypeBook, Title: "T"}

	withSnap := ScoreAt(enriched, &snapshot, testYear)
	without := ScoreAt(enriched, nil, testYear)
	if !approx(withSnap-without, 0.02) {
		t.Errorf("one added field bonus = %v, want 0.02", withSnap-without)
	}

	many := csl.Record{
		ID: "a", Type: csl.TypeBook, Title: "T", Publisher: "P", PublisherPlace: "X",
		ContainerTitle: "C", Volume: "1", Issue: "2", Page: "3-4",
	}
	bonus := ScoreAt(many, &snapshot, testYear) - ScoreAt(many, nil, testYear)
	if !approx(bonus, AddedFieldCap) {
		t.Errorf("added field bonus = %v, want cap %v", bonus, AddedFieldCap)
	}
}

func TestScore_AlwaysInUnitInterval(t *testing.T) {
	records := []csl.Record{
		{},
		{ID: "a"},
		{ID: "a", Type: "unknown", Author: []csl.Name{{}, {}, {}}},
		{ID: "a", Type: csl.TypeBook, Title: "T", DOI: "d", ISBN: "i", PMID: "p", URL: "http://a.bc", Issued: csl.NewDate(2000), Author: []csl.Name{{Literal: "X"}}},
	}
	for _, r := range records {
		s := Score(r, &csl.Record{})
		if s < 0 || s > 1 {
			t.Errorf("Score(%+v) = %v, outside [0,1]", r, s)
		}
	}
}

func TestNeedsManualVerification(t *testing.T) {
	tests := []struct {
		score     float64
		threshold float64
		want      bool
	}{
		{0.69, 0, true},
		{0.7, 0, false},
		{0.8, 0.9, true},
		{0.95, 0.9, false},
	}
	for _, tt := range tests {
		if got := NeedsManualVerification(tt.score, tt.threshold); got != tt.want {
			t.Errorf("NeedsManualVerification(%v, %v) = %v, want %v", tt.score, tt.threshold, got, tt.want)
		}
	}
}

func TestIssues(t *testing.T) {
	got := Issues(csl.Record{ID: "a", Type: csl.TypeBook})
	if len(got) != 5 {
		t.Errorf("Issues(bare) = %v, want 5 issues", got)
	}

	got = Issues(csl.Record{
		ID: "a", Type: csl.TypeBook, Title: "T", Author: []csl.Name{{Family: "A"}},
		Issued: csl.NewDate(2000), DOI: "10.1/x", URL: "https://x.org",
	})
	if len(got) != 0 {
		t.Errorf("Issues(complete) = %v, want none", got)
	}
}

func TestFilter(t *testing.T) {
	records := []csl.Record{
		{ID: "low", Type: csl.TypeBook},
		{ID: "mid", Type: csl.TypeBook, Title: "T", DOI: "10.1/x"},
		{
			ID:     "high",
			Type:   csl.TypeArticleJournal,
			Title:  "T",
			Author: []csl.Name{{Family: "Smith", Given: "J"}},
			DOI:    "10.1/y",
			ISBN:   "978",
			PMID:   "1",
			Issued: csl.NewDate(2020),
			URL:    "https://doi.org/10.1/y",
		},
	}
	low := Score(records[0], nil)
	mid := Score(records[1], nil)
	high := Score(records[2], nil)
	if !(low < mid && mid < high) {
		t.Fatalf("fixture scores not ordered: %v %v %v", low, mid, high)
	}

	tests := []struct {
		name     string
		min, max float64
		want     []string
	}{
		{"full range", 0, 1, []string{"low", "mid", "high"}},
		{"both bounds inclusive", mid, mid, []string{"mid"}},
		{"lower bound inclusive", low, mid, []string{"low", "mid"}},
		{"upper bound inclusive", mid, high, []string{"mid", "high"}},
		{"above mid", mid + 1e-9, 1, []string{"high"}},
		{"empty range", 0.9, 0.1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := csl.IDs(Filter(records, tt.min, tt.max))
			if len(got) != len(tt.want) {
				t.Fatalf("Filter(%v, %v) = %v, want %v", tt.min, tt.max, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Filter(%v, %v) = %v, want %v", tt.min, tt.max, got, tt.want)
					break
				}
			}
		})
	}
}
