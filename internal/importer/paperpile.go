package importer

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/edithatogo/citeref/internal/csl"
)

// PaperpileEntry represents a single entry from a Paperpile JSON export.
type PaperpileEntry struct {
	ID        string `json:"_id"`
	Citekey   string `json:"citekey"`
	DOI       string `json:"doi"`
	Title     string `json:"title"`
	Abstract  string `json:"abstract"`
	Journal   string `json:"journal"`
	URL       string `json:"url"`
	Published struct {
		Year  csl.FlexibleString `json:"year"`
		Month csl.FlexibleString `json:"month"`
		Day   csl.FlexibleString `json:"day"`
	} `json:"published"`
	Author []struct {
		First string `json:"first"`
		Last  string `json:"last"`
	} `json:"author"`
}

// ParsePaperpile parses a Paperpile JSON export into journal-article records.
func ParsePaperpile(data []byte) ([]csl.Record, []error) {
	var entries []PaperpileEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, []error{fmt.Errorf("parsing Paperpile JSON: %w", err)}
	}

	var records []csl.Record
	var errs []error

	for i, entry := range entries {
		rec, err := paperpileEntryToRecord(entry)
		if err != nil {
			errs = append(errs, fmt.Errorf("entry %d (%s): %w", i+1, entry.Citekey, err))
			continue
		}
		records = append(records, rec)
	}

	return records, errs
}

func paperpileEntryToRecord(entry PaperpileEntry) (csl.Record, error) {
	if entry.Title == "" {
		return csl.Record{}, fmt.Errorf("missing required field 'title'")
	}

	// Use citekey as ID, falling back to Paperpile ID if no citekey
	id := entry.Citekey
	if id == "" {
		id = entry.ID
	}
	if id == "" {
		return csl.Record{}, fmt.Errorf("missing citekey and '_id'")
	}

	rec := csl.Record{
		ID:             id,
		Type:           csl.TypeArticleJournal,
		Title:          entry.Title,
		ContainerTitle: entry.Journal,
		Abstract:       entry.Abstract,
		DOI:            csl.NormalizeDOI(entry.DOI),
		URL:            entry.URL,
	}

	for _, a := range entry.Author {
		n := csl.Name{Family: a.Last, Given: a.First}
		if n.Resolvable() {
			rec.Author = append(rec.Author, n)
		}
	}

	if y := entry.Published.Year.String(); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			return csl.Record{}, fmt.Errorf("invalid year: %s", y)
		}
		parts := []int{year}
		if month, err := strconv.Atoi(entry.Published.Month.String()); err == nil && month >= 1 && month <= 12 {
			parts = append(parts, month)
			if day, err := strconv.Atoi(entry.Published.Day.String()); err == nil && day >= 1 && day <= 31 {
				parts = append(parts, day)
			}
		}
		rec.Issued = csl.NewDate(parts...)
	}

	return rec, nil
}
