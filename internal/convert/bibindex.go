package convert

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"github.com/edithatogo/citeref/internal/csl"
)

var (
	bibEntryStart = regexp.MustCompile(`@\w+\{([^,]+),`)
	bibDOIField   = regexp.MustCompile(`(?i)^\s*doi\s*=\s*[\{"]([^\}"]+)[\}"]`)
)

// BibIndex records the citation keys and DOIs already present in a .bib file.
type BibIndex struct {
	Keys map[string]bool
	// DOIs maps lowercased normalized DOIs to citation keys.
	DOIs map[string]string
}

// NewBibIndex creates an empty index.
func NewBibIndex() *BibIndex {
	return &BibIndex{
		Keys: make(map[string]bool),
		DOIs: make(map[string]string),
	}
}

// ParseBibIndex scans BibTeX or BibLaTeX source for entry keys and doi fields.
func ParseBibIndex(r io.Reader) (*BibIndex, error) {
	idx := NewBibIndex()
	scanner := bufio.NewScanner(r)
	var currentKey string

	for scanner.Scan() {
		line := scanner.Text()

		if m := bibEntryStart.FindStringSubmatch(line); len(m) > 1 {
			currentKey = strings.TrimSpace(m[1])
			idx.Keys[currentKey] = true
		}

		if m := bibDOIField.FindStringSubmatch(line); len(m) > 1 {
			if doi := strings.ToLower(csl.NormalizeDOI(m[1])); doi != "" && currentKey != "" {
				idx.DOIs[doi] = currentKey
			}
		}
	}

	return idx, scanner.Err()
}

// Has reports whether rec is already in the index. DOI is the primary match;
// the citation key is the fallback.
func (idx *BibIndex) Has(rec csl.Record) bool {
	if doi := strings.ToLower(csl.NormalizeDOI(rec.DOI)); doi != "" {
		if _, ok := idx.DOIs[doi]; ok {
			return true
		}
	}
	return idx.Keys[rec.ID]
}

// Missing returns the records not yet in the index, in order.
func (idx *BibIndex) Missing(records []csl.Record) []csl.Record {
	var out []csl.Record
	for _, r := range records {
		if !idx.Has(r) {
			out = append(out, r)
		}
	}
	return out
}
