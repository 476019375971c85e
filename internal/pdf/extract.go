// Package pdf pulls citation identifiers out of PDF files.
package pdf

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/edithatogo/citeref/internal/csl"
)

// MaxScanPages is how many leading pages are searched for a DOI.
const MaxScanPages = 3

// DOI pattern: 10.XXXX/... where XXXX is 4 to 9 digits
var doiPattern = regexp.MustCompile(`(?i)10\.\d{4,9}/[^\s<>"{}|\\^~\[\]` + "`" + `]+`)

// Metadata is what could be recovered from a PDF's text layer.
type Metadata struct {
	Path  string `json:"path"`
	DOI   string `json:"doi,omitempty"`
	Title string `json:"title,omitempty"`
	Pages int    `json:"pages"`
}

// Extract reads the first pages of the PDF at path and returns the first
// DOI found plus a best-effort title. A PDF without a DOI is not an error.
func Extract(path string) (Metadata, error) {
	meta := Metadata{Path: path}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return meta, fmt.Errorf("PDF not found: %s", path)
		}
		return meta, fmt.Errorf("checking PDF: %w", err)
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return meta, fmt.Errorf("opening PDF %s: %w", path, err)
	}
	defer f.Close()

	meta.Pages = r.NumPage()
	maxPages := MaxScanPages
	if meta.Pages < maxPages {
		maxPages = meta.Pages
	}

	for i := 1; i <= maxPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		if i == 1 {
			meta.Title = GuessTitle(text)
		}
		if meta.DOI == "" {
			meta.DOI = FindDOI(text)
		}
		if meta.DOI != "" {
			break
		}
	}

	return meta, nil
}

// ExtractDOI returns the first DOI in the PDF at path, or "" if none.
func ExtractDOI(path string) (string, error) {
	meta, err := Extract(path)
	return meta.DOI, err
}

// Record builds a stub record for the PDF. The id is left to the caller.
func (m Metadata) Record(id string) csl.Record {
	return csl.Record{
		ID:    id,
		Type:  csl.TypeArticleJournal,
		Title: m.Title,
		DOI:   m.DOI,
	}
}

// FindDOI returns the first plausible DOI in text, normalized.
func FindDOI(text string) string {
	for _, match := range doiPattern.FindAllString(text, -1) {
		// Remove trailing punctuation
		match = strings.TrimRight(match, ".,;:)")
		if isValidDOI(match) {
			return csl.NormalizeDOI(match)
		}
	}
	return ""
}

// isValidDOI performs basic validation on a DOI.
func isValidDOI(doi string) bool {
	if len(doi) < 10 || !strings.HasPrefix(doi, "10.") {
		return false
	}
	slashIdx := strings.Index(doi, "/")
	return slashIdx != -1 && slashIdx < len(doi)-1
}

// GuessTitle picks the first substantial line that does not look like a
// running header.
func GuessTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) > 20 && !isHeaderLine(line) && FindDOI(line) == "" {
			return line
		}
	}
	return ""
}

// isHeaderLine checks if a line is likely a header/footer.
func isHeaderLine(line string) bool {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "journal"):
		return true
	case strings.Contains(lower, "volume") && strings.Contains(lower, "issue"):
		return true
	case strings.Contains(lower, "copyright"):
		return true
	case strings.Contains(lower, "article") && strings.Contains(lower, "published"):
		return true
	}
	return false
}
