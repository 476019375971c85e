package schema

import (
	"fmt"

	"github.com/edithatogo/citeref/internal/csl"
)

// ValidateRequiredFields checks the type-specific minimum fields each record
// needs for downstream use.
func ValidateRequiredFields(records []csl.Record) []string {
	var errs []string
	for i, r := range records {
		switch r.Type {
		case csl.TypeBook:
			if len(r.Author) == 0 && len(r.Editor) == 0 && r.Title == "" {
				errs = append(errs, fmt.Sprintf("Book citation %q at index %d is missing essential fields (author, editor, or title)", r.ID, i))
			}
		case csl.TypeArticleJournal:
			if len(r.Author) == 0 && r.Title == "" {
				errs = append(errs, fmt.Sprintf("Journal article citation %q at index %d is missing essential fields (author or title)", r.ID, i))
			}
		case csl.TypeWebpage:
			if r.Title == "" && r.URL == "" {
				errs = append(errs, fmt.Sprintf("Webpage citation %q at index %d is missing essential fields (title or URL)", r.ID, i))
			}
		default:
			if r.Title == "" {
				errs = append(errs, fmt.Sprintf("Citation %q at index %d of type '%s' is missing title", r.ID, i, r.Type))
			}
		}
	}
	return errs
}
