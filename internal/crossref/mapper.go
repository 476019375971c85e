package crossref

import (
	"regexp"
	"strings"

	"github.com/edithatogo/citeref/internal/csl"
)

// typeMap maps CrossRef work types to CSL types.
var typeMap = map[string]csl.Type{
	"journal-article":        csl.TypeArticleJournal,
	"book-chapter":           csl.TypeChapter,
	"book":                   csl.TypeBook,
	"monograph":              csl.TypeBook,
	"edited-book":            csl.TypeBook,
	"reference-book":         csl.TypeBook,
	"book-series":            csl.TypeBook,
	"book-set":               csl.TypeBook,
	"dissertation":           csl.TypeThesis,
	"report":                 csl.TypeReport,
	"standard":               csl.TypeReport,
	"reference-entry":        csl.TypeEntry,
	"dataset":                csl.TypeDataset,
	"posted-content":         csl.TypeArticle,
	"proceedings-article":    csl.TypePaperConference,
	"conference-paper":       csl.TypePaperConference,
	"proceedings":            csl.TypeBook,
	"peer-review":            csl.TypeReview,
	"component":              csl.TypeArticle,
	"book-track":             csl.TypeChapter,
	"journal-volume":         csl.TypeArticleJournal,
	"journal":                csl.TypeArticleJournal,
	"element":                csl.TypeArticle,
	"article":                csl.TypeArticle,
	"journal-issue":          csl.TypeArticleJournal,
	"proceedings-series":     csl.TypeBook,
	"book-part":              csl.TypeChapter,
	"other":                  csl.TypeArticle,
	"output-management-plan": csl.TypeReport,
}

// MapType converts a CrossRef work type to a CSL type, defaulting to article.
func MapType(crossrefType string) csl.Type {
	if t, ok := typeMap[strings.ToLower(strings.TrimSpace(crossrefType))]; ok {
		return t
	}
	return csl.TypeArticle
}

// jatsTag matches the JATS markup CrossRef embeds in abstracts.
var jatsTag = regexp.MustCompile(`<[^>]+>`)

// ToRecord converts a CrossRef work into a record.
// The record id is the DOI; callers merging into an existing record keep their own id.
// A work without a title takes its subtitle as the title.
func ToRecord(w Work) csl.Record {
	r := csl.Record{
		ID:             w.DOI,
		Type:           MapType(w.Type),
		Title:          first(w.Title),
		Author:         mapContributors(w.Author),
		Editor:         mapContributors(w.Editor),
		ContainerTitle: first(w.ContainerTitle),
		Publisher:      strings.TrimSpace(w.Publisher),
		PublisherPlace: strings.TrimSpace(w.PublisherLocation),
		URL:            strings.TrimSpace(w.URL),
		DOI:            csl.NormalizeDOI(w.DOI),
		ISBN:           first(w.ISBN),
		Volume:         w.Volume,
		Issue:          w.Issue,
		Page:           w.Page,
		Abstract:       cleanAbstract(w.Abstract),
	}

	if r.Title == "" {
		r.Title = first(w.Subtitle)
	}
	if !w.Issued.IsZero() {
		r.Issued = w.Issued.Clone()
	}

	return r
}

// mapContributors converts CrossRef contributors, dropping empty entries.
func mapContributors(in []Contributor) []csl.Name {
	if len(in) == 0 {
		return nil
	}
	names := make([]csl.Name, 0, len(in))
	for _, c := range in {
		n := csl.Name{
			Family: strings.TrimSpace(c.Family),
			Given:  strings.TrimSpace(c.Given),
		}
		if n.Family == "" && n.Given == "" {
			n.Literal = strings.TrimSpace(c.Literal)
			if n.Literal == "" {
				n.Literal = strings.TrimSpace(c.Name)
			}
		}
		if n.Resolvable() {
			names = append(names, n)
		}
	}
	return names
}

func first(values []string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func cleanAbstract(s string) string {
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(jatsTag.ReplaceAllString(s, " ")), " ")
}
