package convert

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/edithatogo/citeref/internal/csl"
)

var enwTypes = map[csl.Type]string{
	"book":                   "Book",
	"chapter":                "Book Section",
	"article-journal":        "Journal Article",
	"article-magazine":       "Magazine Article",
	"article-newspaper":      "Newspaper Article",
	"paper-conference":       "Conference Paper",
	"thesis":                 "Thesis",
	"manuscript":             "Manuscript",
	"patent":                 "Patent",
	"webpage":                "Web Page",
	"report":                 "Report",
	"bill":                   "Bill",
	"hearing":                "Hearing",
	"legal_case":             "Legal Case",
	"legislation":            "Legislation",
	"motion_picture":         "Film",
	"song":                   "Song",
	"speech":                 "Speech",
	"personal_communication": "Personal Communication",
}

// ENWType maps a record type to an EndNote tagged %0 value, defaulting to Generic.
func ENWType(t csl.Type) string {
	if et, ok := enwTypes[t]; ok {
		return et
	}
	return "Generic"
}

// enwName formats a name as "Family, G" using the first given initial.
func enwName(n csl.Name) string {
	switch {
	case n.Family != "" && n.Given != "":
		r, _ := utf8.DecodeRuneInString(n.Given)
		return n.Family + ", " + string(r)
	case n.Family != "":
		return n.Family
	default:
		return n.Literal
	}
}

// ToENW converts records to the EndNote tagged format.
func ToENW(records []csl.Record) string {
	var b strings.Builder

	for _, r := range records {
		tag := func(name, value string) {
			if value = risValue(value); value != "" {
				b.WriteString(name + " " + value + "\n")
			}
		}

		tag("%0", ENWType(r.Type))
		tag("%F", r.ID)
		tag("%T", r.Title)
		for _, a := range r.Author {
			tag("%A", enwName(a))
		}
		for _, e := range r.Editor {
			tag("%E", enwName(e))
		}
		tag("%B", r.ContainerTitle)
		tag("%I", r.Publisher)
		tag("%C", r.PublisherPlace)
		if year := r.Year(); year != 0 {
			tag("%D", strconv.Itoa(year))
		}
		tag("%V", r.Volume.String())
		tag("%N", r.Issue.String())
		tag("%P", r.Page.String())
		tag("%U", r.URL)
		tag("%R", r.DOI)
		tag("%@", r.ISBN)
		tag("%X", r.Abstract)

		typeNote := string(r.Type)
		if typeNote == "" {
			typeNote = "Article"
		}
		tag("%9", typeNote)
		b.WriteString("\n")
	}

	return strings.TrimSpace(b.String())
}
