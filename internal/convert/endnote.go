package convert

import (
	"fmt"
	"strings"

	"github.com/edithatogo/citeref/internal/csl"
)

var endnoteTypes = map[csl.Type]string{
	"book":                   "Book",
	"chapter":                "Book Section",
	"article-journal":        "Journal Article",
	"article-magazine":       "Magazine Article",
	"article-newspaper":      "Newspaper Article",
	"paper-conference":       "Conference Proceedings",
	"thesis":                 "Thesis",
	"manuscript":             "Manuscript",
	"patent":                 "Patent",
	"webpage":                "Web Page",
	"report":                 "Report",
	"bill":                   "Bill",
	"hearing":                "Hearing",
	"legal_case":             "Case",
	"legislation":            "Statute",
	"motion_picture":         "Film",
	"song":                   "Music",
	"speech":                 "Speech",
	"personal_communication": "Personal Communication",
}

var endnoteTypeNumbers = map[string]int{
	"Generic":                0,
	"Journal Article":        1,
	"Book Section":           5,
	"Book":                   6,
	"Conference Proceedings": 10,
	"Web Page":               12,
	"Bill":                   13,
	"Hearing":                14,
	"Magazine Article":       15,
	"Newspaper Article":      16,
	"Statute":                18,
	"Film":                   20,
	"Music":                  21,
	"Patent":                 22,
	"Case":                   23,
	"Speech":                 24,
	"Report":                 27,
	"Thesis":                 32,
	"Manuscript":             35,
	"Personal Communication": 37,
}

// EndNoteType maps a record type to its EndNote reference type name and number.
func EndNoteType(t csl.Type) (string, int) {
	name, ok := endnoteTypes[t]
	if !ok {
		name = "Generic"
	}
	return name, endnoteTypeNumbers[name]
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// escapeXML escapes the five predefined XML entities. Characters XML 1.0
// does not allow, and invalid UTF-8, become U+FFFD.
func escapeXML(s string) string {
	return xmlEscaper.Replace(strings.Map(xmlLegal, s))
}

func xmlLegal(r rune) rune {
	switch {
	case r == '\t', r == '\n', r == '\r':
		return r
	case r >= 0x20 && r <= 0xd7ff,
		r >= 0xe000 && r <= 0xfffd,
		r >= 0x10000 && r <= 0x10ffff:
		return r
	}
	return '\ufffd'
}

// ToEndNoteXML converts records to the EndNote XML import format.
func ToEndNoteXML(records []csl.Record) string {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	b.WriteString("<xml>\n<records>\n")

	for _, r := range records {
		elem := func(indent, name, value string) {
			if value != "" {
				fmt.Fprintf(&b, "%s<%s>%s</%s>\n", indent, name, escapeXML(value), name)
			}
		}

		b.WriteString("  <record>\n")
		name, num := EndNoteType(r.Type)
		fmt.Fprintf(&b, "    <ref-type name=\"%s\">%d</ref-type>\n", escapeXML(name), num)
		elem("    ", "rec-number", r.ID)

		if joinNames(r.Author, "") != "" || joinNames(r.Editor, "") != "" {
			b.WriteString("    <contributors>\n")
			writeXMLNames(&b, "authors", "author", r.Author)
			writeXMLNames(&b, "secondary-authors", "author", r.Editor)
			b.WriteString("    </contributors>\n")
		}

		if r.Title != "" || r.ContainerTitle != "" {
			b.WriteString("    <titles>\n")
			elem("      ", "title", r.Title)
			elem("      ", "secondary-title", r.ContainerTitle)
			b.WriteString("    </titles>\n")
		}

		elem("    ", "publisher", r.Publisher)
		elem("    ", "pub-location", r.PublisherPlace)
		if year := r.Year(); year != 0 {
			fmt.Fprintf(&b, "    <dates>\n      <year>%d</year>\n    </dates>\n", year)
		}
		elem("    ", "volume", r.Volume.String())
		elem("    ", "number", r.Issue.String())
		elem("    ", "pages", r.Page.String())
		elem("    ", "isbn", r.ISBN)
		elem("    ", "electronic-resource-num", r.DOI)
		elem("    ", "abstract", r.Abstract)

		if r.URL != "" {
			b.WriteString("    <urls>\n      <related-urls>\n")
			elem("        ", "url", r.URL)
			b.WriteString("      </related-urls>\n    </urls>\n")
		}

		b.WriteString("  </record>\n")
	}

	b.WriteString("</records>\n</xml>")
	return b.String()
}

func writeXMLNames(b *strings.Builder, group, elem string, names []csl.Name) {
	if joinNames(names, "") == "" {
		return
	}
	fmt.Fprintf(b, "      <%s>\n", group)
	for _, n := range names {
		if s := n.Inverted(); s != "" {
			fmt.Fprintf(b, "        <%s>%s</%s>\n", elem, escapeXML(s), elem)
		}
	}
	fmt.Fprintf(b, "      </%s>\n", group)
}
