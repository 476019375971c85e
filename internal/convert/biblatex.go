package convert

import (
	"fmt"
	"strings"

	"github.com/edithatogo/citeref/internal/csl"
)

var biblatexTypes = map[csl.Type]string{
	"article":                "article",
	"article-journal":        "article",
	"article-magazine":       "article",
	"article-newspaper":      "article",
	"bill":                   "legislation",
	"book":                   "book",
	"chapter":                "inbook",
	"dataset":                "dataset",
	"entry":                  "inreference",
	"entry-dictionary":       "inreference",
	"entry-encyclopedia":     "inreference",
	"graphic":                "image",
	"hearing":                "legislation",
	"legal_case":             "jurisdiction",
	"legislation":            "legislation",
	"manuscript":             "unpublished",
	"motion_picture":         "movie",
	"musical_score":          "collection",
	"pamphlet":               "booklet",
	"paper-conference":       "inproceedings",
	"patent":                 "patent",
	"post":                   "online",
	"post-weblog":            "online",
	"regulation":             "legislation",
	"report":                 "report",
	"review":                 "article",
	"review-book":            "article",
	"song":                   "audio",
	"speech":                 "unpublished",
	"thesis":                 "thesis",
	"treaty":                 "legislation",
	"webpage":                "online",
}

// BibLaTeXType maps a record type to a BibLaTeX entry type, defaulting to misc.
func BibLaTeXType(t csl.Type) string {
	if bt, ok := biblatexTypes[t]; ok {
		return bt
	}
	return "misc"
}

// latexEscaper escapes LaTeX special characters. Backslash goes first so the
// escapes it introduces are not escaped again.
var latexEscaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	"&", `\&`,
	"%", `\%`,
	"$", `\$`,
	"#", `\#`,
	"_", `\_`,
	"{", `\{`,
	"}", `\}`,
	"~", `\textasciitilde{}`,
	"^", `\textasciicircum{}`,
)

// escapeBibLaTeX escapes a free-text field value.
func escapeBibLaTeX(s string) string {
	return latexEscaper.Replace(s)
}

// verbatimValue strips braces from url and doi values, which BibLaTeX reads verbatim.
func verbatimValue(s string) string {
	return strings.NewReplacer("{", "", "}", "").Replace(s)
}

// ToBibLaTeX converts records to BibLaTeX entries separated by a blank line.
func ToBibLaTeX(records []csl.Record) string {
	var entries []string
	for _, r := range records {
		entries = append(entries, bibLaTeXEntry(r))
	}
	return strings.Join(entries, "\n")
}

func bibLaTeXEntry(r csl.Record) string {
	entryType := BibLaTeXType(r.Type)
	var b strings.Builder

	b.WriteString(fmt.Sprintf("@%s{%s,\n", entryType, r.ID))

	field := func(name, value string) {
		if value != "" {
			b.WriteString(fmt.Sprintf("  %s = {%s},\n", name, value))
		}
	}

	field("title", escapeBibLaTeX(r.Title))
	field("author", escapeBibLaTeX(joinNames(r.Author, " and ")))
	if len(r.Author) == 0 {
		field("editor", escapeBibLaTeX(joinNames(r.Editor, " and ")))
	}

	// Container
	switch {
	case r.Type == csl.TypeChapter || r.Type == csl.TypePaperConference:
		field("booktitle", escapeBibLaTeX(r.ContainerTitle))
	case r.Type.IsArticle():
		field("journal", escapeBibLaTeX(r.ContainerTitle))
	}

	field("publisher", escapeBibLaTeX(r.Publisher))
	field("address", escapeBibLaTeX(r.PublisherPlace))
	if year := r.Year(); year != 0 {
		field("year", fmt.Sprintf("%d", year))
	}
	if parts := r.Issued.Parts(); len(parts) > 1 {
		field("month", fmt.Sprintf("%d", parts[1]))
	}
	field("volume", escapeBibLaTeX(r.Volume.String()))
	field("number", escapeBibLaTeX(r.Issue.String()))
	field("pages", escapeBibLaTeX(r.Page.String()))
	field("doi", verbatimValue(r.DOI))
	field("url", verbatimValue(r.URL))
	field("isbn", escapeBibLaTeX(r.ISBN))
	field("abstract", escapeBibLaTeX(r.Abstract))

	b.WriteString("}\n")
	return b.String()
}
