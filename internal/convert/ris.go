package convert

import (
	"strings"

	"github.com/edithatogo/citeref/internal/csl"
)

var risTypes = map[csl.Type]string{
	"article-journal":        "JOUR",
	"article-magazine":       "MGZN",
	"article-newspaper":      "NEWS",
	"book":                   "BOOK",
	"chapter":                "CHAP",
	"dataset":                "DATA",
	"thesis":                 "THES",
	"manuscript":             "MANU",
	"paper-conference":       "CONF",
	"report":                 "RPRT",
	"webpage":                "ELEC",
	"bill":                   "BILL",
	"legal_case":             "CASE",
	"patent":                 "PAT",
	"interview":              "ICOM",
	"motion_picture":         "MPCT",
	"song":                   "SOUND",
	"speech":                 "SOUND",
	"personal_communication": "PCOMM",
}

// RISType maps a record type to its RIS TY tag, defaulting to GEN.
func RISType(t csl.Type) string {
	if ty, ok := risTypes[t]; ok {
		return ty
	}
	return "GEN"
}

var risFlattener = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// risValue flattens a value onto one tag line.
func risValue(s string) string {
	return strings.TrimSpace(risFlattener.Replace(s))
}

// ToRIS converts records to RIS. Records are separated by a blank line.
func ToRIS(records []csl.Record) string {
	var b strings.Builder

	for _, r := range records {
		tag := func(name, value string) {
			if value = risValue(value); value != "" {
				b.WriteString(name + "  - " + value + "\n")
			}
		}

		tag("TY", RISType(r.Type))
		tag("ID", r.ID)
		tag("TI", r.Title)
		tag("T2", r.ContainerTitle)

		for _, a := range r.Author {
			tag("AU", a.Inverted())
		}
		if len(r.Author) == 0 {
			for _, e := range r.Editor {
				tag("ED", e.Inverted())
			}
		}

		tag("PB", r.Publisher)
		tag("PP", r.PublisherPlace)
		tag("PY", r.Issued.JoinParts("/"))
		tag("VL", r.Volume.String())
		tag("IS", r.Issue.String())

		if page := r.Page.String(); page != "" {
			start, end, found := strings.Cut(page, "-")
			if start == "" {
				start = page
			}
			tag("SP", start)
			if found {
				tag("EP", end)
			}
		}

		tag("DO", r.DOI)
		tag("UR", r.URL)
		tag("SN", r.ISBN)
		tag("AB", r.Abstract)
		b.WriteString("ER  - \n\n")
	}

	return strings.TrimSpace(b.String())
}
