package convert

import (
	"errors"
	"strings"
	"testing"

	"github.com/antchfx/xmlquery"
	"gopkg.in/yaml.v3"

	"github.com/edithatogo/citeref/internal/csl"
)

func sampleRecords() []csl.Record {
	return []csl.Record{
		{
			ID:             "smith2020",
			Type:           csl.TypeArticleJournal,
			Title:          "Deep learning: a review & outlook",
			Author:         []csl.Name{{Family: "Smith", Given: "John"}, {Literal: "WHO"}},
			ContainerTitle: "Journal of Tests",
			Publisher:      "Example Press",
			Issued:         csl.NewDate(2020, 3, 1),
			Volume:         "12",
			Issue:          "4",
			Page:           "100-120",
			URL:            "https://example.org/paper_1",
			DOI:            "10.1234/abc.5678",
		},
		{
			ID:     "doe-book",
			Type:   csl.TypeBook,
			Title:  "A Book",
			Editor: []csl.Name{{Family: "Doe", Given: "Jane"}},
			ISBN:   "978-3-16-148410-0",
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"ris", FormatRIS},
		{"RIS", FormatRIS},
		{"endnote xml", FormatEndNoteXML},
		{"endnote-xml", FormatEndNoteXML},
		{"yml", FormatYAML},
		{"bibtex", FormatBibLaTeX},
		{"endnote-tagged", FormatENW},
		{" enw ", FormatENW},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if err != nil {
			t.Errorf("ParseFormat(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConvert_Unsupported(t *testing.T) {
	_, err := Convert(sampleRecords(), "docx")

	var ufe *UnsupportedFormatError
	if !errors.As(err, &ufe) {
		t.Fatalf("Convert() error = %v, want *UnsupportedFormatError", err)
	}
	if ufe.Format != "docx" {
		t.Errorf("Format = %q, want docx", ufe.Format)
	}
	if !strings.Contains(err.Error(), "ris") || !strings.Contains(err.Error(), "yaml") {
		t.Errorf("Error() = %q, want the supported list", err.Error())
	}
}

func TestConvert_PreservesIdentifiers(t *testing.T) {
	for _, format := range []string{"ris", "yaml", "endnote-xml", "biblatex", "enw"} {
		t.Run(format, func(t *testing.T) {
			got, err := Convert(sampleRecords(), format)
			if err != nil {
				t.Fatalf("Convert() error = %v", err)
			}
			for _, want := range []string{"smith2020", "doe-book", "10.1234/abc.5678", "978-3-16-148410-0", "https://example.org/paper_1"} {
				if !strings.Contains(got, want) {
					t.Errorf("output missing %q:\n%s", want, got)
				}
			}
		})
	}
}

func TestToRIS(t *testing.T) {
	got := ToRIS(sampleRecords())

	for _, want := range []string{
		"TY  - JOUR\n",
		"TI  - Deep learning: a review & outlook\n",
		"T2  - Journal of Tests\n",
		"AU  - Smith, John\n",
		"AU  - WHO\n",
		"PY  - 2020/3/1\n",
		"SP  - 100\n",
		"EP  - 120\n",
		"DO  - 10.1234/abc.5678\n",
		"TY  - BOOK\n",
		"ED  - Doe, Jane\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("ToRIS() missing %q:\n%s", want, got)
		}
	}

	if n := strings.Count(got, "ER  -"); n != 2 {
		t.Errorf("ToRIS() has %d ER tags, want 2", n)
	}
	if !strings.Contains(got, "ER  - \n\nTY  - BOOK") {
		t.Errorf("ToRIS() records should be separated by a blank line:\n%s", got)
	}
}

func TestRISValue_FlattensNewlines(t *testing.T) {
	if got := risValue("line one\r\nline two\n"); got != "line one line two" {
		t.Errorf("risValue() = %q", got)
	}
}

func TestRISType_Fallback(t *testing.T) {
	if got := RISType("map"); got != "GEN" {
		t.Errorf("RISType(map) = %q, want GEN", got)
	}
	if got := RISType(csl.TypeWebpage); got != "ELEC" {
		t.Errorf("RISType(webpage) = %q, want ELEC", got)
	}
}

func TestToYAML_ReadsBack(t *testing.T) {
	records := sampleRecords()
	records[0].Title = `He said "hi" #1: [draft]`
	records[1].Volume = "2"

	out := ToYAML(records)

	var items []struct {
		ID     string `yaml:"id"`
		Type   string `yaml:"type"`
		Title  string `yaml:"title"`
		DOI    string `yaml:"DOI"`
		ISBN   string `yaml:"ISBN"`
		URL    string `yaml:"URL"`
		Volume string `yaml:"volume"`
		Author []struct {
			Family  string `yaml:"family"`
			Given   string `yaml:"given"`
			Literal string `yaml:"literal"`
		} `yaml:"author"`
		Issued struct {
			DateParts [][]int `yaml:"date-parts"`
		} `yaml:"issued"`
	}
	if err := yaml.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v\n%s", err, out)
	}

	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].Title != records[0].Title {
		t.Errorf("title = %q, want %q", items[0].Title, records[0].Title)
	}
	if items[0].Type != "article-journal" || items[0].DOI != "10.1234/abc.5678" || items[0].URL != records[0].URL {
		t.Errorf("item = %+v", items[0])
	}
	if len(items[0].Author) != 2 || items[0].Author[1].Literal != "WHO" {
		t.Errorf("authors = %+v", items[0].Author)
	}
	if len(items[0].Issued.DateParts) != 1 || items[0].Issued.DateParts[0][0] != 2020 {
		t.Errorf("issued = %+v", items[0].Issued)
	}
	if items[1].ISBN != "978-3-16-148410-0" || items[1].Volume != "2" {
		t.Errorf("item = %+v", items[1])
	}
}

func TestEscapeYAML(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"a: b", `"a: b"`},
		{`say "x"`, `"say \"x\""`},
		{"two\nlines", `"two\nlines"`},
		{"2020", `"2020"`},
		{"true", `"true"`},
		{"- dash", `"- dash"`},
		{"", `""`},
		{"a\rb", `"a\rb"`},
		{"tab\there", `"tab\there"`},
		{"bad\x1bchar", `"bad\x1bchar"`},
		{"form\x0cfeed", `"form\x0cfeed"`},
		{"del\x7f", `"del\x7f"`},
		{"a\u2028b", `"a\u2028b"`},
		{"para\u2029", `"para\u2029"`},
		{"nel\u0085", `"nel\u0085"`},
		{"café", "café"},
		{"bad\xffbyte", "\"bad\uFFFDbyte\""},
	}

	for _, tt := range tests {
		if got := escapeYAML(tt.in); got != tt.want {
			t.Errorf("escapeYAML(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestToEndNoteXML_Parses(t *testing.T) {
	out := ToEndNoteXML(sampleRecords())

	doc, err := xmlquery.Parse(strings.NewReader(out))
	if err != nil {
		t.Fatalf("xmlquery.Parse() error = %v\n%s", err, out)
	}

	records := xmlquery.Find(doc, "//records/record")
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	refType := xmlquery.FindOne(records[0], "ref-type")
	if refType.SelectAttr("name") != "Journal Article" || refType.InnerText() != "1" {
		t.Errorf("ref-type = %q/%q", refType.SelectAttr("name"), refType.InnerText())
	}
	if got := xmlquery.FindOne(records[0], "titles/title").InnerText(); got != "Deep learning: a review & outlook" {
		t.Errorf("title = %q", got)
	}
	if got := len(xmlquery.Find(records[0], "contributors/authors/author")); got != 2 {
		t.Errorf("got %d authors, want 2", got)
	}
	if got := xmlquery.FindOne(records[0], "electronic-resource-num").InnerText(); got != "10.1234/abc.5678" {
		t.Errorf("DOI = %q", got)
	}
	if got := xmlquery.FindOne(records[0], "urls/related-urls/url").InnerText(); got != "https://example.org/paper_1" {
		t.Errorf("url = %q", got)
	}
	if got := xmlquery.FindOne(records[1], "ref-type").SelectAttr("name"); got != "Book" {
		t.Errorf("book ref-type = %q", got)
	}
	if got := xmlquery.FindOne(records[1], "contributors/secondary-authors/author").InnerText(); got != "Doe, Jane" {
		t.Errorf("editor = %q", got)
	}
}

func TestEndNoteType_Fallback(t *testing.T) {
	name, num := EndNoteType("dataset")
	if name != "Generic" || num != 0 {
		t.Errorf("EndNoteType(dataset) = %q, %d", name, num)
	}
	name, num = EndNoteType(csl.TypeThesis)
	if name != "Thesis" || num != 32 {
		t.Errorf("EndNoteType(thesis) = %q, %d", name, num)
	}
}

func TestEscapeXML(t *testing.T) {
	got := escapeXML(`<a href="x">Tom & Jerry's</a>`)
	want := "&lt;a href=&quot;x&quot;&gt;Tom &amp; Jerry&apos;s&lt;/a&gt;"
	if got != want {
		t.Errorf("escapeXML() = %q, want %q", got, want)
	}

	tests := []struct {
		in   string
		want string
	}{
		{"form\x0cfeed", "form\ufffdfeed"},
		{"esc\x1b[0m", "esc\ufffd[0m"},
		{"nul\x00", "nul\ufffd"},
		{"keep\ttab\nline\r", "keep\ttab\nline\r"},
		{"bad\xffbyte", "bad\ufffdbyte"},
		{"\ufffe", "\ufffd"},
		{"emoji \U0001F600", "emoji \U0001F600"},
	}
	for _, tt := range tests {
		if got := escapeXML(tt.in); got != tt.want {
			t.Errorf("escapeXML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestToEndNoteXML_ControlCharacters(t *testing.T) {
	records := []csl.Record{{ID: "pdf1", Type: csl.TypeArticle, Title: "Scanned\x0ctitle\x1b from PDF"}}
	out := ToEndNoteXML(records)

	doc, err := xmlquery.Parse(strings.NewReader(out))
	if err != nil {
		t.Fatalf("xmlquery.Parse() error = %v\n%s", err, out)
	}
	if got := xmlquery.FindOne(doc, "//records/record/titles/title").InnerText(); got != "Scanned\ufffdtitle\ufffd from PDF" {
		t.Errorf("title = %q", got)
	}
}

func TestToBibLaTeX(t *testing.T) {
	got := ToBibLaTeX(sampleRecords())

	for _, want := range []string{
		"@article{smith2020,\n",
		`title = {Deep learning: a review \& outlook}`,
		"author = {Smith, John and WHO}",
		"journal = {Journal of Tests}",
		"year = {2020}",
		"month = {3}",
		"pages = {100-120}",
		"url = {https://example.org/paper_1}",
		"@book{doe-book,\n",
		"editor = {Doe, Jane}",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("ToBibLaTeX() missing %q:\n%s", want, got)
		}
	}
}

func TestBibLaTeXType(t *testing.T) {
	tests := []struct {
		in   csl.Type
		want string
	}{
		{csl.TypeChapter, "inbook"},
		{csl.TypePaperConference, "inproceedings"},
		{csl.TypeWebpage, "online"},
		{"legal_case", "jurisdiction"},
		{"map", "misc"},
	}
	for _, tt := range tests {
		if got := BibLaTeXType(tt.in); got != tt.want {
			t.Errorf("BibLaTeXType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEscapeBibLaTeX(t *testing.T) {
	got := escapeBibLaTeX(`50% of $x_1 & {y}`)
	want := `50\% of \$x\_1 \& \{y\}`
	if got != want {
		t.Errorf("escapeBibLaTeX() = %q, want %q", got, want)
	}
}

func TestToENW(t *testing.T) {
	got := ToENW(sampleRecords())

	for _, want := range []string{
		"%0 Journal Article\n",
		"%A Smith, J\n",
		"%A WHO\n",
		"%D 2020\n",
		"%R 10.1234/abc.5678\n",
		"%9 article-journal\n",
		"%0 Book\n",
		"%E Doe, J\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("ToENW() missing %q:\n%s", want, got)
		}
	}
}

func TestBatch(t *testing.T) {
	results := Batch(sampleRecords(), []string{"ris", "YAML", "docx"})

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if !results["ris"].OK() || !strings.Contains(results["ris"].Content, "TY  - JOUR") {
		t.Errorf("ris result = %+v", results["ris"])
	}
	if !results["yaml"].OK() {
		t.Errorf("yaml result = %+v", results["yaml"])
	}
	if results["docx"].OK() {
		t.Errorf("docx result should fail")
	}
}

func TestFormatExtension(t *testing.T) {
	if got := FormatBibLaTeX.Extension(); got != ".bib" {
		t.Errorf("Extension() = %q, want .bib", got)
	}
}
