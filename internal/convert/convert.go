// Package convert serializes citation records into interchange formats.
//
// Each format is plain template-based string construction with its escaping
// rules kept in one function per format. Nothing here performs I/O.
package convert

import (
	"fmt"
	"sort"
	"strings"

	"github.com/edithatogo/citeref/internal/csl"
)

// Format is a canonical output format name.
type Format string

const (
	FormatRIS        Format = "ris"
	FormatEndNoteXML Format = "endnote-xml"
	FormatYAML       Format = "yaml"
	FormatBibLaTeX   Format = "biblatex"
	FormatENW        Format = "enw"
)

// aliases maps accepted format names to their canonical format.
var aliases = map[string]Format{
	"ris":            FormatRIS,
	"endnote-xml":    FormatEndNoteXML,
	"endnote xml":    FormatEndNoteXML,
	"yaml":           FormatYAML,
	"yml":            FormatYAML,
	"biblatex":       FormatBibLaTeX,
	"bibtex":         FormatBibLaTeX,
	"enw":            FormatENW,
	"endnote-tagged": FormatENW,
}

var encoders = map[Format]func([]csl.Record) string{
	FormatRIS:        ToRIS,
	FormatEndNoteXML: ToEndNoteXML,
	FormatYAML:       ToYAML,
	FormatBibLaTeX:   ToBibLaTeX,
	FormatENW:        ToENW,
}

var extensions = map[Format]string{
	FormatRIS:        ".ris",
	FormatEndNoteXML: ".xml",
	FormatYAML:       ".yaml",
	FormatBibLaTeX:   ".bib",
	FormatENW:        ".enw",
}

// UnsupportedFormatError is returned for an unknown format name.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format: %s. Supported formats: %s", e.Format, strings.Join(SupportedFormats(), ", "))
}

// SupportedFormats returns every accepted format name, aliases included, sorted.
func SupportedFormats() []string {
	names := make([]string, 0, len(aliases))
	for name := range aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseFormat resolves a format name or alias, case-insensitively.
func ParseFormat(name string) (Format, error) {
	f, ok := aliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", &UnsupportedFormatError{Format: name}
	}
	return f, nil
}

// Extension returns the conventional file extension for f, including the dot.
func (f Format) Extension() string {
	return extensions[f]
}

// Convert serializes records into the named format.
func Convert(records []csl.Record, format string) (string, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return "", err
	}
	return encoders[f](records), nil
}

// Result is one format's output in a batch conversion.
type Result struct {
	Format  string `json:"format"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK reports whether the conversion succeeded.
func (r Result) OK() bool {
	return r.Error == ""
}

// Batch converts records into each requested format. Results are keyed by
// the format name as given; an unsupported name yields an error result
// without affecting the others.
func Batch(records []csl.Record, formats []string) map[string]Result {
	out := make(map[string]Result, len(formats))
	for _, name := range formats {
		key := strings.ToLower(strings.TrimSpace(name))
		content, err := Convert(records, name)
		if err != nil {
			out[key] = Result{Format: key, Error: err.Error()}
			continue
		}
		out[key] = Result{Format: key, Content: content}
	}
	return out
}

// joinNames formats names with Name.Inverted, dropping empty ones.
func joinNames(names []csl.Name, sep string) string {
	var parts []string
	for _, n := range names {
		if s := n.Inverted(); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, sep)
}
