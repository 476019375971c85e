package convert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/edithatogo/citeref/internal/csl"
)

// yamlSpecial lists substrings that force a YAML scalar to be quoted.
var yamlSpecial = []string{"\n", `"`, "'", ": ", "#", "[", "]", "{", "}", "|", ">"}

// escapeYAML returns s as a YAML scalar, double-quoting it when it contains
// characters with YAML meaning or characters a plain scalar cannot carry.
func escapeYAML(s string) string {
	quote := s == "" || strings.TrimSpace(s) != s || strings.HasSuffix(s, ":") ||
		strings.ContainsAny(s[:min(1, len(s))], "-?*&!%@`,") || yamlNonString(s) ||
		!utf8.ValidString(s) || strings.IndexFunc(s, yamlNeedsEscape) >= 0
	for _, sp := range yamlSpecial {
		if quote {
			break
		}
		quote = strings.Contains(s, sp)
	}
	if !quote {
		return s
	}

	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == '"':
			b.WriteString(`\"`)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, r)
		case yamlNeedsEscape(r):
			fmt.Fprintf(&b, `\u%04x`, r)
		default:
			// Invalid UTF-8 ranges as utf8.RuneError and is written as U+FFFD.
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// yamlNeedsEscape reports whether r must be escaped inside a YAML scalar:
// C0 controls, DEL, NEL, the Unicode line and paragraph separators and BOM.
func yamlNeedsEscape(r rune) bool {
	switch {
	case r < 0x20, r == 0x7f:
		return true
	case r == 0x85, r == 0x2028, r == 0x2029, r == 0xfeff:
		return true
	}
	return false
}

// yamlNonString reports whether a plain scalar s would resolve to a number,
// boolean or null.
func yamlNonString(s string) bool {
	switch strings.ToLower(s) {
	case "true", "false", "yes", "no", "on", "off", "null", "~":
		return true
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// ToYAML converts records to a CSL-YAML sequence, one blank line between items.
func ToYAML(records []csl.Record) string {
	var b strings.Builder

	for _, r := range records {
		field := func(key, value string) {
			if value != "" {
				fmt.Fprintf(&b, "  %s: %s\n", key, escapeYAML(value))
			}
		}

		fmt.Fprintf(&b, "- id: %s\n", escapeYAML(r.ID))
		field("type", string(r.Type))
		field("title", r.Title)
		writeYAMLNames(&b, "author", r.Author)
		writeYAMLNames(&b, "editor", r.Editor)
		field("container-title", r.ContainerTitle)
		field("publisher", r.Publisher)
		field("publisher-place", r.PublisherPlace)

		if parts := r.Issued.Parts(); len(parts) > 0 {
			b.WriteString("  issued:\n    date-parts:\n")
			fmt.Fprintf(&b, "      - [%s]\n", r.Issued.JoinParts(", "))
		}

		field("URL", r.URL)
		field("DOI", r.DOI)
		field("ISBN", r.ISBN)
		field("PMID", r.PMID)
		field("volume", r.Volume.String())
		field("issue", r.Issue.String())
		field("page", r.Page.String())
		field("abstract", r.Abstract)
		field("note", r.Note)

		for _, key := range sortedExtraKeys(r) {
			fmt.Fprintf(&b, "  %s: %s\n", escapeYAML(key), yamlRaw(r.Extra[key]))
		}

		b.WriteString("\n")
	}

	return strings.TrimSpace(b.String())
}

func writeYAMLNames(b *strings.Builder, key string, names []csl.Name) {
	if len(names) == 0 {
		return
	}
	fmt.Fprintf(b, "  %s:\n", key)
	for _, n := range names {
		lines := make([]string, 0, 3)
		if n.Family != "" {
			lines = append(lines, "family: "+escapeYAML(n.Family))
		}
		if n.Given != "" {
			lines = append(lines, "given: "+escapeYAML(n.Given))
		}
		if n.Literal != "" {
			lines = append(lines, "literal: "+escapeYAML(n.Literal))
		}
		for i, line := range lines {
			if i == 0 {
				fmt.Fprintf(b, "    - %s\n", line)
			} else {
				fmt.Fprintf(b, "      %s\n", line)
			}
		}
	}
}

// yamlRaw renders an extra JSON value. Strings become YAML scalars; anything
// else is emitted as compact JSON, which YAML accepts as flow notation.
func yamlRaw(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return escapeYAML(s)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "null"
	}
	return buf.String()
}

func sortedExtraKeys(r csl.Record) []string {
	var keys []string
	for _, key := range r.PopulatedFields() {
		if _, ok := r.Extra[key]; ok {
			keys = append(keys, key)
		}
	}
	return keys
}
