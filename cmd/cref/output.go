package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/edithatogo/citeref/internal/csl"
)

// Constants for output formatting.
const (
	DefaultSearchLimit = 50 // Default limit for search

	ListTitleMaxLen   = 60 // Used in list and search output
	ReportTitleMaxLen = 50 // Used in run and verify citation tables
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
	Count  int    `json:"count"`
}

// RecordSummary is the list/search view of a record.
type RecordSummary struct {
	ID         string   `json:"id"`
	Type       csl.Type `json:"type"`
	Title      string   `json:"title,omitempty"`
	Authors    string   `json:"authors,omitempty"`
	Year       int      `json:"year,omitempty"`
	DOI        string   `json:"doi,omitempty"`
	Confidence float64  `json:"confidence"`
}

// printRecordsHuman prints record summaries one per line.
func printRecordsHuman(recs []RecordSummary) {
	if len(recs) == 0 {
		outputHuman("No records.\n")
		return
	}
	for _, r := range recs {
		year := ""
		if r.Year > 0 {
			year = fmt.Sprintf(" (%d)", r.Year)
		}
		outputHuman("%-24s [%.2f] %s%s\n", r.ID, r.Confidence, truncateString(r.Title, ListTitleMaxLen), year)
		if r.Authors != "" {
			outputHuman("%-24s        %s\n", "", r.Authors)
		}
	}
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// formatAuthorsShort formats up to max authors by family name, adding "et al.".
func formatAuthorsShort(names []csl.Name, max int) string {
	if len(names) == 0 {
		return ""
	}
	var parts []string
	for i, n := range names {
		if i >= max {
			break
		}
		switch {
		case n.Family != "":
			parts = append(parts, n.Family)
		case n.Literal != "":
			parts = append(parts, n.Literal)
		default:
			parts = append(parts, n.Given)
		}
	}
	s := strings.Join(parts, ", ")
	if len(names) > max {
		s += " et al."
	}
	return s
}

// formatIDList formats a list of IDs as a comma-separated string.
func formatIDList(ids []string) string {
	if len(ids) == 0 {
		return "(none)"
	}
	return strings.Join(ids, ", ")
}

// sortedKeys returns the keys of m in sorted order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
