// Package manuscript extracts citation keys from manuscript text.
package manuscript

import "regexp"

// citationPattern matches bracketed keys such as [smith2020] or [doe.a-1].
// Any other bracketed content is ignored.
var citationPattern = regexp.MustCompile(`\[([A-Za-z0-9._-]+)\]`)

// Keys returns the unique citation keys referenced in text, in first-seen order.
func Keys(text string) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		key := m[1]
		if seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys
}

// Occurrences returns how many times each citation key appears in text.
func Occurrences(text string) map[string]int {
	counts := make(map[string]int)
	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		counts[m[1]]++
	}
	return counts
}
