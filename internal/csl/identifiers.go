package csl

import "strings"

// DOIResolver is the base URL used to turn a bare DOI into a URL.
const DOIResolver = "https://doi.org/"

// NormalizeDOI strips resolver and "doi:" prefixes and surrounding space.
// Case is preserved; DOIs compare case-insensitively via EqualDOI.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi.org/"} {
		if len(doi) >= len(prefix) && strings.EqualFold(doi[:len(prefix)], prefix) {
			doi = doi[len(prefix):]
			break
		}
	}
	if len(doi) >= 4 && strings.EqualFold(doi[:4], "doi:") {
		doi = strings.TrimSpace(doi[4:])
	}
	return doi
}

// EqualDOI compares two DOIs after normalization, ignoring case.
func EqualDOI(a, b string) bool {
	return strings.EqualFold(NormalizeDOI(a), NormalizeDOI(b))
}

// DOIURL resolves a DOI-like identifier to a URL.
// Values that are already URLs are returned unchanged, "doi:" and "10." values
// are prefixed with the resolver, anything else is returned as given.
func DOIURL(doi string) string {
	doi = strings.TrimSpace(doi)
	switch {
	case strings.HasPrefix(doi, "http"):
		return doi
	case strings.HasPrefix(doi, "doi:"):
		return DOIResolver + strings.TrimSpace(doi[4:])
	case strings.HasPrefix(doi, "10."):
		return DOIResolver + doi
	default:
		return doi
	}
}
