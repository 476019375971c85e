// Package csl defines the canonical citation record, shaped after CSL-JSON.
package csl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Record is one bibliographic source in the canonical store.
//
// Field names on the wire follow CSL-JSON. Keys that have no typed field are
// kept in Extra so that a load/save cycle does not drop them.
type Record struct {
	// Identity
	ID   string `json:"id"`
	Type Type   `json:"type"`

	// Metadata
	Title          string         `json:"title,omitempty"`
	Author         []Name         `json:"author,omitempty"`
	Editor         []Name         `json:"editor,omitempty"`
	ContainerTitle string         `json:"container-title,omitempty"`
	Publisher      string         `json:"publisher,omitempty"`
	PublisherPlace string         `json:"publisher-place,omitempty"`
	Issued         *Date          `json:"issued,omitempty"`
	Volume         FlexibleString `json:"volume,omitempty"`
	Issue          FlexibleString `json:"issue,omitempty"`
	Page           FlexibleString `json:"page,omitempty"`
	Abstract       string         `json:"abstract,omitempty"`
	Note           string         `json:"note,omitempty"`

	// Identifiers (DOI, ISBN and PMID are authoritative)
	URL  string `json:"URL,omitempty"`
	DOI  string `json:"DOI,omitempty"`
	ISBN string `json:"ISBN,omitempty"`
	PMID string `json:"PMID,omitempty"`

	// Derived and provenance fields. These are recomputed, never trusted as input.
	Confidence        *float64   `json:"_confidence,omitempty"`
	NeedsVerification *bool      `json:"_needsVerification,omitempty"`
	EnrichedAt        *time.Time `json:"_enrichedAt,omitempty"`
	EnrichedBy        string     `json:"_enrichedBy,omitempty"`

	// Extra holds CSL keys without a typed field, keyed by their JSON name.
	Extra map[string]json.RawMessage `json:"-"`
}

// knownKeys lists the JSON keys handled by typed fields.
var knownKeys = map[string]bool{
	"id": true, "type": true, "title": true, "author": true, "editor": true,
	"container-title": true, "publisher": true, "publisher-place": true,
	"issued": true, "volume": true, "issue": true, "page": true,
	"abstract": true, "note": true, "URL": true, "DOI": true, "ISBN": true,
	"PMID": true, "_confidence": true, "_needsVerification": true,
	"_enrichedAt": true, "_enrichedBy": true,
}

// recordAlias drops the custom marshal methods to avoid recursion.
type recordAlias Record

// UnmarshalJSON decodes typed fields and collects the remaining keys into Extra.
func (r *Record) UnmarshalJSON(data []byte) error {
	var alias recordAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for key, raw := range all {
		if knownKeys[key] {
			continue
		}
		if alias.Extra == nil {
			alias.Extra = make(map[string]json.RawMessage)
		}
		alias.Extra[key] = raw
	}

	*r = Record(alias)
	return nil
}

// MarshalJSON encodes typed fields first, then Extra keys in sorted order.
func (r Record) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(recordAlias(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return data, nil
	}

	keys := make([]string, 0, len(r.Extra))
	for key := range r.Extra {
		if !knownKeys[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.Write(data[:len(data)-1]) // drop closing brace
	for _, key := range keys {
		name, err := json.Marshal(key)
		if err != nil {
			return nil, fmt.Errorf("encoding extra key %q: %w", key, err)
		}
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(r.Extra[key])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Name is a CSL name: family and/or given, or a single literal.
type Name struct {
	Family  string `json:"family,omitempty"`
	Given   string `json:"given,omitempty"`
	Literal string `json:"literal,omitempty"`
}

// Resolvable reports whether any part of the name is populated.
func (n Name) Resolvable() bool {
	return n.Family != "" || n.Given != "" || n.Literal != ""
}

// Inverted formats the name as "Family, Given", falling back to the literal.
func (n Name) Inverted() string {
	switch {
	case n.Family != "" && n.Given != "":
		return n.Family + ", " + n.Given
	case n.Family != "":
		return n.Family
	case n.Literal != "":
		return n.Literal
	default:
		return n.Given
	}
}

// Year returns the first year of the issued date, or 0 if unknown.
func (r Record) Year() int {
	return r.Issued.Year()
}

// HasAuthoritativeID reports whether a DOI, ISBN or PMID is present.
func (r Record) HasAuthoritativeID() bool {
	return r.DOI != "" || r.ISBN != "" || r.PMID != ""
}

// Degenerate reports whether the record has neither a title nor any identifier.
func (r Record) Degenerate() bool {
	return r.Title == "" && r.URL == "" && !r.HasAuthoritativeID()
}

// PopulatedFields returns the JSON names of the non-empty top-level fields.
// Derived fields (leading underscore) are not counted.
func (r Record) PopulatedFields() []string {
	candidates := []struct {
		name    string
		present bool
	}{
		{"id", r.ID != ""},
		{"type", r.Type != ""},
		{"title", r.Title != ""},
		{"author", len(r.Author) > 0},
		{"editor", len(r.Editor) > 0},
		{"container-title", r.ContainerTitle != ""},
		{"publisher", r.Publisher != ""},
		{"publisher-place", r.PublisherPlace != ""},
		{"issued", !r.Issued.IsZero()},
		{"volume", r.Volume != ""},
		{"issue", r.Issue != ""},
		{"page", r.Page != ""},
		{"abstract", r.Abstract != ""},
		{"note", r.Note != ""},
		{"URL", r.URL != ""},
		{"DOI", r.DOI != ""},
		{"ISBN", r.ISBN != ""},
		{"PMID", r.PMID != ""},
	}

	var fields []string
	for _, c := range candidates {
		if c.present {
			fields = append(fields, c.name)
		}
	}

	extras := make([]string, 0, len(r.Extra))
	for key, raw := range r.Extra {
		if len(key) > 0 && key[0] == '_' {
			continue
		}
		if isEmptyJSON(raw) {
			continue
		}
		extras = append(extras, key)
	}
	sort.Strings(extras)

	return append(fields, extras...)
}

// isEmptyJSON reports whether raw is null, "", [] or {}.
func isEmptyJSON(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", `""`, "[]", "{}":
		return true
	}
	return false
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	c := r
	if r.Author != nil {
		c.Author = append([]Name(nil), r.Author...)
	}
	if r.Editor != nil {
		c.Editor = append([]Name(nil), r.Editor...)
	}
	if r.Issued != nil {
		c.Issued = r.Issued.Clone()
	}
	if r.Confidence != nil {
		v := *r.Confidence
		c.Confidence = &v
	}
	if r.NeedsVerification != nil {
		v := *r.NeedsVerification
		c.NeedsVerification = &v
	}
	if r.EnrichedAt != nil {
		v := *r.EnrichedAt
		c.EnrichedAt = &v
	}
	if r.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(r.Extra))
		for k, v := range r.Extra {
			c.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return c
}

// IDs returns the ids of records in order, duplicates included.
func IDs(records []Record) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}

// FindByID returns the index of the first record with the given id.
func FindByID(records []Record, id string) (int, bool) {
	for i, r := range records {
		if r.ID == id {
			return i, true
		}
	}
	return -1, false
}
