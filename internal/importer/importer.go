// Package importer reads citation records from CSL-JSON, CSL-YAML and
// Paperpile exports.
package importer

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/edithatogo/citeref/internal/csl"
)

// Format is an import source format.
type Format string

const (
	FormatCSLJSON   Format = "csl-json"
	FormatCSLYAML   Format = "csl-yaml"
	FormatPaperpile Format = "paperpile"
)

// ParseFormat resolves a format name. Accepted: csl-json (json), csl-yaml
// (yaml, yml) and paperpile.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "csl-json", "json":
		return FormatCSLJSON, nil
	case "csl-yaml", "yaml", "yml":
		return FormatCSLYAML, nil
	case "paperpile":
		return FormatPaperpile, nil
	}
	return "", fmt.Errorf("unknown import format %q (want csl-json, csl-yaml or paperpile)", name)
}

// DetectFormat guesses the format from a file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatCSLJSON, nil
	case ".yaml", ".yml":
		return FormatCSLYAML, nil
	}
	return "", fmt.Errorf("cannot detect import format of %s", path)
}

// Parse decodes data in format f. Entries that cannot be converted are
// reported in the error slice; the remaining records are still returned.
func Parse(f Format, data []byte) ([]csl.Record, []error) {
	switch f {
	case FormatCSLJSON:
		return ParseCSLJSON(data)
	case FormatCSLYAML:
		return ParseCSLYAML(data)
	case FormatPaperpile:
		return ParsePaperpile(data)
	}
	return nil, []error{fmt.Errorf("unsupported import format %q", f)}
}

// ParseCSLJSON decodes a CSL-JSON array. A single object is accepted as a
// one-element array.
func ParseCSLJSON(data []byte) ([]csl.Record, []error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		var single json.RawMessage
		if err2 := json.Unmarshal(data, &single); err2 != nil || !isObject(single) {
			return nil, []error{fmt.Errorf("parsing CSL-JSON: %w", err)}
		}
		raws = []json.RawMessage{single}
	}
	return decodeEntries(raws)
}

func decodeEntries(raws []json.RawMessage) ([]csl.Record, []error) {
	var records []csl.Record
	var errs []error

	for i, raw := range raws {
		var r csl.Record
		if err := json.Unmarshal(raw, &r); err != nil {
			errs = append(errs, fmt.Errorf("entry %d: %w", i+1, err))
			continue
		}
		if err := checkEntry(r); err != nil {
			errs = append(errs, fmt.Errorf("entry %d (%s): %w", i+1, r.ID, err))
			continue
		}
		records = append(records, r)
	}

	return records, errs
}

// checkEntry rejects entries the store would refuse to save.
func checkEntry(r csl.Record) error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("missing required field 'id'")
	}
	if r.Type == "" {
		return fmt.Errorf("missing required field 'type'")
	}
	if !r.Type.Valid() {
		return fmt.Errorf("invalid type '%s'", r.Type)
	}
	return nil
}

func isObject(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return strings.HasPrefix(s, "{")
}
