package importer

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/edithatogo/citeref/internal/csl"
)

// ParseCSLYAML decodes CSL-YAML: either a top-level sequence of items or a
// mapping with a "references" sequence, as pandoc metadata blocks use.
func ParseCSLYAML(data []byte) ([]csl.Record, []error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, []error{fmt.Errorf("parsing CSL-YAML: %w", err)}
	}

	items, ok := doc.([]interface{})
	if !ok {
		m, isMap := doc.(map[string]interface{})
		if !isMap {
			return nil, []error{fmt.Errorf("CSL-YAML must be a sequence of items or a mapping with 'references'")}
		}
		items, ok = m["references"].([]interface{})
		if !ok {
			return nil, []error{fmt.Errorf("CSL-YAML mapping has no 'references' sequence")}
		}
	}

	raws := make([]json.RawMessage, 0, len(items))
	var errs []error
	for i, item := range items {
		raw, err := json.Marshal(normalizeYAML(item))
		if err != nil {
			errs = append(errs, fmt.Errorf("entry %d: %w", i+1, err))
			continue
		}
		raws = append(raws, raw)
	}

	records, decodeErrs := decodeEntries(raws)
	return records, append(errs, decodeErrs...)
}

// normalizeYAML converts decoded YAML into values encoding/json accepts.
// Scalar ids and identifiers are kept as strings.
func normalizeYAML(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			if stringKeys[k] {
				out[k] = scalarString(val)
				continue
			}
			out[k] = normalizeYAML(val)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return normalizeYAML(out)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	default:
		return v
	}
}

// stringKeys are CSL fields whose YAML scalars may resolve to numbers.
var stringKeys = map[string]bool{
	"id": true, "title": true, "DOI": true, "ISBN": true, "PMID": true, "URL": true,
}

func scalarString(v interface{}) interface{} {
	switch v.(type) {
	case nil, string, map[string]interface{}, []interface{}:
		return v
	default:
		return fmt.Sprint(v)
	}
}
