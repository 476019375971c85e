// Package schema validates citation record collections.
//
// Validation never fails hard: every function returns the list of problems it
// found, and an empty list means the input is valid.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/edithatogo/citeref/internal/csl"
)

// ErrNotArray is the message reported when a document is not a JSON array.
const ErrNotArray = "CSL-JSON must be an array of citation objects"

// ValidateDocument checks raw store content before it is decoded into records.
// The document must be an array; every element must be an object with a
// non-empty string id and a type from the closed set.
func ValidateDocument(data []byte) []string {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return []string{ErrNotArray}
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return []string{fmt.Sprintf("malformed CSL-JSON: %v", err)}
	}

	var errs []string
	for i, raw := range elems {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			errs = append(errs, fmt.Sprintf("Citation at index %d is not an object", i))
			continue
		}
		errs = append(errs, checkID(i, stringField(fields, "id"))...)
		errs = append(errs, checkType(i, fields["type"])...)
	}
	return errs
}

// ValidateRecords applies the structural checks to decoded records.
func ValidateRecords(records []csl.Record) []string {
	var errs []string
	for i, r := range records {
		errs = append(errs, checkID(i, r.ID)...)
		if r.Type == "" {
			errs = append(errs, fmt.Sprintf("Citation at index %d is missing required 'type' field", i))
		} else if !r.Type.Valid() {
			errs = append(errs, invalidType(i, string(r.Type)))
		}
	}
	return errs
}

func checkID(i int, id string) []string {
	if id == "" {
		return []string{fmt.Sprintf("Citation at index %d is missing required 'id' field", i)}
	}
	return nil
}

func checkType(i int, raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return []string{fmt.Sprintf("Citation at index %d is missing required 'type' field", i)}
	}
	var t string
	if err := json.Unmarshal(raw, &t); err != nil {
		return []string{invalidType(i, string(raw))}
	}
	if t == "" {
		return []string{fmt.Sprintf("Citation at index %d is missing required 'type' field", i)}
	}
	if !csl.Type(t).Valid() {
		return []string{invalidType(i, t)}
	}
	return nil
}

func invalidType(i int, t string) string {
	return fmt.Sprintf("Citation at index %d has invalid type '%s'. Valid types are: %s", i, t, csl.ValidTypeList())
}

// stringField returns fields[key] if it is a JSON string, otherwise "".
func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
