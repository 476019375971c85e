package csl

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Date is a CSL date. DateParts holds one or two (range) year-first tuples.
type Date struct {
	DateParts [][]int `json:"date-parts,omitempty"`
	Literal   string  `json:"literal,omitempty"`
	Raw       string  `json:"raw,omitempty"`
}

// NewDate builds a single-tuple date from year, month and day parts.
func NewDate(parts ...int) *Date {
	return &Date{DateParts: [][]int{append([]int(nil), parts...)}}
}

// UnmarshalJSON accepts date-parts whose elements are numbers or numeric strings.
func (d *Date) UnmarshalJSON(data []byte) error {
	var shadow struct {
		DateParts [][]FlexibleString `json:"date-parts"`
		Literal   string             `json:"literal"`
		Raw       string             `json:"raw"`
	}
	if err := json.Unmarshal(data, &shadow); err != nil {
		return err
	}

	d.Literal = shadow.Literal
	d.Raw = shadow.Raw
	d.DateParts = nil
	for _, tuple := range shadow.DateParts {
		parts := make([]int, 0, len(tuple))
		for _, p := range tuple {
			s := strings.TrimSpace(p.String())
			if s == "" {
				continue
			}
			n, err := strconv.Atoi(s)
			if err != nil {
				return fmt.Errorf("invalid date part %q: %w", s, err)
			}
			parts = append(parts, n)
		}
		d.DateParts = append(d.DateParts, parts)
	}
	return nil
}

// Year returns the first year, or 0 when the date is nil or has no parts.
func (d *Date) Year() int {
	if d == nil || len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return 0
	}
	return d.DateParts[0][0]
}

// Parts returns the first date tuple, or nil.
func (d *Date) Parts() []int {
	if d == nil || len(d.DateParts) == 0 {
		return nil
	}
	return d.DateParts[0]
}

// IsZero reports whether the date carries no information.
func (d *Date) IsZero() bool {
	return d == nil || (len(d.Parts()) == 0 && d.Literal == "" && d.Raw == "")
}

// Clone returns a deep copy of the date.
func (d *Date) Clone() *Date {
	if d == nil {
		return nil
	}
	c := &Date{Literal: d.Literal, Raw: d.Raw}
	for _, tuple := range d.DateParts {
		c.DateParts = append(c.DateParts, append([]int(nil), tuple...))
	}
	return c
}

// JoinParts joins the first tuple with sep, e.g. "2020/3/1".
func (d *Date) JoinParts(sep string) string {
	parts := d.Parts()
	strs := make([]string, len(parts))
	for i, p := range parts {
		strs[i] = strconv.Itoa(p)
	}
	return strings.Join(strs, sep)
}
