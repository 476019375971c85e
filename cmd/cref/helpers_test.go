package main

import (
	"testing"

	"github.com/edithatogo/citeref/internal/csl"
	"github.com/edithatogo/citeref/internal/importer"
)

func TestDeriveID(t *testing.T) {
	tests := []struct {
		name string
		rec  csl.Record
		path string
		want string
	}{
		{
			name: "author and year",
			rec:  csl.Record{Author: []csl.Name{{Family: "O'Brien", Given: "Pat"}}, Issued: csl.NewDate(2021)},
			path: "paper.pdf",
			want: "obrien2021",
		},
		{
			name: "author without year",
			rec:  csl.Record{Author: []csl.Name{{Family: "Smith"}}},
			path: "paper.pdf",
			want: "smith",
		},
		{
			name: "literal author falls back to file name",
			rec:  csl.Record{Author: []csl.Name{{Literal: "WHO"}}},
			path: "/tmp/My Paper (final).pdf",
			want: "my-paper-final",
		},
		{
			name: "unusable file name",
			rec:  csl.Record{},
			path: "/tmp/???.pdf",
			want: "pdf",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deriveID(tt.rec, tt.path); got != tt.want {
				t.Errorf("deriveID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSelectRecords(t *testing.T) {
	records := []csl.Record{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	if got := selectRecords(records, nil); len(got) != 3 {
		t.Errorf("selectRecords(nil) returned %d records, want 3", len(got))
	}

	got := selectRecords(records, []string{"c", " a "})
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("selectRecords() = %v, want [a c] in store order", csl.IDs(got))
	}

	if got := selectRecords(records, []string{"zzz"}); len(got) != 0 {
		t.Errorf("selectRecords(zzz) = %v, want none", csl.IDs(got))
	}
}

func TestApplyImport(t *testing.T) {
	existing := []csl.Record{
		{ID: "ref1", Type: csl.TypeBook, Title: "Old", DOI: "10.1/abc"},
	}
	incoming := []csl.Record{
		{ID: "other", Type: csl.TypeBook, Title: "New Title", DOI: "10.1/ABC"},
		{ID: "fresh", Type: csl.TypeReport, Title: "Fresh"},
		{ID: "fresh", Type: csl.TypeReport, Title: "Fresh again"},
	}

	res, records := applyImport(existing, importer.Plan(existing, incoming), false)

	if res.New != 1 || res.Updated != 1 || res.Skipped != 1 {
		t.Errorf("counts = new %d, updated %d, skipped %d; want 1, 1, 1", res.New, res.Updated, res.Skipped)
	}
	if len(records) != 2 {
		t.Fatalf("records = %v, want 2", csl.IDs(records))
	}
	if records[0].Title != "New Title" {
		t.Errorf("ref1 title = %q, want merged New Title", records[0].Title)
	}
	if res.Details[0].Reason != "doi_match" {
		t.Errorf("Details[0].Reason = %q, want doi_match", res.Details[0].Reason)
	}
}

func TestFormatAuthorsShort(t *testing.T) {
	names := []csl.Name{{Family: "Smith"}, {Literal: "The Consortium"}, {Given: "Cher"}, {Family: "Doe"}}

	tests := []struct {
		max  int
		want string
	}{
		{3, "Smith, The Consortium, Cher et al."},
		{4, "Smith, The Consortium, Cher, Doe"},
		{1, "Smith et al."},
	}
	for _, tt := range tests {
		if got := formatAuthorsShort(names, tt.max); got != tt.want {
			t.Errorf("formatAuthorsShort(max=%d) = %q, want %q", tt.max, got, tt.want)
		}
	}
	if got := formatAuthorsShort(nil, 3); got != "" {
		t.Errorf("formatAuthorsShort(nil) = %q, want empty", got)
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10c", 10, "exactly10c"},
		{"a much longer title", 10, "a much ..."},
	}
	for _, tt := range tests {
		if got := truncateString(tt.in, tt.max); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
