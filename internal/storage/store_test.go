package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/edithatogo/citeref/internal/confidence"
	"github.com/edithatogo/citeref/internal/csl"
)

func testRecords() []csl.Record {
	return []csl.Record{
		{
			ID:     "smith2020",
			Type:   csl.TypeArticleJournal,
			Title:  "Machine Learning in Biology",
			Author: []csl.Name{{Family: "Smith", Given: "John"}},
			DOI:    "10.1234/smith",
			Issued: csl.NewDate(2020),
		},
		{
			ID:    "jones-book",
			Type:  csl.TypeBook,
			Title: "Deep Learning for Protein Structure",
			ISBN:  "978-0-00-000000-0",
		},
	}
}

func TestStore_LoadMissingFileIsEmpty(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing.json"))

	records, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Load() = %d records, want 0", len(records))
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "refs.json")
	s := NewStore(path)

	if err := s.Save(testRecords()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Load() = %d records, want 2", len(got))
	}
	if got[0].ID != "smith2020" || got[0].Author[0].Family != "Smith" || got[0].Year() != 2020 {
		t.Errorf("record 0 = %+v", got[0])
	}
	if got[1].ISBN != "978-0-00-000000-0" {
		t.Errorf("record 1 ISBN = %q", got[1].ISBN)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("store directory has %d entries, want only the store file", len(entries))
	}
}

func TestStore_SaveEmptyWritesArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refs.json")
	if err := NewStore(path).Save(nil); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("Save(nil) wrote %q, want []", data)
	}
}

func TestStore_SaveInvalidLeavesFileUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refs.json")
	s := NewStore(path)
	if err := s.Save(testRecords()); err != nil {
		t.Fatal(err)
	}
	before, _ := os.ReadFile(path)

	bad := append(testRecords(), csl.Record{ID: "bad", Type: "not-a-type"})
	err := s.Save(bad)
	if !IsValidationError(err) {
		t.Fatalf("Save() error = %v, want ValidationError", err)
	}

	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Errorf("store changed after failed save")
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("failed save left %d files, want 1", len(entries))
	}
}

func TestStore_LoadRejectsBadDocuments(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed", `[{"id": "a",`},
		{"single object", `{"id": "a", "type": "book"}`},
		{"missing type", `[{"id": "a"}]`},
		{"invalid type", `[{"id": "a", "type": "novel"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "refs.json")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := NewStore(path).Load(); err == nil {
				t.Errorf("Load() error = nil, want error")
			}
		})
	}
}

func TestStore_UpsertMerges(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "refs.json"))
	if err := s.Save(testRecords()); err != nil {
		t.Fatal(err)
	}

	action, err := s.Upsert(csl.Record{ID: "smith2020", Volume: "3"}, false)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if action != ActionUpdate {
		t.Errorf("action = %q, want update", action)
	}

	got, ok, err := s.Get("smith2020")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if got.Title != "Machine Learning in Biology" || got.Volume != "3" {
		t.Errorf("merged record = %+v", got)
	}

	action, err = s.Upsert(csl.Record{ID: "new", Type: csl.TypeWebpage, URL: "https://example.org"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if action != ActionNew {
		t.Errorf("action = %q, want new", action)
	}
}

func TestStore_UpsertReplace(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "refs.json"))
	if err := s.Save(testRecords()); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Upsert(csl.Record{ID: "smith2020", Type: csl.TypeArticle}, true); err != nil {
		t.Fatal(err)
	}
	got, _, _ := s.Get("smith2020")
	if got.Title != "" || got.DOI != "" {
		t.Errorf("replace kept old fields: %+v", got)
	}
}

func TestStore_UpsertRecomputesDerivedConfidence(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "refs.json"))
	stale := 0.95
	needs := false
	enrichedAt := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	recs := testRecords()
	recs[0].Confidence = &stale
	recs[0].NeedsVerification = &needs
	recs[0].EnrichedAt = &enrichedAt
	recs[0].EnrichedBy = "crossref"
	if err := s.Save(recs); err != nil {
		t.Fatal(err)
	}

	overlay := csl.ClearDerived(csl.Record{ID: "smith2020", Publisher: "Acme Press"})
	if _, err := s.Upsert(overlay, false); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, _, err := s.Get("smith2020")
	if err != nil {
		t.Fatal(err)
	}
	if got.Confidence == nil {
		t.Fatal("_confidence dropped after upsert")
	}
	want := confidence.Score(got, nil)
	if *got.Confidence != want {
		t.Errorf("_confidence = %v, want recomputed %v", *got.Confidence, want)
	}
	if got.NeedsVerification == nil || *got.NeedsVerification != (want < confidence.DefaultThreshold) {
		t.Errorf("_needsVerification = %v, want %v", got.NeedsVerification, want < confidence.DefaultThreshold)
	}
	if got.EnrichedBy != "crossref" || got.EnrichedAt == nil {
		t.Errorf("provenance lost: %+v", got)
	}
}

func TestUpsert_KeepsCallerScore(t *testing.T) {
	old, fresh := 0.95, 0.8
	records := []csl.Record{{ID: "a", Type: csl.TypeBook, Title: "T", Confidence: &old}}

	got, _ := Upsert(records, csl.Record{ID: "a", Publisher: "P", Confidence: &fresh}, false)
	if got[0].Confidence == nil || *got[0].Confidence != fresh {
		t.Errorf("_confidence = %v, want %v", got[0].Confidence, fresh)
	}

	got, _ = Upsert(records, csl.Record{ID: "a", Publisher: "P"}, false)
	if *got[0].Confidence == old {
		t.Errorf("_confidence stayed at stale %v", old)
	}
	if *records[0].Confidence != old {
		t.Errorf("input records mutated")
	}
}

func TestStore_UpsertAllAndRemove(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "refs.json"))

	added, updated, err := s.UpsertAll(testRecords(), false)
	if err != nil {
		t.Fatal(err)
	}
	if added != 2 || updated != 0 {
		t.Errorf("UpsertAll() = %d added, %d updated", added, updated)
	}

	removed, err := s.Remove([]string{"jones-book", "absent"})
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 1 || removed[0] != "jones-book" {
		t.Errorf("Remove() = %v", removed)
	}

	records, _ := s.Load()
	if len(records) != 1 || records[0].ID != "smith2020" {
		t.Errorf("after Remove() = %v", csl.IDs(records))
	}
}

func TestStore_UpsertInvalidFails(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "refs.json"))
	_, err := s.Upsert(csl.Record{ID: "x"}, false)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Upsert() error = %v, want ValidationError", err)
	}
	if _, statErr := os.Stat(s.Path); !os.IsNotExist(statErr) {
		t.Errorf("failed upsert created the store file")
	}
}

func TestDigest(t *testing.T) {
	a := Digest([]byte("[]"))
	b := Digest([]byte("[ ]"))
	if a == b {
		t.Errorf("Digest() should differ for different content")
	}
	if len(a) != 64 {
		t.Errorf("Digest() length = %d, want 64 hex chars", len(a))
	}

	s := NewStore(filepath.Join(t.TempDir(), "none.json"))
	d, err := s.Digest()
	if err != nil || d != "" {
		t.Errorf("Digest() on missing store = %q, %v", d, err)
	}
}

func TestGenerateUniqueID(t *testing.T) {
	records := []csl.Record{{ID: "a"}, {ID: "a-2"}}

	tests := []struct {
		base string
		want string
	}{
		{"b", "b"},
		{"a", "a-3"},
	}
	for _, tt := range tests {
		if got := GenerateUniqueID(records, tt.base); got != tt.want {
			t.Errorf("GenerateUniqueID(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}
