// Package storage persists the canonical record document and maintains a
// query index over it.
//
// The JSON document is the source of truth. The SQLite index is ephemeral
// and can always be rebuilt from the document.
package storage

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/edithatogo/citeref/internal/confidence"
	"github.com/edithatogo/citeref/internal/csl"
	"github.com/edithatogo/citeref/internal/schema"
)

// Action describes what an upsert did.
type Action string

const (
	ActionNew    Action = "new"
	ActionUpdate Action = "update"
)

// ValidationError reports schema problems that block a load or save.
type ValidationError struct {
	Path     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %d validation error(s): %s", e.Path, len(e.Problems), strings.Join(e.Problems, "; "))
}

// IsValidationError reports whether err is a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Store is the canonical record document at Path.
type Store struct {
	Path string
}

// NewStore returns a store backed by the JSON document at path.
func NewStore(path string) *Store {
	return &Store{Path: path}
}

// Load reads every record. A missing file is an empty store; malformed JSON
// or schema problems are errors.
func (s *Store) Load() ([]csl.Record, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading store: %w", err)
	}
	return Decode(s.Path, data)
}

// Decode validates and parses a store document. name labels errors.
func Decode(name string, data []byte) ([]csl.Record, error) {
	if problems := schema.ValidateDocument(data); len(problems) > 0 {
		return nil, &ValidationError{Path: name, Problems: problems}
	}

	var records []csl.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	return records, nil
}

// Encode renders records as the store document.
func Encode(records []csl.Record) ([]byte, error) {
	if records == nil {
		records = []csl.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding records: %w", err)
	}
	return append(data, '\n'), nil
}

// Save validates records and replaces the document atomically. On a
// validation failure nothing is written and the previous file is untouched.
func (s *Store) Save(records []csl.Record) error {
	if problems := schema.ValidateRecords(records); len(problems) > 0 {
		return &ValidationError{Path: s.Path, Problems: problems}
	}

	data, err := Encode(records)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("setting store permissions: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path); err != nil {
		return fmt.Errorf("replacing store: %w", err)
	}
	return nil
}

// Get returns the first record with id.
func (s *Store) Get(id string) (csl.Record, bool, error) {
	records, err := s.Load()
	if err != nil {
		return csl.Record{}, false, err
	}
	i, ok := csl.FindByID(records, id)
	if !ok {
		return csl.Record{}, false, nil
	}
	return records[i], true, nil
}

// Upsert loads the store, upserts rec and saves.
func (s *Store) Upsert(rec csl.Record, replace bool) (Action, error) {
	records, err := s.Load()
	if err != nil {
		return "", err
	}
	records, action := Upsert(records, rec, replace)
	if err := s.Save(records); err != nil {
		return "", err
	}
	return action, nil
}

// UpsertAll upserts every record in one load/save cycle.
func (s *Store) UpsertAll(recs []csl.Record, replace bool) (added, updated int, err error) {
	records, err := s.Load()
	if err != nil {
		return 0, 0, err
	}
	for _, rec := range recs {
		var action Action
		records, action = Upsert(records, rec, replace)
		if action == ActionNew {
			added++
		} else {
			updated++
		}
	}
	if err := s.Save(records); err != nil {
		return 0, 0, err
	}
	return added, updated, nil
}

// Remove deletes the records with the given ids and returns the ids removed.
func (s *Store) Remove(ids []string) ([]string, error) {
	records, err := s.Load()
	if err != nil {
		return nil, err
	}
	kept, removed := Remove(records, ids)
	if len(removed) == 0 {
		return nil, nil
	}
	if err := s.Save(kept); err != nil {
		return nil, err
	}
	return removed, nil
}

// Digest returns the BLAKE3 hex digest of the store document, or "" when
// the file does not exist.
func (s *Store) Digest() (string, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("reading store: %w", err)
	}
	return Digest(data), nil
}

// Digest returns the BLAKE3 hex digest of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Upsert merges rec into records by id. Non-empty fields of rec win; empty
// fields never erase existing values unless replace is set. Records with a
// new id are appended.
//
// When rec carries no score of its own, a merged record that had derived
// confidence fields gets them recomputed from its new field values, with
// _needsVerification judged against confidence.DefaultThreshold.
func Upsert(records []csl.Record, rec csl.Record, replace bool) ([]csl.Record, Action) {
	if i, ok := csl.FindByID(records, rec.ID); ok {
		out := append([]csl.Record(nil), records...)
		merged := csl.Merge(records[i], rec, replace)
		if rec.Confidence == nil && (merged.Confidence != nil || merged.NeedsVerification != nil) {
			merged = confidence.Annotate(merged, nil, confidence.DefaultThreshold)
		}
		out[i] = merged
		return out, ActionUpdate
	}
	return append(append([]csl.Record(nil), records...), rec.Clone()), ActionNew
}

// Remove drops every record whose id is in ids. It returns the kept records
// and the distinct ids that were actually removed, in store order.
func Remove(records []csl.Record, ids []string) ([]csl.Record, []string) {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	var kept []csl.Record
	var removed []string
	seen := make(map[string]bool)
	for _, r := range records {
		if drop[r.ID] {
			if !seen[r.ID] {
				removed = append(removed, r.ID)
				seen[r.ID] = true
			}
			continue
		}
		kept = append(kept, r)
	}
	return kept, removed
}

// GenerateUniqueID returns baseID, or baseID-2, baseID-3, ... if taken.
func GenerateUniqueID(records []csl.Record, baseID string) string {
	if _, found := csl.FindByID(records, baseID); !found {
		return baseID
	}

	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d", baseID, i)
		if _, found := csl.FindByID(records, candidate); !found {
			return candidate
		}
	}
}
