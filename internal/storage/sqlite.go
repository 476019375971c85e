package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/edithatogo/citeref/internal/confidence"
	"github.com/edithatogo/citeref/internal/csl"
)

// metaDigestKey stores the digest of the document the index was built from.
const metaDigestKey = "store_digest"

// Index is a SQLite full-text and attribute index over the record store.
type Index struct {
	db *sql.DB
}

// ScoredRecord pairs a record with the confidence computed at index time.
type ScoredRecord struct {
	Record     csl.Record `json:"record"`
	Confidence float64    `json:"confidence"`
}

// OpenIndex opens or creates an index database at path.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating index schema: %w", err)
	}

	return &Index{db: db}, nil
}

// Close closes the database connection.
func (x *Index) Close() error {
	return x.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			title TEXT,
			container_title TEXT,
			issued_year INTEGER,
			doi TEXT,
			url TEXT,
			confidence REAL NOT NULL,
			record_json TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_records_doi ON records(doi) WHERE doi IS NOT NULL AND doi != '';
		CREATE INDEX IF NOT EXISTS idx_records_type ON records(type);

		-- Standalone FTS table, rebuilt together with records
		CREATE VIRTUAL TABLE IF NOT EXISTS records_fts USING fts5(
			id,
			title,
			authors_text,
			container_title
		);

		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`

	_, err := db.Exec(schema)
	return err
}

// Rebuild replaces the index contents with records and stamps digest.
// Only the first record of a repeated id is indexed.
func (x *Index) Rebuild(records []csl.Record, digest string) (count int, err error) {
	tx, err := x.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("starting rebuild: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, table := range []string{"records", "records_fts", "meta"} {
		if _, err = tx.Exec("DELETE FROM " + table); err != nil {
			return 0, fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	year := time.Now().Year()
	seen := make(map[string]bool, len(records))

	for _, r := range records {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true

		var data []byte
		data, err = json.Marshal(r)
		if err != nil {
			return 0, fmt.Errorf("encoding %s: %w", r.ID, err)
		}

		_, err = sq.Insert("records").
			Columns("id", "type", "title", "container_title", "issued_year", "doi", "url", "confidence", "record_json").
			Values(r.ID, string(r.Type), r.Title, r.ContainerTitle, nullableYear(r.Year()),
				nullableStringValue(r.DOI), nullableStringValue(r.URL),
				confidence.ScoreAt(r, nil, year), string(data)).
			RunWith(tx).Exec()
		if err != nil {
			return 0, fmt.Errorf("inserting %s: %w", r.ID, err)
		}

		_, err = sq.Insert("records_fts").
			Columns("id", "title", "authors_text", "container_title").
			Values(r.ID, r.Title, formatAuthorsText(r.Author, r.Editor), r.ContainerTitle).
			RunWith(tx).Exec()
		if err != nil {
			return 0, fmt.Errorf("inserting fts for %s: %w", r.ID, err)
		}
		count++
	}

	_, err = sq.Insert("meta").Columns("key", "value").Values(metaDigestKey, digest).RunWith(tx).Exec()
	if err != nil {
		return 0, fmt.Errorf("writing digest: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing rebuild: %w", err)
	}
	return count, nil
}

// Digest returns the store digest recorded at the last rebuild, or "" if
// the index has never been built.
func (x *Index) Digest() (string, error) {
	var value string
	err := sq.Select("value").From("meta").Where(sq.Eq{"key": metaDigestKey}).
		RunWith(x.db).QueryRow().Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading digest: %w", err)
	}
	return value, nil
}

// InSync reports whether the index was built from a document with digest.
func (x *Index) InSync(digest string) (bool, error) {
	current, err := x.Digest()
	if err != nil {
		return false, err
	}
	return current != "" && current == digest, nil
}

// Count returns the number of indexed records.
func (x *Index) Count() (int, error) {
	var n int
	err := sq.Select("COUNT(*)").From("records").RunWith(x.db).QueryRow().Scan(&n)
	return n, err
}

// Search runs a full-text query over id, title, authors and container title.
// A non-positive limit returns every match.
func (x *Index) Search(query string, limit int) ([]csl.Record, error) {
	fts := prepareFTSQuery(query)
	if fts == "" {
		return nil, errors.New("empty search query")
	}

	q := sq.Select("record_json").From("records").
		Where(sq.Expr("id IN (SELECT id FROM records_fts WHERE records_fts MATCH ?)", fts)).
		OrderBy("id")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	rows, err := q.RunWith(x.db).Query()
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ByType returns the indexed records of type t, ordered by id.
func (x *Index) ByType(t csl.Type) ([]csl.Record, error) {
	rows, err := sq.Select("record_json").From("records").
		Where(sq.Eq{"type": string(t)}).
		OrderBy("id").
		RunWith(x.db).Query()
	if err != nil {
		return nil, fmt.Errorf("listing type %s: %w", t, err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// LowConfidence returns records scoring below threshold, lowest first.
func (x *Index) LowConfidence(threshold float64) ([]ScoredRecord, error) {
	rows, err := sq.Select("record_json", "confidence").From("records").
		Where(sq.Lt{"confidence": threshold}).
		OrderBy("confidence ASC", "id").
		RunWith(x.db).Query()
	if err != nil {
		return nil, fmt.Errorf("listing low-confidence records: %w", err)
	}
	defer rows.Close()

	var out []ScoredRecord
	for rows.Next() {
		var data string
		var score float64
		if err := rows.Scan(&data, &score); err != nil {
			return nil, err
		}
		var r csl.Record
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("decoding indexed record: %w", err)
		}
		out = append(out, ScoredRecord{Record: r, Confidence: score})
	}
	return out, rows.Err()
}

func scanRecords(rows *sql.Rows) ([]csl.Record, error) {
	var records []csl.Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r csl.Record
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("decoding indexed record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// formatAuthorsText creates a searchable text representation of names.
func formatAuthorsText(groups ...[]csl.Name) string {
	var names []string
	for _, group := range groups {
		for _, n := range group {
			full := strings.TrimSpace(strings.Join([]string{n.Given, n.Family, n.Literal}, " "))
			if full != "" {
				names = append(names, strings.Join(strings.Fields(full), " "))
			}
		}
	}
	return strings.Join(names, ", ")
}

func nullableYear(y int) sql.NullInt64 {
	if y == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(y), Valid: true}
}

// nullableStringValue converts a string to sql.NullString, treating empty as NULL.
func nullableStringValue(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// prepareFTSQuery escapes special characters for FTS5 queries.
func prepareFTSQuery(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return query
	}

	// FTS5 uses double quotes for phrase matching
	if strings.ContainsAny(query, "\"*+-:(){}[]^~./") {
		query = strings.ReplaceAll(query, "\"", "\"\"")
		return "\"" + query + "\""
	}

	return query
}
