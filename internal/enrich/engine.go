// Package enrich fills gaps in citation records from a metadata authority
// and keeps the result only when it raises the record's confidence.
package enrich

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edithatogo/citeref/internal/confidence"
	"github.com/edithatogo/citeref/internal/csl"
	"github.com/edithatogo/citeref/internal/logging"
)

const (
	// DefaultConcurrency bounds concurrent lookups in EnrichAll.
	DefaultConcurrency = 4

	// DefaultCacheWindow skips records enriched more recently than this.
	DefaultCacheWindow = 30 * 24 * time.Hour

	// DefaultSource is recorded in _enrichedBy when the lookuper does not name itself.
	DefaultSource = "crossref"
)

// Lookuper resolves a DOI into a record in canonical shape.
type Lookuper interface {
	LookupDOI(ctx context.Context, doi string) (csl.Record, error)
}

// sourcer is implemented by lookupers that name their provenance.
type sourcer interface {
	Source() string
}

// Status is the outcome of enriching one record.
type Status string

const (
	StatusEnriched  Status = "enriched"
	StatusUnchanged Status = "unchanged"
	StatusSkipped   Status = "skipped"
	StatusCached    Status = "cached"
	StatusFailed    Status = "failed"
)

// Result is the per-record outcome of an enrichment attempt.
// Record is the merged record when Status is StatusEnriched, otherwise the
// original record.
type Result struct {
	ID          string     `json:"id"`
	Status      Status     `json:"status"`
	Record      csl.Record `json:"record"`
	Before      float64    `json:"confidenceBefore"`
	After       float64    `json:"confidenceAfter"`
	Delta       float64    `json:"confidenceDelta"`
	Source      string     `json:"source,omitempty"`
	AddedFields []string   `json:"addedFields,omitempty"`
	Reason      string     `json:"reason,omitempty"`
}

// Improved reports whether the enrichment was accepted.
func (r Result) Improved() bool {
	return r.Status == StatusEnriched
}

// Summary counts results by status.
type Summary struct {
	Total     int `json:"total"`
	Enriched  int `json:"enriched"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Cached    int `json:"cached"`
	Failed    int `json:"failed"`
}

func (s *Summary) add(st Status) {
	s.Total++
	switch st {
	case StatusEnriched:
		s.Enriched++
	case StatusUnchanged:
		s.Unchanged++
	case StatusSkipped:
		s.Skipped++
	case StatusCached:
		s.Cached++
	case StatusFailed:
		s.Failed++
	}
}

// Batch holds the results of EnrichAll keyed by record id.
type Batch struct {
	Results map[string]Result `json:"results"`
	Summary Summary           `json:"summary"`
}

// Accepted returns the enriched records sorted by id.
func (b Batch) Accepted() []csl.Record {
	var out []csl.Record
	for _, id := range b.IDs() {
		if res := b.Results[id]; res.Improved() {
			out = append(out, res.Record)
		}
	}
	return out
}

// IDs returns the result ids in sorted order.
func (b Batch) IDs() []string {
	ids := make([]string, 0, len(b.Results))
	for id := range b.Results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Engine enriches records through a Lookuper.
type Engine struct {
	lookup      Lookuper
	logger      *slog.Logger
	concurrency int
	cacheWindow time.Duration
	threshold   float64
	source      string
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for per-record degradations.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithConcurrency sets the number of concurrent lookups.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithCacheWindow sets the freshness window. Zero disables the cache.
func WithCacheWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.cacheWindow = d
		}
	}
}

// WithThreshold sets the confidence threshold stamped into _needsVerification.
func WithThreshold(t float64) Option {
	return func(e *Engine) {
		e.threshold = t
	}
}

// WithSource overrides the provenance name.
func WithSource(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.source = name
		}
	}
}

// WithClock sets the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an engine backed by lookup.
func NewEngine(lookup Lookuper, opts ...Option) *Engine {
	e := &Engine{
		lookup:      lookup,
		logger:      logging.Discard(),
		concurrency: DefaultConcurrency,
		cacheWindow: DefaultCacheWindow,
		threshold:   confidence.DefaultThreshold,
		source:      DefaultSource,
		now:         time.Now,
	}
	if s, ok := lookup.(sourcer); ok && s.Source() != "" {
		e.source = s.Source()
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// EnrichOne attempts to enrich a single record. Lookup failures are reported
// in the result; EnrichOne never returns an error.
func (e *Engine) EnrichOne(ctx context.Context, rec csl.Record) Result {
	now := e.now()
	year := now.Year()
	before := confidence.ScoreAt(rec, nil, year)

	res := Result{
		ID:     rec.ID,
		Record: rec,
		Before: before,
		After:  before,
	}

	doi := csl.NormalizeDOI(rec.DOI)
	if doi == "" {
		res.Status = StatusSkipped
		res.Reason = "no DOI"
		return res
	}

	if e.isFresh(rec, now) {
		res.Status = StatusCached
		res.Reason = "enriched at " + rec.EnrichedAt.Format(time.RFC3339)
		return res
	}

	authority, err := e.lookup.LookupDOI(ctx, doi)
	if err != nil {
		e.logger.Warn("enrichment lookup failed", "id", rec.ID, "doi", doi, "error", err)
		res.Status = StatusFailed
		res.Reason = err.Error()
		return res
	}

	merged := csl.FillGaps(rec, authority)
	after := confidence.ScoreAt(merged, &rec, year)
	res.Source = e.source

	if after <= before {
		e.logger.Debug("enrichment rejected", "id", rec.ID, "before", before, "after", after)
		res.Status = StatusUnchanged
		res.Reason = "confidence not improved"
		return res
	}

	needs := confidence.NeedsManualVerification(after, e.threshold)
	stamped := now.UTC()
	merged.Confidence = &after
	merged.NeedsVerification = &needs
	merged.EnrichedAt = &stamped
	merged.EnrichedBy = e.source

	res.Status = StatusEnriched
	res.Record = merged
	res.After = after
	res.Delta = after - before
	res.AddedFields = addedFields(merged, rec)
	e.logger.Debug("record enriched", "id", rec.ID, "delta", res.Delta)
	return res
}

// EnrichAll enriches records concurrently. Results are keyed by id; when ids
// repeat, only the first record with that id is processed.
func (e *Engine) EnrichAll(ctx context.Context, records []csl.Record) Batch {
	var (
		mu      sync.Mutex
		results = make(map[string]Result, len(records))
		seen    = make(map[string]bool, len(records))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, rec := range records {
		if seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true

		rec := rec
		g.Go(func() error {
			res := e.EnrichOne(gctx, rec)
			mu.Lock()
			results[rec.ID] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	batch := Batch{Results: results}
	for _, res := range results {
		batch.Summary.add(res.Status)
	}
	return batch
}

func (e *Engine) isFresh(rec csl.Record, now time.Time) bool {
	if e.cacheWindow <= 0 || rec.EnrichedAt == nil {
		return false
	}
	return now.Sub(*rec.EnrichedAt) < e.cacheWindow
}

func addedFields(after, before csl.Record) []string {
	had := make(map[string]bool)
	for _, f := range before.PopulatedFields() {
		had[f] = true
	}
	var added []string
	for _, f := range after.PopulatedFields() {
		if !had[f] {
			added = append(added, f)
		}
	}
	return added
}
