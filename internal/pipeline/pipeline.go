// Package pipeline runs verification, enrichment, conversion and link
// checks over one manuscript and the record store and folds the results
// into one report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/edithatogo/citeref/internal/confidence"
	"github.com/edithatogo/citeref/internal/convert"
	"github.com/edithatogo/citeref/internal/csl"
	"github.com/edithatogo/citeref/internal/enrich"
	"github.com/edithatogo/citeref/internal/logging"
	"github.com/edithatogo/citeref/internal/reachability"
	"github.com/edithatogo/citeref/internal/storage"
	"github.com/edithatogo/citeref/internal/verify"
)

// ErrNoStore is returned when Options.Store is nil.
var ErrNoStore = errors.New("pipeline: no record store configured")

// Options selects the optional steps and supplies their collaborators.
type Options struct {
	Store    *storage.Store
	Enricher *enrich.Engine
	Checker  *reachability.Checker
	Logger   *slog.Logger

	Verify    verify.Options
	Threshold float64

	// Enrich looks up low-confidence cited records and saves accepted results.
	Enrich bool
	// Formats lists converter formats to render after enrichment.
	Formats []string
	// CheckLinks probes URLs and DOIs of the cited records.
	CheckLinks bool
	// Reverify runs verification again after the store was updated.
	Reverify bool

	Now func() time.Time
}

func (o Options) threshold() float64 {
	if o.Threshold <= 0 {
		return confidence.DefaultThreshold
	}
	return o.Threshold
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return logging.Discard()
	}
	return o.Logger
}

// Citation is the quality view of one cited record.
type Citation struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Type              csl.Type `json:"type"`
	Confidence        float64  `json:"confidence"`
	NeedsVerification bool     `json:"needsVerification"`
}

// OutcomeStatus classifies a cited record after the run.
type OutcomeStatus string

const (
	OutcomeOK       OutcomeStatus = "ok"
	OutcomeDegraded OutcomeStatus = "degraded"
)

// Outcome explains a record's classification.
type Outcome struct {
	Status  OutcomeStatus `json:"status"`
	Reasons []string      `json:"reasons,omitempty"`
}

// Summary condenses the report.
type Summary struct {
	TotalCitations         int     `json:"totalCitations"`
	FoundCitations         int     `json:"foundCitations"`
	MissingCitations       int     `json:"missingCitations"`
	UnusedCitations        int     `json:"unusedCitations"`
	LowConfidenceCitations int     `json:"lowConfidenceCitations"`
	EnrichmentAttempted    int     `json:"enrichmentAttempted"`
	SuccessfullyEnriched   int     `json:"successfullyEnriched"`
	EnrichmentRate         float64 `json:"enrichmentRate"`
	StoreUpdated           int     `json:"storeUpdated"`
	Degraded               int     `json:"degraded"`
}

// Report is the consolidated result of Run.
type Report struct {
	RunID          string                    `json:"runId"`
	StartedAt      time.Time                 `json:"startedAt"`
	FinishedAt     time.Time                 `json:"finishedAt"`
	IsValid        bool                      `json:"isValid"`
	Verification   *verify.Report            `json:"verification"`
	Citations      []Citation                `json:"citations"`
	Enrichment     *enrich.Batch             `json:"enrichment,omitempty"`
	Conversions    map[string]convert.Result `json:"conversions,omitempty"`
	Reachability   *reachability.Batch       `json:"reachability,omitempty"`
	Reverification *verify.Report            `json:"reverification,omitempty"`
	Outcomes       map[string]Outcome        `json:"outcomes"`
	Summary        Summary                   `json:"summary"`
	Errors         []string                  `json:"errors"`
}

// Run executes the pipeline. Only a store that cannot be loaded is fatal;
// failures of later steps are recorded in Report.Errors.
func Run(ctx context.Context, text string, opts Options) (*Report, error) {
	if opts.Store == nil {
		return nil, ErrNoStore
	}
	log := opts.logger()

	records, err := opts.Store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}

	rep := &Report{
		RunID:     uuid.NewString(),
		StartedAt: opts.now().UTC(),
		Outcomes:  map[string]Outcome{},
		Errors:    []string{},
	}
	log.Info("pipeline started", "run", rep.RunID, "records", len(records))

	rep.Verification = Verify(text, records, opts)
	year := opts.now().Year()
	rep.Summary.LowConfidenceCitations = len(lowConfidence(rep.Verification, records, opts.threshold(), year))

	if opts.Enrich {
		records = rep.enrich(ctx, records, opts, year)
	}

	if len(opts.Formats) > 0 {
		rep.Conversions = convert.Batch(records, opts.Formats)
		for _, name := range sortedKeys(rep.Conversions) {
			if res := rep.Conversions[name]; !res.OK() {
				rep.Errors = append(rep.Errors, fmt.Sprintf("convert %s: %s", name, res.Error))
			}
		}
	}

	cited := citedRecords(rep.Verification, records)

	if opts.CheckLinks {
		if opts.Checker == nil {
			rep.Errors = append(rep.Errors, "link check requested but no checker configured")
		} else {
			batch := opts.Checker.CheckAll(ctx, cited)
			rep.Reachability = &batch
		}
	}

	if opts.Reverify {
		rep.Reverification = Verify(text, records, opts)
	}

	rep.Citations = citations(cited, opts.threshold(), year)
	rep.classify()
	rep.summarize()

	final := rep.Verification
	if rep.Reverification != nil {
		final = rep.Reverification
	}
	rep.IsValid = final.IsValid && (rep.Reachability == nil || rep.Reachability.IsValid)

	rep.FinishedAt = opts.now().UTC()
	log.Info("pipeline finished", "run", rep.RunID, "valid", rep.IsValid, "errors", len(rep.Errors))
	return rep, nil
}

// Verify is verify.Verify plus low_confidence_citation
// warnings for cited records that fall below the threshold.
func Verify(text string, records []csl.Record, opts Options) *verify.Report {
	r := verify.Verify(text, records, opts.Verify)
	year := opts.now().Year()
	for _, rec := range lowConfidence(r, records, opts.threshold(), year) {
		score := confidence.ScoreAt(rec, nil, year)
		r.AddIssue(verify.Issue{
			Type:      verify.IssueLowConfidence,
			Severity:  verify.SeverityWarning,
			Message:   fmt.Sprintf("Citation %q has low confidence (%.2f). Consider enriching with authoritative source.", rec.ID, score),
			Citations: []string{rec.ID},
		})
	}
	return r
}

// enrich looks up the low-confidence cited records and saves accepted
// results. The returned records reflect what is on disk.
func (rep *Report) enrich(ctx context.Context, records []csl.Record, opts Options, year int) []csl.Record {
	if opts.Enricher == nil {
		rep.Errors = append(rep.Errors, "enrichment requested but no enricher configured")
		return records
	}

	targets := lowConfidence(rep.Verification, records, opts.threshold(), year)
	batch := opts.Enricher.EnrichAll(ctx, targets)
	rep.Enrichment = &batch

	accepted := batch.Accepted()
	if len(accepted) == 0 {
		return records
	}

	updated := records
	for _, rec := range accepted {
		updated, _ = storage.Upsert(updated, rec, false)
	}
	if err := opts.Store.Save(updated); err != nil {
		opts.logger().Warn("saving enriched records failed", "error", err)
		rep.Errors = append(rep.Errors, fmt.Sprintf("saving enriched records: %v", err))
		return records
	}
	rep.Summary.StoreUpdated = len(accepted)
	return updated
}

// citedRecords returns the first record for each manuscript key that exists.
func citedRecords(r *verify.Report, records []csl.Record) []csl.Record {
	var out []csl.Record
	for _, key := range r.ManuscriptKeys {
		if i, ok := csl.FindByID(records, key); ok {
			out = append(out, records[i])
		}
	}
	return out
}

func lowConfidence(r *verify.Report, records []csl.Record, threshold float64, year int) []csl.Record {
	var out []csl.Record
	for _, rec := range citedRecords(r, records) {
		if confidence.NeedsManualVerification(confidence.ScoreAt(rec, nil, year), threshold) {
			out = append(out, rec)
		}
	}
	return out
}

func citations(cited []csl.Record, threshold float64, year int) []Citation {
	out := make([]Citation, 0, len(cited))
	for _, rec := range cited {
		score := confidence.ScoreAt(rec, nil, year)
		title := rec.Title
		if title == "" {
			title = "Untitled"
		}
		out = append(out, Citation{
			ID:                rec.ID,
			Title:             title,
			Type:              rec.Type,
			Confidence:        score,
			NeedsVerification: confidence.NeedsManualVerification(score, threshold),
		})
	}
	return out
}

// classify marks a cited record degraded when it still needs verification,
// its enrichment failed, or one of its links did not resolve.
func (rep *Report) classify() {
	for _, c := range rep.Citations {
		var reasons []string
		if c.NeedsVerification {
			reasons = append(reasons, fmt.Sprintf("confidence %.2f below threshold", c.Confidence))
		}
		if rep.Enrichment != nil {
			if res, ok := rep.Enrichment.Results[c.ID]; ok && res.Status == enrich.StatusFailed {
				reasons = append(reasons, "enrichment failed: "+res.Reason)
			}
		}
		if rep.Reachability != nil {
			if res, ok := rep.Reachability.Results[c.ID]; ok {
				if res.URL != nil && !res.URL.Accessible {
					reasons = append(reasons, "URL not accessible: "+res.URL.URL)
				}
				if res.DOI != nil && !res.DOI.Accessible {
					reasons = append(reasons, "DOI not resolvable: "+res.DOI.DOI)
				}
			}
		}

		out := Outcome{Status: OutcomeOK}
		if len(reasons) > 0 {
			out = Outcome{Status: OutcomeDegraded, Reasons: reasons}
		}
		rep.Outcomes[c.ID] = out
	}
}

func (rep *Report) summarize() {
	v := rep.Verification
	s := &rep.Summary
	s.TotalCitations = len(v.ManuscriptKeys)
	s.FoundCitations = len(v.ManuscriptKeys) - len(v.Missing)
	s.MissingCitations = len(v.Missing)
	s.UnusedCitations = len(v.Unused)

	if rep.Enrichment != nil {
		s.EnrichmentAttempted = rep.Enrichment.Summary.Total
		s.SuccessfullyEnriched = rep.Enrichment.Summary.Enriched
		if s.EnrichmentAttempted > 0 {
			s.EnrichmentRate = float64(s.SuccessfullyEnriched) / float64(s.EnrichmentAttempted) * 100
		}
	}

	for _, o := range rep.Outcomes {
		if o.Status == OutcomeDegraded {
			s.Degraded++
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
