package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edithatogo/citeref/internal/csl"
	"github.com/edithatogo/citeref/internal/enrich"
	"github.com/edithatogo/citeref/internal/reachability"
	"github.com/edithatogo/citeref/internal/storage"
	"github.com/edithatogo/citeref/internal/verify"
)

var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type fakeLookuper struct {
	records map[string]csl.Record
}

func (f fakeLookuper) LookupDOI(_ context.Context, doi string) (csl.Record, error) {
	if r, ok := f.records[doi]; ok {
		return r, nil
	}
	return csl.Record{}, errors.New("not found")
}

func (fakeLookuper) Source() string { return "fake" }

func newStore(t *testing.T, records []csl.Record) *storage.Store {
	t.Helper()
	s := storage.NewStore(filepath.Join(t.TempDir(), "refs.json"))
	require.NoError(t, s.Save(records))
	return s
}

func fixtureRecords() []csl.Record {
	return []csl.Record{
		{ID: "low", Type: csl.TypeArticleJournal, DOI: "10.1/low"},
		{ID: "nodoi", Type: csl.TypeBook, Title: "Only Title"},
		{
			ID:     "good",
			Type:   csl.TypeArticleJournal,
			Title:  "A Complete Record",
			Author: []csl.Name{{Family: "Lovelace", Given: "Ada"}},
			Issued: csl.NewDate(2019),
			DOI:    "10.1/good",
			URL:    "https://example.org/good",
		},
		{ID: "unused1", Type: csl.TypeReport, Title: "Never cited"},
	}
}

func authority() fakeLookuper {
	return fakeLookuper{records: map[string]csl.Record{
		"10.1/low": {
			ID:             "10.1/low",
			Type:           csl.TypeArticleJournal,
			Title:          "Authority Title",
			Author:         []csl.Name{{Family: "Hopper", Given: "Grace"}},
			ContainerTitle: "Journal of Records",
			Issued:         csl.NewDate(2020, 5),
			DOI:            "10.1/low",
			Volume:         "7",
		},
	}}
}

const manuscriptText = "See [low], [nodoi] and [good]. Also [ghost] and [low] again."

func TestRun_VerifyOnly(t *testing.T) {
	store := newStore(t, fixtureRecords())

	rep, err := Run(context.Background(), manuscriptText, Options{Store: store, Now: clock})
	require.NoError(t, err)

	assert.NotEmpty(t, rep.RunID)
	assert.False(t, rep.IsValid)
	assert.Equal(t, []string{"ghost"}, rep.Verification.Missing)
	assert.Equal(t, []string{"unused1"}, rep.Verification.Unused)
	assert.Nil(t, rep.Enrichment)
	assert.Nil(t, rep.Reachability)
	assert.Nil(t, rep.Reverification)
	assert.Empty(t, rep.Errors)

	require.Len(t, rep.Citations, 3)
	assert.Equal(t, "low", rep.Citations[0].ID)
	assert.Equal(t, "Untitled", rep.Citations[0].Title)

	// A DOI alone scores just above the default threshold.
	assert.Equal(t, 1, rep.Summary.LowConfidenceCitations)
	assert.Equal(t, OutcomeDegraded, rep.Outcomes["nodoi"].Status)
	assert.Equal(t, OutcomeOK, rep.Outcomes["good"].Status)

	assert.Equal(t, 4, rep.Summary.TotalCitations)
	assert.Equal(t, 3, rep.Summary.FoundCitations)
	assert.Equal(t, 1, rep.Summary.MissingCitations)
}

func TestRun_LowConfidenceIssues(t *testing.T) {
	store := newStore(t, fixtureRecords())

	rep, err := Run(context.Background(), manuscriptText, Options{Store: store, Now: clock, Threshold: 0.9})
	require.NoError(t, err)

	var flagged []string
	for _, is := range rep.Verification.Issues {
		if is.Type == verify.IssueLowConfidence {
			assert.Equal(t, verify.SeverityWarning, is.Severity)
			flagged = append(flagged, is.Citations...)
		}
	}
	assert.ElementsMatch(t, []string{"low", "nodoi"}, flagged)
	assert.Equal(t, 2, rep.Summary.LowConfidenceCitations)
}

func TestRun_EnrichSavesAcceptedRecords(t *testing.T) {
	store := newStore(t, fixtureRecords())
	engine := enrich.NewEngine(authority(), enrich.WithClock(clock), enrich.WithThreshold(0.9))

	rep, err := Run(context.Background(), manuscriptText, Options{
		Store:     store,
		Enricher:  engine,
		Threshold: 0.9,
		Enrich:    true,
		Reverify:  true,
		Now:       clock,
	})
	require.NoError(t, err)
	require.NotNil(t, rep.Enrichment)

	assert.Equal(t, 2, rep.Enrichment.Summary.Total)
	assert.Equal(t, 1, rep.Enrichment.Summary.Enriched)
	assert.Equal(t, 1, rep.Enrichment.Summary.Skipped)
	assert.Equal(t, enrich.StatusSkipped, rep.Enrichment.Results["nodoi"].Status)
	assert.Equal(t, 1, rep.Summary.StoreUpdated)
	assert.InDelta(t, 50.0, rep.Summary.EnrichmentRate, 1e-9)

	saved, ok, err := store.Get("low")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Authority Title", saved.Title)
	assert.Equal(t, "fake", saved.EnrichedBy)
	require.NotNil(t, saved.EnrichedAt)
	assert.True(t, saved.EnrichedAt.Equal(fixedNow))

	all, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, all, 4)

	assert.Equal(t, OutcomeOK, rep.Outcomes["low"].Status)
	assert.Equal(t, OutcomeDegraded, rep.Outcomes["nodoi"].Status)

	require.NotNil(t, rep.Reverification)
	var flagged []string
	for _, is := range rep.Reverification.Issues {
		if is.Type == verify.IssueLowConfidence {
			flagged = append(flagged, is.Citations...)
		}
	}
	assert.Equal(t, []string{"nodoi"}, flagged)
}

func TestRun_EnrichWithoutEnricher(t *testing.T) {
	store := newStore(t, fixtureRecords())

	rep, err := Run(context.Background(), manuscriptText, Options{Store: store, Enrich: true, Now: clock})
	require.NoError(t, err)
	assert.Nil(t, rep.Enrichment)
	require.Len(t, rep.Errors, 1)
	assert.Contains(t, rep.Errors[0], "no enricher")
}

func TestRun_Conversions(t *testing.T) {
	store := newStore(t, fixtureRecords())

	rep, err := Run(context.Background(), manuscriptText, Options{
		Store:   store,
		Formats: []string{"ris", "bogus"},
		Now:     clock,
	})
	require.NoError(t, err)

	require.Len(t, rep.Conversions, 2)
	assert.True(t, rep.Conversions["ris"].OK())
	assert.Contains(t, rep.Conversions["ris"].Content, "ID  - unused1")
	assert.False(t, rep.Conversions["bogus"].OK())
	require.Len(t, rep.Errors, 1)
	assert.True(t, strings.HasPrefix(rep.Errors[0], "convert bogus"))
}

func TestRun_CheckLinks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := newStore(t, []csl.Record{
		{ID: "site", Type: csl.TypeWebpage, Title: "Live page", URL: srv.URL + "/ok"},
		{ID: "dead", Type: csl.TypeWebpage, Title: "Gone page", URL: srv.URL + "/missing"},
		{ID: "uncited", Type: csl.TypeWebpage, Title: "Not probed", URL: srv.URL + "/missing"},
	})
	checker := reachability.NewChecker(
		reachability.WithHTTPClient(srv.Client()),
		reachability.FailOnInaccessibleURL(true),
	)

	rep, err := Run(context.Background(), "[site] [dead]", Options{
		Store:      store,
		Checker:    checker,
		CheckLinks: true,
		Threshold:  0.1,
		Now:        clock,
	})
	require.NoError(t, err)
	require.NotNil(t, rep.Reachability)

	assert.Len(t, rep.Reachability.Results, 2)
	assert.NotContains(t, rep.Reachability.Results, "uncited")
	assert.True(t, rep.Reachability.Results["site"].URL.Accessible)
	assert.False(t, rep.Reachability.Results["dead"].URL.Accessible)
	assert.False(t, rep.Reachability.IsValid)

	assert.True(t, rep.Verification.IsValid)
	assert.False(t, rep.IsValid)
	assert.Equal(t, OutcomeOK, rep.Outcomes["site"].Status)
	assert.Equal(t, OutcomeDegraded, rep.Outcomes["dead"].Status)
	assert.Equal(t, 1, rep.Summary.Degraded)
}

func TestRun_StoreErrors(t *testing.T) {
	_, err := Run(context.Background(), "[a]", Options{})
	assert.ErrorIs(t, err, ErrNoStore)

	path := filepath.Join(t.TempDir(), "refs.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"id": "not-an-array"}`), 0644))

	rep, err := Run(context.Background(), "[a]", Options{Store: storage.NewStore(path)})
	assert.Error(t, err)
	assert.Nil(t, rep)
}

func TestRun_MissingStoreIsEmpty(t *testing.T) {
	store := storage.NewStore(filepath.Join(t.TempDir(), "absent.json"))

	rep, err := Run(context.Background(), "[a]", Options{Store: store, Now: clock})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, rep.Verification.Missing)
	assert.Empty(t, rep.Citations)
	assert.Empty(t, rep.Outcomes)
}
