// Package reachability probes record URLs and DOIs with HEAD requests.
package reachability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edithatogo/citeref/internal/csl"
	"github.com/edithatogo/citeref/internal/logging"
)

const (
	// DefaultTimeout bounds a single probe.
	DefaultTimeout = 10 * time.Second

	// DefaultConcurrency bounds concurrent records in CheckAll.
	DefaultConcurrency = 4
)

// Result is the outcome of probing one URL.
type Result struct {
	URL         string `json:"url"`
	Accessible  bool   `json:"accessible"`
	StatusCode  int    `json:"statusCode,omitempty"`
	Redirected  bool   `json:"redirected,omitempty"`
	RedirectURL string `json:"redirectUrl,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Error       string `json:"error,omitempty"`
}

// DOIResult is a probe of a DOI resolved through the DOI resolver.
type DOIResult struct {
	DOI    string `json:"doi"`
	DOIURL string `json:"doiUrl"`
	Result
}

// Issue is a reachability problem raised under a Fail* option.
type Issue struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// RecordResult groups the probes for one record.
type RecordResult struct {
	ID     string     `json:"id"`
	Title  string     `json:"title"`
	URL    *Result    `json:"urlVerification"`
	DOI    *DOIResult `json:"doiVerification"`
	Issues []Issue    `json:"issues"`
}

// Summary counts probe outcomes across a batch.
type Summary struct {
	TotalCitations      int `json:"totalCitations"`
	CitationsWithURLs   int `json:"citationsWithUrls"`
	CitationsWithDOIs   int `json:"citationsWithDois"`
	AccessibleURLs      int `json:"accessibleUrls"`
	AccessibleDOIs      int `json:"accessibleDois"`
	InaccessibleURLs    int `json:"inaccessibleUrls"`
	InaccessibleDOIs    int `json:"inaccessibleDois"`
	CitationsWithIssues int `json:"citationsWithIssues"`
	TotalIssues         int `json:"totalIssues"`
}

// Batch holds CheckAll results keyed by record id.
type Batch struct {
	Results map[string]RecordResult `json:"results"`
	Summary Summary                 `json:"summary"`
	IsValid bool                    `json:"isValid"`
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

// Checker issues HEAD probes.
type Checker struct {
	httpClient  *http.Client
	logger      *slog.Logger
	timeout     time.Duration
	concurrency int
	userAgent   string
	failOnURL   bool
	failOnDOI   bool
}

// Option configures a Checker.
type Option func(*Checker)

// WithHTTPClient sets a custom HTTP client. Its redirect policy is replaced so
// that redirects are reported rather than followed. A nil client is ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Checker) {
		if hc == nil {
			return
		}
		clone := *hc
		c.httpClient = &clone
	}
}

// WithTimeout sets the per-probe timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithConcurrency sets how many records are probed at once.
func WithConcurrency(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Checker) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Checker) {
		c.userAgent = ua
	}
}

// FailOnInaccessibleURL raises an error issue for each unreachable URL.
func FailOnInaccessibleURL(fail bool) Option {
	return func(c *Checker) {
		c.failOnURL = fail
	}
}

// FailOnInvalidDOI raises an error issue for each unresolvable DOI.
func FailOnInvalidDOI(fail bool) Option {
	return func(c *Checker) {
		c.failOnDOI = fail
	}
}

// NewChecker creates a Checker.
func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		httpClient:  &http.Client{},
		logger:      logging.Discard(),
		timeout:     DefaultTimeout,
		concurrency: DefaultConcurrency,
		userAgent:   "citeref/1.0",
	}

	for _, opt := range opts {
		opt(c)
	}

	c.httpClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return c
}

// Check probes rawURL. It never returns an error; failures mark the result
// inaccessible with a reason.
func (c *Checker) Check(ctx context.Context, rawURL string) Result {
	res := Result{URL: rawURL}

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		res.Error = fmt.Sprintf("invalid URL: %s", rawURL)
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u.String(), nil)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			res.Error = "Request timed out"
		} else {
			res.Error = err.Error()
		}
		return res
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	res.StatusCode = resp.StatusCode
	res.Accessible = resp.StatusCode >= 200 && resp.StatusCode < 400
	res.ContentType = resp.Header.Get("Content-Type")
	if loc := resp.Header.Get("Location"); loc != "" {
		res.Redirected = true
		res.RedirectURL = loc
	}
	return res
}

// CheckDOI resolves doi to a URL and probes it.
func (c *Checker) CheckDOI(ctx context.Context, doi string) DOIResult {
	target := csl.DOIURL(doi)
	return DOIResult{DOI: doi, DOIURL: target, Result: c.Check(ctx, target)}
}

// CheckRecord probes the URL and DOI of rec, whichever are present.
func (c *Checker) CheckRecord(ctx context.Context, rec csl.Record) RecordResult {
	title := rec.Title
	if title == "" {
		title = "Untitled"
	}
	rr := RecordResult{ID: rec.ID, Title: title}

	if rec.URL != "" {
		res := c.Check(ctx, rec.URL)
		rr.URL = &res
		if !res.Accessible {
			c.logger.Warn("url not accessible", "id", rec.ID, "url", rec.URL, "status", res.StatusCode, "error", res.Error)
			if c.failOnURL {
				rr.Issues = append(rr.Issues, Issue{
					Type:     "inaccessible_url",
					Severity: "error",
					Message:  "URL is not accessible: " + rec.URL,
				})
			}
		}
	}

	if rec.DOI != "" {
		res := c.CheckDOI(ctx, rec.DOI)
		rr.DOI = &res
		if !res.Accessible {
			c.logger.Warn("doi not accessible", "id", rec.ID, "doi", rec.DOI, "status", res.StatusCode, "error", res.Error)
			if c.failOnDOI {
				rr.Issues = append(rr.Issues, Issue{
					Type:     "invalid_doi",
					Severity: "error",
					Message:  "DOI is not accessible: " + rec.DOI,
				})
			}
		}
	}

	return rr
}

// CheckAll probes records concurrently and keys the results by id.
// When ids repeat, the first record with that id is probed.
func (c *Checker) CheckAll(ctx context.Context, records []csl.Record) Batch {
	var (
		mu      sync.Mutex
		results = make(map[string]RecordResult, len(records))
		seen    = make(map[string]bool, len(records))
	)

	g := new(errgroup.Group)
	g.SetLimit(c.concurrency)

	for _, rec := range records {
		if seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true

		rec := rec
		g.Go(func() error {
			rr := c.CheckRecord(ctx, rec)
			mu.Lock()
			results[rec.ID] = rr
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	batch := Batch{Results: results, Summary: summarize(results)}
	batch.IsValid = true
	if c.failOnURL || c.failOnDOI {
		batch.IsValid = batch.Summary.InaccessibleURLs == 0 && batch.Summary.InaccessibleDOIs == 0
	}
	return batch
}

func summarize(results map[string]RecordResult) Summary {
	s := Summary{TotalCitations: len(results)}
	for _, r := range results {
		if r.URL != nil {
			s.CitationsWithURLs++
			if r.URL.Accessible {
				s.AccessibleURLs++
			} else {
				s.InaccessibleURLs++
			}
		}
		if r.DOI != nil {
			s.CitationsWithDOIs++
			if r.DOI.Accessible {
				s.AccessibleDOIs++
			} else {
				s.InaccessibleDOIs++
			}
		}
		if len(r.Issues) > 0 {
			s.CitationsWithIssues++
		}
		s.TotalIssues += len(r.Issues)
	}
	return s
}
