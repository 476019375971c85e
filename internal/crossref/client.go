// Package crossref looks up work metadata by DOI in the CrossRef REST API and
// maps it into canonical citation records.
package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/edithatogo/citeref/internal/csl"
)

const (
	// BaseURL is the CrossRef REST API base URL.
	BaseURL = "https://api.crossref.org"

	// DefaultTimeout bounds a single lookup, retries included.
	DefaultTimeout = 10 * time.Second

	// DefaultRateLimit is requests per second; CrossRef asks clients to stay well below 50.
	DefaultRateLimit = 10.0

	// DefaultMaxRetries is the number of retries on HTTP 429.
	DefaultMaxRetries = 3

	// SourceName identifies CrossRef in enrichment provenance.
	SourceName = "crossref"

	// maxBodySize caps the payload read from a single response.
	maxBodySize = 4 << 20
)

// RetryBaseDelay is the first backoff on HTTP 429; it doubles on each attempt.
// Tests override this to avoid real sleeps.
var RetryBaseDelay = time.Second

// Client is a rate-limited CrossRef works client.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	mailto     string
	userAgent  string
	timeout    time.Duration
	maxRetries int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithMailto sets the contact address sent for CrossRef's polite pool.
func WithMailto(addr string) ClientOption {
	return func(c *Client) {
		c.mailto = addr
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithTimeout sets the per-lookup timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimit sets requests per second. Non-positive disables limiting.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithMaxRetries sets how often a 429 response is retried.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// NewClient creates a new CrossRef client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		baseURL:    BaseURL,
		userAgent:  "citeref/1.0",
		timeout:    DefaultTimeout,
		maxRetries: DefaultMaxRetries,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetWork fetches CrossRef metadata for a DOI.
func (c *Client) GetWork(ctx context.Context, doi string) (*Work, error) {
	doi = csl.NormalizeDOI(doi)
	if doi == "" {
		return nil, ErrEmptyDOI
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", ErrNetworkError, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.workURL(doi), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.agent())

	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	if err := checkHTTPErrors(resp, doi); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrNetworkError, err)
	}

	var envelope WorkResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: parsing work: %v", ErrInvalidResponse, err)
	}
	if envelope.Status != "ok" || envelope.Message == nil {
		status := envelope.Status
		if status == "" {
			status = "unknown status"
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidResponse, status)
	}

	return envelope.Message, nil
}

// LookupDOI fetches a DOI and maps the work into a record.
func (c *Client) LookupDOI(ctx context.Context, doi string) (csl.Record, error) {
	work, err := c.GetWork(ctx, doi)
	if err != nil {
		return csl.Record{}, err
	}
	return ToRecord(*work), nil
}

// Source returns the provenance name for records produced by this client.
func (c *Client) Source() string {
	return SourceName
}

func (c *Client) workURL(doi string) string {
	u := c.baseURL + "/works/" + url.PathEscape(doi)
	if c.mailto != "" {
		u += "?mailto=" + url.QueryEscape(c.mailto)
	}
	return u
}

func (c *Client) agent() string {
	if c.mailto != "" {
		return fmt.Sprintf("%s (mailto:%s)", c.userAgent, c.mailto)
	}
	return c.userAgent
}

// doWithRetry executes req and retries on HTTP 429 with exponential backoff.
// After exhausting retries the last 429 response is returned so the caller
// can classify it.
func (c *Client) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := c.httpClient.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusTooManyRequests || attempt >= c.maxRetries {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		backoff := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// checkHTTPErrors returns an error if the HTTP response indicates a problem.
func checkHTTPErrors(resp *http.Response, doi string) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, doi)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP %d", resp.StatusCode),
			DOI:        doi,
		}
	}
	return nil
}
