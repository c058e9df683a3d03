// Package fetch pulls job postings from the Adzuna search API into JSONL landing files.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"skillpulse/internal/config"
	"skillpulse/internal/errors"
	"skillpulse/internal/ingest"
	"skillpulse/internal/observability"
	"skillpulse/internal/types"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// SourceName is stored as jobs_raw.source for Adzuna postings
const SourceName = "adzuna"

const maxResponseSize = 16 << 20

// Client calls the Adzuna job search API
type Client struct {
	cfg        config.AdzunaConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *SourceBreaker
	cache      Cache
	cacheTTL   time.Duration
	metrics    *observability.Metrics
	logger     *errors.Logger
	now        func() time.Time
}

// ClientOption customizes a Client
type ClientOption func(*Client)

// WithCache serves repeated page requests from c for ttl
func WithCache(c Cache, ttl time.Duration) ClientOption {
	return func(cl *Client) {
		cl.cache = c
		cl.cacheTTL = ttl
	}
}

// WithTransport replaces the HTTP transport, e.g. with an instrumented one
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(cl *Client) {
		cl.httpClient.Transport = rt
	}
}

// WithMetrics records request counts on m
func WithMetrics(m *observability.Metrics) ClientOption {
	return func(cl *Client) {
		cl.metrics = m
	}
}

// NewClient creates an Adzuna client with timeout, rate limit and circuit breaker applied
func NewClient(cfg config.AdzunaConfig, logger *errors.Logger, opts ...ClientOption) *Client {
	rps := cfg.RateLimit.RequestsPerSecond
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	burst := cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, burst),
		breaker:    NewSourceBreaker(SourceName, cfg.CircuitBreaker, logger),
		metrics:    &observability.Metrics{},
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HasCredentials reports whether both app id and app key are set
func (c *Client) HasCredentials() bool {
	return strings.TrimSpace(c.cfg.AppID) != "" && strings.TrimSpace(c.cfg.AppKey) != ""
}

// BreakerStats exposes the circuit breaker state
func (c *Client) BreakerStats() map[string]any {
	return c.breaker.GetStats()
}

// PageURL builds the search URL for one page. Credentials are left out when withCredentials is false.
func (c *Client) PageURL(role, country string, page int, withCredentials bool) string {
	q := url.Values{}
	if withCredentials {
		q.Set("app_id", c.cfg.AppID)
		q.Set("app_key", c.cfg.AppKey)
	}
	q.Set("results_per_page", strconv.Itoa(c.cfg.ResultsPerPage))
	q.Set("what", role)
	q.Set("content-type", "application/json")

	base := strings.TrimRight(c.cfg.BaseURL, "/")
	return fmt.Sprintf("%s/%s/search/%d?%s", base, url.PathEscape(strings.ToLower(country)), page, q.Encode())
}

// SearchPage fetches and decodes one result page for role in country.
// Failures are SourceUnavailable errors except missing credentials.
func (c *Client) SearchPage(ctx context.Context, role, country string, page int) ([]types.JobPosting, error) {
	if !c.HasCredentials() {
		return nil, errors.NewMissingCredentialsError("missing Adzuna credentials: set ADZUNA_APP_ID and ADZUNA_APP_KEY")
	}

	body, err := c.pageBody(ctx, role, country, page)
	c.metrics.RecordFetch(ctx, country, role, err)
	if err != nil {
		return nil, err
	}

	jobs, err := DecodeResults(body, role, country, c.now())
	if err != nil {
		return nil, errors.NewSourceUnavailableError(errors.ErrCodeSourceRequest, "failed to decode search response", err).
			WithContext("role", role).
			WithContext("country", country).
			WithContext("page", page)
	}
	return jobs, nil
}

func (c *Client) pageBody(ctx context.Context, role, country string, page int) ([]byte, error) {
	cacheKey := "adzuna:" + c.PageURL(role, country, page, false)
	if c.cache != nil {
		body, err := c.cache.Get(ctx, cacheKey)
		if err == nil {
			c.logDebug("cache hit for search page", "role", role, "country", country, "page", page)
			return body, nil
		}
		if !stderrors.Is(err, ErrCacheMiss) {
			c.logWarn("cache error for search page", "error", err)
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.NewSourceUnavailableError(errors.ErrCodeSourceRequest, "rate limiter wait aborted", err)
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.get(ctx, c.PageURL(role, country, page, true))
	})
	if err != nil {
		if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, errors.NewSourceUnavailableError(errors.ErrCodeCircuitOpen, "job source circuit breaker open", err).
				WithContext("role", role).
				WithContext("country", country).
				WithContext("page", page)
		}
		var appErr *errors.AppError
		if stderrors.As(err, &appErr) {
			return nil, appErr.WithContext("role", role).WithContext("country", country).WithContext("page", page)
		}
		return nil, errors.NewSourceUnavailableError(errors.ErrCodeSourceRequest, "job source request failed", err)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, cacheKey, body, c.cacheTTL); err != nil {
			c.logWarn("failed to cache search page", "error", err)
		}
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, errors.NewSourceUnavailableError(errors.ErrCodeSourceRequest, "creating request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		code := errors.ErrCodeSourceRequest
		var netErr interface{ Timeout() bool }
		if stderrors.As(err, &netErr) && netErr.Timeout() {
			code = errors.ErrCodeNetworkTimeout
		}
		// the error text carries the URL, which carries the key
		return nil, errors.NewSourceUnavailableError(code, "executing request", stderrors.New(redact(err.Error(), c.cfg.AppKey)))
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logWarn("failed to close response body", "error", cerr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.NewSourceUnavailableError(errors.ErrCodeSourceStatus,
			fmt.Sprintf("unexpected status code: %d", resp.StatusCode), nil).
			WithContext("status_code", resp.StatusCode).
			WithContext("body", strings.TrimSpace(string(snippet)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, errors.NewSourceUnavailableError(errors.ErrCodeSourceRequest, "reading response", err)
	}
	return body, nil
}

type searchResponse struct {
	Count   int               `json:"count"`
	Results []json.RawMessage `json:"results"`
}

type adzunaJob struct {
	ID      json.RawMessage `json:"id"`
	Title   string          `json:"title"`
	Company struct {
		DisplayName string `json:"display_name"`
	} `json:"company"`
	Location struct {
		DisplayName string `json:"display_name"`
	} `json:"location"`
	Created     string   `json:"created"`
	SalaryMin   *float64 `json:"salary_min"`
	SalaryMax   *float64 `json:"salary_max"`
	Description string   `json:"description"`
	RedirectURL string   `json:"redirect_url"`
}

// DecodeResults converts an Adzuna search response into postings tagged with the search role and country.
// Each posting keeps its original result object as raw payload.
func DecodeResults(body []byte, role, country string, fetchedAt time.Time) ([]types.JobPosting, error) {
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	jobs := make([]types.JobPosting, 0, len(resp.Results))
	for _, raw := range resp.Results {
		var r adzunaJob
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}

		job := types.JobPosting{
			ExternalID:    strings.Trim(string(bytes.TrimSpace(r.ID)), `"`),
			Source:        SourceName,
			Company:       strings.TrimSpace(r.Company.DisplayName),
			Title:         strings.TrimSpace(r.Title),
			LocationRaw:   strings.TrimSpace(r.Location.DisplayName),
			URL:           r.RedirectURL,
			Description:   r.Description,
			SalaryMin:     r.SalaryMin,
			SalaryMax:     r.SalaryMax,
			SearchRole:    role,
			SearchCountry: strings.ToLower(country),
			RawPayload:    raw,
			FetchedAt:     fetchedAt.UTC(),
		}
		if job.ExternalID == "" || job.ExternalID == "null" {
			job.ExternalID = ingest.ExternalIDForURL(job.URL)
		}
		if t, err := time.Parse(time.RFC3339, r.Created); err == nil {
			t = t.UTC()
			job.PostedAt = &t
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, url.QueryEscape(secret), "***")
}

func (c *Client) logDebug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Client) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
