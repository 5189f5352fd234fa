// Package registry is the ClinicalTrials.gov v2 adapter: it searches and
// fetches study records, enforces a minimum spacing between outbound
// requests, and retries transient failures with exponential backoff.
package registry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/clinimatch/clinimatch/internal/model"
	"github.com/clinimatch/clinimatch/internal/resilience"
)

const (
	defaultBaseURL = "https://clinicaltrials.gov/api/v2"
	// maxPageSize is the registry's hard page-size ceiling.
	maxPageSize = 1000
)

// Client defines the trial source operations the matcher depends on.
type Client interface {
	// Search returns studies matching the profile's conditions and country.
	// Returns ErrNoTrials when the registry has nothing for the query.
	Search(ctx context.Context, params model.SearchParams, maxResults int) ([]model.RawTrial, error)

	// GetByNCTID fetches a single study. Returns ErrNoTrials when absent.
	GetByNCTID(ctx context.Context, nctID string) (*model.RawTrial, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithUserAgent overrides the default User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

// WithMaxRetries overrides the retry budget for transient failures.
func WithMaxRetries(n int) Option {
	return func(c *httpClient) {
		c.maxRetries = n
	}
}

type httpClient struct {
	baseURL    string
	userAgent  string
	maxRetries int
	http       *http.Client

	// limiter enforces 1 req/s spacing toward the public registry.
	limiter *rate.Limiter
}

// NewClient creates a ClinicalTrials.gov API client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:    defaultBaseURL,
		userAgent:  "CliniMatch/1.0 (Clinical Trial Matching Service)",
		maxRetries: 3,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, params model.SearchParams, maxResults int) ([]model.RawTrial, error) {
	if maxResults <= 0 {
		maxResults = 50
	}
	q := url.Values{}
	q.Set("format", "json")
	q.Set("markupFormat", "markdown")
	q.Set("countTotal", "true")
	q.Set("pageSize", strconv.Itoa(min(maxResults, maxPageSize)))

	if len(params.Conditions) > 0 {
		quoted := make([]string, len(params.Conditions))
		for i, cond := range params.Conditions {
			quoted[i] = `"` + cond + `"`
		}
		// OR across conditions for broader recall; the relevance filter
		// narrows afterwards.
		q.Set("query.cond", strings.Join(quoted, " OR "))
	}

	// Country only; state/city priority is the filter's job.
	if params.Location.Country != "" {
		q.Set("query.locn", params.Location.Country)
	}

	body, err := c.get(ctx, "/studies", q)
	if err != nil {
		return nil, err
	}

	var payload studiesResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &APIError{Message: "invalid JSON response: " + err.Error()}
	}

	if len(payload.Studies) == 0 {
		return nil, ErrNoTrials
	}

	trials := make([]model.RawTrial, 0, len(payload.Studies))
	for _, study := range payload.Studies {
		trial, parseErr := parseStudy(study)
		if parseErr != nil {
			// A malformed record must not abort the batch.
			zap.L().Warn("registry: skipping unparseable study", zap.Error(parseErr))
			continue
		}
		if params.Age > 0 && !ageEligible(trial.EligibilityCriteria, params.Age) {
			continue
		}
		trials = append(trials, *trial)
	}

	zap.L().Info("registry: search complete",
		zap.Int("studies", len(payload.Studies)),
		zap.Int("parsed", len(trials)),
	)

	return trials, nil
}

func (c *httpClient) GetByNCTID(ctx context.Context, nctID string) (*model.RawTrial, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("markupFormat", "markdown")
	q.Set("query.id", nctID)

	body, err := c.get(ctx, "/studies", q)
	if err != nil {
		return nil, err
	}

	var payload studiesResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &APIError{Message: "invalid JSON response: " + err.Error()}
	}

	if len(payload.Studies) == 0 {
		return nil, ErrNoTrials
	}

	trial, err := parseStudy(payload.Studies[0])
	if err != nil {
		return nil, eris.Wrapf(err, "registry: parse study %s", nctID)
	}
	return trial, nil
}

// get performs a rate-limited GET with retry on 429/5xx/network errors.
func (c *httpClient) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	cfg := resilience.RetryConfig{
		MaxAttempts: c.maxRetries,
		RetryAfter:  RetryAfterOf,
		OnRetry:     resilience.RetryLogger("clinicaltrials", path),
	}

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "registry: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
		if err != nil {
			return nil, eris.Wrap(err, "registry: create request")
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "registry: send request")
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "registry: read response")
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			retryAfter := 60 * time.Second
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, parseErr := strconv.Atoi(ra); parseErr == nil {
					retryAfter = time.Duration(secs) * time.Second
				}
			}
			return nil, resilience.NewTransientError(&RateLimitError{RetryAfter: retryAfter}, resp.StatusCode)
		case resp.StatusCode >= 500:
			return nil, resilience.NewTransientError(
				&APIError{Message: "server error", StatusCode: resp.StatusCode},
				resp.StatusCode,
			)
		default:
			return nil, &APIError{
				Message:    "request failed: " + strings.TrimSpace(string(body[:min(len(body), 200)])),
				StatusCode: resp.StatusCode,
			}
		}
	})
}
