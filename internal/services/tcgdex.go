package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/metrics"
)

const (
	DefaultTCGdexBaseURL     = "https://api.tcgdex.net/v2/en"
	defaultTCGdexTimeout     = 30 * time.Second
	defaultMaxAttempts       = 3
	defaultRetryAfter        = 5 * time.Second
	defaultMaxRateLimitWaits = 10
	maxResponseBytes         = 16 << 20
)

// TCGdexCardCount is the cardCount object on set payloads. Summaries only
// carry Total and Official.
type TCGdexCardCount struct {
	Total    int `json:"total"`
	Official int `json:"official"`
	Holo     int `json:"holo,omitempty"`
	Reverse  int `json:"reverse,omitempty"`
	Normal   int `json:"normal,omitempty"`
	FirstEd  int `json:"firstEd,omitempty"`
}

// TCGdexSetSummary is one entry of GET /sets
type TCGdexSetSummary struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Logo      string          `json:"logo,omitempty"`
	Symbol    string          `json:"symbol,omitempty"`
	CardCount TCGdexCardCount `json:"cardCount"`
}

type TCGdexSerie struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TCGdexSetDetail is the body of GET /sets/{id}
type TCGdexSetDetail struct {
	TCGdexSetSummary
	Serie       *TCGdexSerie        `json:"serie,omitempty"`
	ReleaseDate string              `json:"releaseDate,omitempty"`
	Cards       []TCGdexCardSummary `json:"cards"`
}

// TCGdexCardSummary is a card as embedded in a set detail
type TCGdexCardSummary struct {
	ID      string `json:"id"`
	LocalID string `json:"localId"`
	Name    string `json:"name"`
	Image   string `json:"image,omitempty"`
}

type TCGdexVariants struct {
	FirstEdition bool `json:"firstEdition"`
	Holo         bool `json:"holo"`
	Normal       bool `json:"normal"`
	Reverse      bool `json:"reverse"`
	WPromo       bool `json:"wPromo"`
}

type TCGdexCardSet struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	CardCount TCGdexCardCount `json:"cardCount"`
}

// TCGdexCard is the body of GET /cards/{id}. Raw keeps the exact bytes
// received so they can be stored as the card's payload snapshot.
type TCGdexCard struct {
	ID          string          `json:"id"`
	LocalID     string          `json:"localId"`
	Name        string          `json:"name"`
	Image       string          `json:"image,omitempty"`
	Category    string          `json:"category"`
	Rarity      string          `json:"rarity,omitempty"`
	Illustrator string          `json:"illustrator,omitempty"`
	HP          int             `json:"hp,omitempty"`
	Types       []string        `json:"types,omitempty"`
	Stage       string          `json:"stage,omitempty"`
	DexID       []int           `json:"dexId,omitempty"`
	Variants    *TCGdexVariants `json:"variants,omitempty"`
	Set         TCGdexCardSet   `json:"set"`

	Raw json.RawMessage `json:"-"`
}

// HTTPStatusError is returned for any non-2xx response that is not retried
// as a rate limit.
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, strings.TrimPrefix(e.Status, strconv.Itoa(e.StatusCode)+" "))
}

// TCGdexConfig tunes the client. Zero values fall back to defaults.
type TCGdexConfig struct {
	BaseURL           string
	Timeout           time.Duration
	MaxAttempts       int
	DefaultRetryAfter time.Duration
	MaxRateLimitWaits int
}

// TCGdexClient reads sets and cards from the TCGdex REST API. Every request
// goes through the shared Throttle.
type TCGdexClient struct {
	baseURL           string
	httpClient        *http.Client
	throttle          *Throttle
	maxAttempts       int
	defaultRetryAfter time.Duration
	maxRateLimitWaits int
	maxBodyBytes      int64
	sleep             func(ctx context.Context, d time.Duration) error
	logger            *zap.Logger
}

func NewTCGdexClient(cfg TCGdexConfig, throttle *Throttle, logger *zap.Logger) *TCGdexClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTCGdexBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTCGdexTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.DefaultRetryAfter <= 0 {
		cfg.DefaultRetryAfter = defaultRetryAfter
	}
	if cfg.MaxRateLimitWaits <= 0 {
		cfg.MaxRateLimitWaits = defaultMaxRateLimitWaits
	}
	if throttle == nil {
		throttle = NewThrottle(DefaultMinRequestInterval)
	}
	return &TCGdexClient{
		baseURL:           strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:        &http.Client{Timeout: cfg.Timeout},
		throttle:          throttle,
		maxAttempts:       cfg.MaxAttempts,
		defaultRetryAfter: cfg.DefaultRetryAfter,
		maxRateLimitWaits: cfg.MaxRateLimitWaits,
		maxBodyBytes:      maxResponseBytes,
		sleep:             sleepContext,
		logger:            logger.Named("tcgdex"),
	}
}

// FetchSets lists every set summary
func (c *TCGdexClient) FetchSets(ctx context.Context) ([]TCGdexSetSummary, error) {
	body, err := c.fetchWithRetry(ctx, "sets", c.baseURL+"/sets")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sets: %w", err)
	}
	var sets []TCGdexSetSummary
	if err := json.Unmarshal(body, &sets); err != nil {
		return nil, fmt.Errorf("failed to decode sets: %w", err)
	}
	return sets, nil
}

// FetchSet returns one set with its card summaries
func (c *TCGdexClient) FetchSet(ctx context.Context, id string) (*TCGdexSetDetail, error) {
	body, err := c.fetchWithRetry(ctx, "set", c.baseURL+"/sets/"+url.PathEscape(id))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch set %s: %w", id, err)
	}
	var set TCGdexSetDetail
	if err := json.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("failed to decode set %s: %w", id, err)
	}
	return &set, nil
}

// FetchCard returns the full card record
func (c *TCGdexClient) FetchCard(ctx context.Context, id string) (*TCGdexCard, error) {
	body, err := c.fetchWithRetry(ctx, "card", c.baseURL+"/cards/"+url.PathEscape(id))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch card %s: %w", id, err)
	}
	var card TCGdexCard
	if err := json.Unmarshal(body, &card); err != nil {
		return nil, fmt.Errorf("failed to decode card %s: %w", id, err)
	}
	card.Raw = body
	return &card, nil
}

// fetchWithRetry GETs reqURL until it succeeds or attempts run out. A 429
// response waits for Retry-After and repeats the same attempt.
func (c *TCGdexClient) fetchWithRetry(ctx context.Context, endpoint, reqURL string) ([]byte, error) {
	rateLimitWaits := 0
	for attempt := 1; ; {
		if err := c.throttle.Wait(ctx); err != nil {
			return nil, err
		}

		body, retryAfter, err := c.get(ctx, reqURL)
		if retryAfter != nil {
			rateLimitWaits++
			if rateLimitWaits > c.maxRateLimitWaits {
				metrics.TCGdexRequestsTotal.WithLabelValues(endpoint, "error").Inc()
				return nil, fmt.Errorf("gave up after %d rate limit waits: %w", c.maxRateLimitWaits, err)
			}
			metrics.TCGdexRequestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
			metrics.TCGdexRateLimitWaitSeconds.Add(retryAfter.Seconds())
			c.logger.Warn("Rate limited, waiting",
				zap.String("url", reqURL), zap.Duration("retry_after", *retryAfter))
			if err := c.sleep(ctx, *retryAfter); err != nil {
				return nil, err
			}
			continue
		}
		rateLimitWaits = 0

		if err == nil {
			metrics.TCGdexRequestsTotal.WithLabelValues(endpoint, "ok").Inc()
			return body, nil
		}
		metrics.TCGdexRequestsTotal.WithLabelValues(endpoint, "error").Inc()

		if attempt >= c.maxAttempts || ctx.Err() != nil {
			return nil, err
		}

		delay := time.Duration(1<<attempt) * time.Second
		c.logger.Warn("Request failed, retrying",
			zap.String("url", reqURL), zap.Int("attempt", attempt),
			zap.Duration("delay", delay), zap.Error(err))
		metrics.TCGdexRetriesTotal.Inc()
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
		attempt++
	}
}

// get performs one request. A non-nil retryAfter means the peer answered 429.
func (c *TCGdexClient) get(ctx context.Context, reqURL string) ([]byte, *time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	statusErr := &HTTPStatusError{URL: reqURL, StatusCode: resp.StatusCode, Status: resp.Status}

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := c.parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, &wait, statusErr
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, statusErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		return nil, nil, fmt.Errorf("response from %s exceeds %d bytes", reqURL, c.maxBodyBytes)
	}
	if !json.Valid(body) {
		return nil, nil, fmt.Errorf("invalid JSON response from %s", reqURL)
	}
	return body, nil, nil
}

// parseRetryAfter reads the header as whole seconds
func (c *TCGdexClient) parseRetryAfter(header string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || seconds < 0 {
		return c.defaultRetryAfter
	}
	return time.Duration(seconds) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
