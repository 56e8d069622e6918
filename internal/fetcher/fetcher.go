// Package fetcher downloads remote corpora over HTTP with pacing, retries and
// robots.txt compliance.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/firefly/ngram-counter/internal/logger"
)

const (
	// UserAgent identifies the counter to servers
	UserAgent = "NgramCounter/1.0"

	// DefaultTimeout for HTTP requests
	DefaultTimeout = 30 * time.Second

	// MaxRetries for failed requests
	MaxRetries = 3

	// BackoffBase for exponential backoff
	BackoffBase = time.Second

	maxBackoff = 30 * time.Second
)

// ErrDisallowed is returned when robots.txt forbids fetching a URL
var ErrDisallowed = errors.New("disallowed by robots.txt")

// Fetcher downloads corpus documents
type Fetcher struct {
	client        *http.Client
	rateLimiter   *rate.Limiter
	robots        *RobotsPolicy
	log           *log.Logger
	userRateLimit float64 // 0 means no limit unless robots.txt asks for a crawl delay
	backoffBase   time.Duration
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithClient replaces the HTTP client
func WithClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithLogger sets the logger used for progress messages
func WithLogger(l *log.Logger) Option {
	return func(f *Fetcher) {
		f.log = l
	}
}

// WithBackoffBase changes the first retry delay
func WithBackoffBase(d time.Duration) Option {
	return func(f *Fetcher) {
		f.backoffBase = d
	}
}

// New creates a Fetcher limited to requestsPerSecond (0 = unlimited)
func New(requestsPerSecond float64, opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		rateLimiter:   newLimiter(requestsPerSecond),
		log:           logger.Discard(),
		userRateLimit: requestsPerSecond,
		backoffBase:   BackoffBase,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func newLimiter(requestsPerSecond float64) *rate.Limiter {
	if requestsPerSecond > 0 {
		return rate.NewLimiter(rate.Limit(requestsPerSecond), int(requestsPerSecond)+1)
	}
	return rate.NewLimiter(rate.Inf, 0)
}

// LoadRobotsTxt fetches and applies robots.txt for the host of rawURL. A
// missing robots.txt allows everything.
func (f *Fetcher) LoadRobotsTxt(ctx context.Context, rawURL string) error {
	robotsLocation, err := robotsURL(rawURL)
	if err != nil {
		return err
	}

	f.log.Debug("fetching robots.txt", "url", robotsLocation)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsLocation, nil)
	if err != nil {
		return fmt.Errorf("creating robots.txt request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching robots.txt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		f.log.Debug("no robots.txt, all URLs allowed", "url", robotsLocation)
		f.robots = &RobotsPolicy{}
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("robots.txt returned status %d", resp.StatusCode)
	}

	policy, err := parseRobotsTxt(resp.Body)
	if err != nil {
		return fmt.Errorf("parsing robots.txt: %w", err)
	}
	f.robots = policy

	if f.userRateLimit == 0 {
		if delay := policy.CrawlDelay(UserAgent); delay > 0 {
			f.rateLimiter = rate.NewLimiter(rate.Every(delay), 1)
			f.log.Debug("applying robots.txt crawl delay", "delay", delay)
		}
	}

	f.log.Debug("loaded robots.txt", "groups", len(policy.rules))
	return nil
}

// IsAllowed checks rawURL against the loaded robots.txt
func (f *Fetcher) IsAllowed(rawURL string) bool {
	return f.robots.IsAllowed(rawURL, UserAgent)
}

// FetchURL downloads rawURL, retrying server errors with exponential backoff.
// The caller closes the returned body.
func (f *Fetcher) FetchURL(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if !f.IsAllowed(rawURL) {
		return nil, fmt.Errorf("%s: %w", rawURL, ErrDisallowed)
	}

	var lastErr error

	for attempt := 0; attempt < MaxRetries; attempt++ {
		if err := f.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		if attempt > 0 {
			f.log.Debug("retrying", "url", rawURL, "attempt", attempt+1, "of", MaxRetries)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("User-Agent", UserAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

		resp, err := f.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			if err := f.backoff(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode >= 400 {
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))

			// client errors are final, server errors are retried
			if resp.StatusCode < 500 {
				return nil, lastErr
			}
			if err := f.backoff(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}

		f.log.Debug("fetched corpus", "url", rawURL, "content_type", resp.Header.Get("Content-Type"))
		return resp.Body, nil
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", MaxRetries, lastErr)
}

// backoff sleeps for backoffBase * 2^attempt, capped, or until ctx is done
func (f *Fetcher) backoff(ctx context.Context, attempt int) error {
	delay := f.backoffBase * time.Duration(1<<uint(attempt))
	if delay > maxBackoff {
		delay = maxBackoff
	}

	f.log.Debug("backing off", "delay", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
