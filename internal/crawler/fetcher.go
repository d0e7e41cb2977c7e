package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/appsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/resilience"
)

// Fetcher downloads a page body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher fetches pages over HTTP with a per-attempt timeout, retry with
// backoff and a circuit breaker shared by all requests.
type HTTPFetcher struct {
	client  *http.Client
	cfg     config.CrawlerConfig
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewHTTPFetcher creates a fetcher. m may be nil.
func NewHTTPFetcher(cfg config.CrawlerConfig, client *http.Client, m *metrics.Metrics) *HTTPFetcher {
	if client == nil {
		client = &http.Client{}
	}
	f := &HTTPFetcher{
		client:  client,
		cfg:     cfg,
		retry:   resilience.RetryConfig{MaxAttempts: cfg.RetryAttempts},
		metrics: m,
		logger:  slog.Default().With("component", "fetcher"),
	}
	f.breaker = resilience.NewCircuitBreaker("crawler-fetch", resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.FailureThreshold,
		IsFailure:        func(err error) bool { return !resilience.IsPermanent(err) },
		OnStateChange: func(name string, from, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return f
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()
	var body []byte
	err := f.breaker.Execute(func() error {
		return resilience.Retry(ctx, "fetch "+url, f.retry, func() error {
			var page []byte
			err := resilience.WithTimeout(ctx, f.cfg.FetchTimeout, "fetch "+url, func(ctx context.Context) error {
				b, err := f.get(ctx, url)
				page = b
				return err
			})
			if err == nil {
				body = page
			}
			return err
		})
	})
	if f.metrics != nil {
		f.metrics.CrawlFetchDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrFetchFailed, err)
		}
		return nil, err
	}
	return body, nil
}

func (f *HTTPFetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("building request for %s: %v: %w", url, err, apperrors.ErrFetchFailed))
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}
	if f.cfg.Language != "" {
		req.Header.Set("Accept-Language", f.cfg.Language)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %v: %w", url, err, apperrors.ErrFetchFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("GET %s: %s: %w", url, resp.Status, apperrors.ErrFetchFailed)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, err
		}
		return nil, resilience.Permanent(err)
	}

	limit := f.cfg.MaxBodyBytes
	if limit <= 0 {
		return io.ReadAll(resp.Body)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %v: %w", url, err, apperrors.ErrFetchFailed)
	}
	if int64(len(body)) > limit {
		return nil, resilience.Permanent(fmt.Errorf("%s: body exceeds %d bytes: %w", url, limit, apperrors.ErrFetchFailed))
	}
	return body, nil
}
