package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"FearGreedTracker/internal/metrics"
	"FearGreedTracker/internal/model"
	"FearGreedTracker/internal/retry"
)

// CNNOptions configures a CNNFetcher.
type CNNOptions struct {
	BaseURL         string
	Timeout         time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	Proxy           string
}

// CNNFetcher implements Fetcher against the CNN Fear & Greed graph data API.
type CNNFetcher struct {
	BaseURL    string
	Client     *http.Client
	MaxRetries int
	RetryDelay time.Duration
	Sleep      retry.Sleeper
	UserAgent  func() string
	Metrics    *metrics.Metrics

	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// NewCNNFetcher creates a fetcher with optional proxy support.
func NewCNNFetcher(opts CNNOptions, log zerolog.Logger) *CNNFetcher {
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if opts.Proxy != "" {
		if u, err := url.Parse(opts.Proxy); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}

	f := &CNNFetcher{
		BaseURL:    opts.BaseURL,
		MaxRetries: opts.MaxRetries,
		RetryDelay: opts.RetryDelay,
		Client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		Sleep:     retry.SleepContext,
		UserAgent: RandomUserAgent,
		log:       log,
	}

	failures := opts.BreakerFailures
	f.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "cnn",
		Timeout: opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Only exhausted retries count against the source.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrFetchExhausted)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
	return f
}

func (f *CNNFetcher) Name() string { return "cnn" }

// graphData is the subset of the API response we read. Pointers distinguish
// absent fields from zero values.
type graphData struct {
	Historical *struct {
		Data []struct {
			X *float64 `json:"x"`
			Y *float64 `json:"y"`
		} `json:"data"`
	} `json:"fear_and_greed_historical"`
}

// URLFor returns the request URL for a start date.
func (f *CNNFetcher) URLFor(start time.Time) string {
	return strings.TrimRight(f.BaseURL, "/") + "/" + model.FormatDate(start)
}

// Fetch returns every observation from start onwards. Transient failures are
// retried with linear backoff; the result is an error matching
// ErrFetchExhausted or ErrFetchRejected when no attempt succeeded.
func (f *CNNFetcher) Fetch(ctx context.Context, start time.Time) ([]RawObservation, error) {
	endpoint := f.URLFor(start)
	out, err := f.breaker.Execute(func() (interface{}, error) {
		return f.fetchWithRetry(ctx, endpoint)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("fetch %s: %w", endpoint, err)
		}
		return nil, err
	}
	return out.([]RawObservation), nil
}

func (f *CNNFetcher) fetchWithRetry(ctx context.Context, endpoint string) ([]RawObservation, error) {
	var result []RawObservation
	attempts, err := retry.Do(ctx, f.MaxRetries, retry.Linear(f.RetryDelay), f.Sleep, func(attempt int) error {
		obs, err := f.fetchOnce(ctx, endpoint)
		if err != nil {
			outcome := "transient"
			if retry.IsPermanent(err) {
				outcome = "rejected"
			}
			f.Metrics.FetchAttempt(outcome)
			f.log.Warn().Err(err).Int("attempt", attempt).Int("max", f.MaxRetries).Str("url", endpoint).Msg("fetch attempt failed")
			return err
		}
		f.Metrics.FetchAttempt("ok")
		result = obs
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch %s: %w", endpoint, ctx.Err())
		}
		kind := ErrFetchExhausted
		if retry.IsPermanent(err) {
			kind = ErrFetchRejected
		}
		return nil, &FetchError{URL: endpoint, Attempts: attempts, Kind: kind, Err: err}
	}
	f.log.Debug().Str("url", endpoint).Int("records", len(result)).Int("attempts", attempts).Msg("fetch succeeded")
	return result, nil
}

func (f *CNNFetcher) fetchOnce(ctx context.Context, endpoint string) ([]RawObservation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	ua := RandomUserAgent()
	if f.UserAgent != nil {
		ua = f.UserAgent()
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Referer", "https://edition.cnn.com/markets/fear-and-greed")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cnn request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cnn read body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("cnn: status %d, body: %s", resp.StatusCode, snippet(body))
	default:
		return nil, retry.Permanent(fmt.Errorf("cnn: status %d, body: %s", resp.StatusCode, snippet(body)))
	}

	return ParseGraphData(body)
}

// ParseGraphData decodes a graph data payload. A missing series or data list
// yields no records and no error; items without x or y are skipped.
func ParseGraphData(body []byte) ([]RawObservation, error) {
	var data graphData
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("cnn decode: %w", err)
	}
	if data.Historical == nil {
		return nil, nil
	}

	obs := make([]RawObservation, 0, len(data.Historical.Data))
	for _, item := range data.Historical.Data {
		if item.X == nil || item.Y == nil || *item.X == 0 {
			continue
		}
		obs = append(obs, RawObservation{TimestampMs: int64(*item.X), Value: *item.Y})
	}
	return obs, nil
}

func snippet(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
