package trends

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/steve-waters-outstaffer/content-finder/internal/segment"
	"github.com/steve-waters-outstaffer/content-finder/internal/voc"
	"github.com/steve-waters-outstaffer/content-finder/pkg/logging"
)

const (
	// maxRetries is the retry budget per keyword on rate limits, with
	// backoff doubling from baseBackoff (2s, 4s, 8s).
	maxRetries  = 3
	baseBackoff = 2 * time.Second

	// keywordDelay paces keyword requests to stay under the rate limit
	keywordDelay = 2 * time.Second
)

// interestFetcher is the client surface the fetcher needs.
type interestFetcher interface {
	FetchInterest(ctx context.Context, keywords []string, timeframe, geo string) (voc.TrendSignal, error)
}

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	Client interestFetcher
	Logger logging.Logger

	// Sleep overrides time.Sleep in tests
	Sleep func(time.Duration)
}

// Fetcher runs the trends stage: one signal per configured keyword,
// rate-limit retries with exponential backoff, and escalation to a stage
// error when every keyword comes back empty.
type Fetcher struct {
	client interestFetcher
	logger logging.Logger
	sleep  func(time.Duration)
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	return &Fetcher{
		client: cfg.Client,
		logger: cfg.Logger,
		sleep:  sleep,
	}
}

// FetchTrends fetches a signal per primary keyword. A keyword that fails or
// returns no data is a warning; zero data across every keyword is a stage
// error because it signals a broken service, not a quiet term.
func (f *Fetcher) FetchTrends(ctx context.Context, seg segment.Config) ([]voc.TrendSignal, []string, error) {
	cfg := seg.GoogleTrends
	if len(cfg.PrimaryKeywords) == 0 {
		return nil, nil, nil
	}

	var signals []voc.TrendSignal
	var warnings []string

	for i, keyword := range cfg.PrimaryKeywords {
		if i > 0 {
			f.sleep(keywordDelay)
		}

		keywords := []string{keyword}
		if cfg.ComparisonKeyword != "" && cfg.ComparisonKeyword != keyword {
			keywords = append(keywords, cfg.ComparisonKeyword)
		}

		signal, retries, err := f.fetchWithRetry(ctx, keywords, cfg.Timeframe, cfg.Geo)
		if err == nil && retries > 0 {
			warnings = append(warnings, fmt.Sprintf("keyword %q rate limited, succeeded after %d retries", keyword, retries))
		}
		if err != nil {
			f.logger.WithError(err).WithField("keyword", keyword).Warn("Trends fetch failed for keyword")
			warnings = append(warnings, fmt.Sprintf("keyword %q failed: %v", keyword, err))
			continue
		}
		if signal.Empty() {
			f.logger.WithField("keyword", keyword).Warn("Trends returned no data for keyword")
			warnings = append(warnings, fmt.Sprintf("keyword %q returned no data", keyword))
			continue
		}

		signals = append(signals, signal)
	}

	if len(signals) == 0 {
		return nil, warnings, errors.New("no trend data for any configured keyword")
	}
	return signals, warnings, nil
}

// fetchWithRetry retries rate-limited calls up to maxRetries times and
// reports how many retries it spent, so the caller can record a single
// warning per keyword rather than one per attempt.
func (f *Fetcher) fetchWithRetry(ctx context.Context, keywords []string, timeframe, geo string) (voc.TrendSignal, int, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			f.sleep(baseBackoff << (attempt - 1))
		}

		signal, err := f.client.FetchInterest(ctx, keywords, timeframe, geo)
		if err == nil {
			return signal, attempt, nil
		}
		lastErr = err
		if !errors.Is(err, ErrRateLimited) {
			return voc.TrendSignal{}, attempt, err
		}
	}
	return voc.TrendSignal{}, maxRetries, lastErr
}
