// Package trends retrieves search-interest time series and related
// query/topic tables from the trends analytics API, with per-keyword retry
// on rate limits.
package trends

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

	"github.com/steve-waters-outstaffer/content-finder/internal/voc"
	"github.com/steve-waters-outstaffer/content-finder/pkg/logging"
)

// ErrRateLimited marks a 429 from the trends API. The fetcher retries these
// with its own backoff schedule instead of the generic HTTP retry policy.
var ErrRateLimited = errors.New("trends: rate limited")

const (
	defaultBaseURL = "https://api.scrapecreators.com/v1/google/trends"
	fetchTimeout   = 30 * time.Second
)

// ClientConfig configures the trends API client.
type ClientConfig struct {
	APIKey  string
	BaseURL string
	Logger  logging.Logger
}

// Client talks to the trends analytics API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	logger     logging.Logger
}

// NewClient creates a trends API client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: fetchTimeout},
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		logger:     cfg.Logger,
	}
}

// FetchInterest requests interest-over-time plus related queries and topics
// for up to two keywords (primary, optional comparison).
func (c *Client) FetchInterest(ctx context.Context, keywords []string, timeframe, geo string) (voc.TrendSignal, error) {
	if len(keywords) == 0 {
		return voc.TrendSignal{}, fmt.Errorf("trends: at least one keyword required")
	}

	params := url.Values{}
	params.Set("keywords", strings.Join(keywords, ","))
	params.Set("timeframe", timeframe)
	if geo != "" {
		params.Set("geo", geo)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/interest?"+params.Encode(), nil)
	if err != nil {
		return voc.TrendSignal{}, fmt.Errorf("trends: create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return voc.TrendSignal{}, fmt.Errorf("trends: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return voc.TrendSignal{}, ErrRateLimited
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return voc.TrendSignal{}, fmt.Errorf("trends: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var wire wireInterestResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return voc.TrendSignal{}, fmt.Errorf("trends: decode response: %w", err)
	}

	signal := wire.toSignal()
	signal.Query = keywords[0]
	if len(keywords) > 1 {
		signal.ComparisonKeyword = keywords[1]
	}
	return signal, nil
}

type wireInterestResponse struct {
	InterestOverTime []struct {
		Timestamp time.Time      `json:"timestamp"`
		Values    map[string]int `json:"values"`
	} `json:"interest_over_time"`
	RelatedQueries wireRelatedTable `json:"related_queries"`
	RelatedTopics  wireRelatedTable `json:"related_topics"`
}

type wireRelatedTable struct {
	Top    []wireRelatedItem `json:"top"`
	Rising []wireRelatedItem `json:"rising"`
}

type wireRelatedItem struct {
	Query string `json:"query"`
	Topic string `json:"topic"`
	Title string `json:"title"`
	Value int    `json:"value"`
}

func (w wireRelatedItem) title() string {
	if w.Query != "" {
		return w.Query
	}
	if w.Topic != "" {
		return w.Topic
	}
	return w.Title
}

func (w wireRelatedTable) toTable() voc.RelatedTable {
	out := voc.RelatedTable{}
	for _, item := range w.Top {
		out.Top = append(out.Top, voc.RelatedItem{Title: item.title(), Value: item.Value})
	}
	for _, item := range w.Rising {
		out.Rising = append(out.Rising, voc.RelatedItem{Title: item.title(), Value: item.Value})
	}
	return out
}

func (w wireInterestResponse) toSignal() voc.TrendSignal {
	signal := voc.TrendSignal{
		RelatedQueries: w.RelatedQueries.toTable(),
		RelatedTopics:  w.RelatedTopics.toTable(),
	}
	for _, point := range w.InterestOverTime {
		signal.InterestOverTime = append(signal.InterestOverTime, voc.InterestPoint{
			Timestamp: point.Timestamp,
			Values:    point.Values,
		})
	}
	return signal
}
