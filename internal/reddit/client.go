// Package reddit collects candidate posts and discussion threads from the
// Reddit scraping API, filters them for engagement and freshness, and runs
// full-context relevance scoring on survivors.
package reddit

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

	"github.com/failsafe-go/failsafe-go"

	"github.com/steve-waters-outstaffer/content-finder/internal/voc"
	"github.com/steve-waters-outstaffer/content-finder/pkg/clients"
	"github.com/steve-waters-outstaffer/content-finder/pkg/logging"
)

const (
	defaultBaseURL = "https://api.scrapecreators.com/v1/reddit"
	fetchTimeout   = 30 * time.Second
	// maxComments caps how many thread comments feed the scoring prompt
	maxComments = 5
)

// ClientConfig configures the Reddit API client.
type ClientConfig struct {
	APIKey  string
	BaseURL string
	Logger  logging.Logger
}

// Client talks to the scraping API. Requests go through a failsafe executor
// that retries transient failures and trips a circuit breaker on sustained
// 5xx responses.
type Client struct {
	httpClient *http.Client
	executor   failsafe.Executor[*http.Response]
	apiKey     string
	baseURL    string
	logger     logging.Logger
}

// NewClient creates a Reddit API client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	executorCfg := clients.DefaultHTTPExecutorConfig()
	executorCfg.BaseDelay = 500 * time.Millisecond
	executorCfg.MaxDelay = 8 * time.Second
	executorCfg.BreakerName = "reddit-api"
	executorCfg.Logger = cfg.Logger

	return &Client{
		httpClient: &http.Client{Timeout: fetchTimeout},
		executor:   clients.NewHTTPExecutor(executorCfg),
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		logger:     cfg.Logger,
	}
}

// FetchSubredditPosts requests a subreddit listing and normalizes whatever
// shape the API returns into posts.
func (c *Client) FetchSubredditPosts(ctx context.Context, subreddit, timeframe, sort string, limit int) ([]voc.Post, error) {
	params := url.Values{}
	params.Set("subreddit", subreddit)
	params.Set("timeframe", timeframe)
	params.Set("sort", sort)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	body, err := c.get(ctx, c.baseURL+"/subreddit?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("fetch r/%s: %w", subreddit, err)
	}

	posts, err := normalizePosts(body)
	if err != nil {
		return nil, fmt.Errorf("fetch r/%s: %w", subreddit, err)
	}

	// listings do not always echo the subreddit back
	for i := range posts {
		if posts[i].Subreddit == "" {
			posts[i].Subreddit = subreddit
		}
	}
	return posts, nil
}

// FetchComments fetches a post's discussion thread and extracts up to
// maxComments non-deleted comment bodies from the nested tree.
func (c *Client) FetchComments(ctx context.Context, postURL string) ([]string, error) {
	params := url.Values{}
	params.Set("url", postURL)

	body, err := c.get(ctx, c.baseURL+"/post/comments?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("fetch comments: %w", err)
	}

	var tree any
	if err := json.Unmarshal(body, &tree); err != nil {
		return nil, fmt.Errorf("fetch comments: decode: %w", err)
	}

	comments := make([]string, 0, maxComments)
	collectCommentBodies(tree, &comments)
	return comments, nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := clients.ExecuteHTTP(ctx, c.executor, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		if c.apiKey != "" {
			req.Header.Set("x-api-key", c.apiKey)
		}
		req.Header.Set("Accept", "application/json")
		return c.httpClient.Do(req)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	return io.ReadAll(resp.Body)
}

// wirePost covers the field names observed across API response variants.
type wirePost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Subreddit   string  `json:"subreddit"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	Stickied    bool    `json:"stickied"`
	SelfText    string  `json:"selftext"`
	Content     string  `json:"content_snippet"`
	URL         string  `json:"url"`
	Permalink   string  `json:"permalink"`
}

func (w wirePost) toPost() voc.Post {
	content := w.SelfText
	if content == "" {
		content = w.Content
	}
	return voc.Post{
		ID:          w.ID,
		Title:       w.Title,
		Subreddit:   w.Subreddit,
		Score:       w.Score,
		NumComments: w.NumComments,
		CreatedUTC:  w.CreatedUTC,
		Stickied:    w.Stickied,
		SelfText:    content,
		URL:         w.URL,
		Permalink:   w.Permalink,
	}
}

// normalizePosts converts the four observed listing shapes into one post
// slice: a bare array, {"data":[...]}, {"posts":[...]}, and the native
// listing {"data":{"children":[{"data":{...}}]}}. Shapes are tried in a
// fixed order; nothing is assumed about which one arrives.
func normalizePosts(body []byte) ([]voc.Post, error) {
	var bare []wirePost
	if err := json.Unmarshal(body, &bare); err == nil {
		return wireToPosts(bare), nil
	}

	var envelope struct {
		Data  json.RawMessage `json:"data"`
		Posts json.RawMessage `json:"posts"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("unrecognized listing shape: %w", err)
	}

	if len(envelope.Posts) > 0 {
		var posts []wirePost
		if err := json.Unmarshal(envelope.Posts, &posts); err == nil {
			return wireToPosts(posts), nil
		}
	}

	if len(envelope.Data) > 0 {
		var posts []wirePost
		if err := json.Unmarshal(envelope.Data, &posts); err == nil {
			return wireToPosts(posts), nil
		}

		var listing struct {
			Children []struct {
				Data wirePost `json:"data"`
			} `json:"children"`
		}
		if err := json.Unmarshal(envelope.Data, &listing); err == nil && len(listing.Children) > 0 {
			out := make([]voc.Post, 0, len(listing.Children))
			for _, child := range listing.Children {
				out = append(out, child.Data.toPost())
			}
			return out, nil
		}
	}

	return nil, fmt.Errorf("unrecognized listing shape")
}

func wireToPosts(in []wirePost) []voc.Post {
	out := make([]voc.Post, 0, len(in))
	for _, w := range in {
		out = append(out, w.toPost())
	}
	return out
}

// collectCommentBodies walks an arbitrarily nested comment tree. Comment
// bodies live under "body" keys; children hide under any of "replies",
// "data" or "children" depending on the response variant.
func collectCommentBodies(node any, out *[]string) {
	if len(*out) >= maxComments {
		return
	}

	switch v := node.(type) {
	case []any:
		for _, item := range v {
			collectCommentBodies(item, out)
			if len(*out) >= maxComments {
				return
			}
		}
	case map[string]any:
		if body, ok := v["body"].(string); ok {
			body = strings.TrimSpace(body)
			if body != "" && body != "[deleted]" && body != "[removed]" {
				*out = append(*out, body)
				if len(*out) >= maxComments {
					return
				}
			}
		}
		for _, key := range []string{"replies", "data", "children"} {
			if child, ok := v[key]; ok {
				collectCommentBodies(child, out)
				if len(*out) >= maxComments {
					return
				}
			}
		}
	}
}
