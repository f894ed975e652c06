package reddit

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/steve-waters-outstaffer/content-finder/internal/history"
	"github.com/steve-waters-outstaffer/content-finder/internal/segment"
	"github.com/steve-waters-outstaffer/content-finder/internal/voc"
	"github.com/steve-waters-outstaffer/content-finder/pkg/logging"
)

// Rejection reasons used as keys in FetchResult.Rejected.
const (
	RejectLowEngagement    = "low_engagement"
	RejectAlreadyProcessed = "already_processed"
	RejectStickied         = "stickied"
	RejectTooOld           = "too_old"
)

// fetchLimit is how many posts to request per subreddit listing.
const fetchLimit = 100

// CollectorConfig configures a Collector.
type CollectorConfig struct {
	Client  *Client
	History history.Store
	Logger  logging.Logger
}

// Collector fetches subreddit listings and applies the candidate filters.
type Collector struct {
	client  *Client
	history history.Store
	logger  logging.Logger
}

// NewCollector creates a Collector.
func NewCollector(cfg CollectorConfig) *Collector {
	return &Collector{
		client:  cfg.Client,
		history: cfg.History,
		logger:  cfg.Logger,
	}
}

// FetchResult is the outcome of the collection stage. Rejected posts are
// kept per reason so callers can audit what the filters dropped.
type FetchResult struct {
	Candidates []voc.Post
	Raw        []voc.Post
	Rejected   map[string][]voc.Post
	Warnings   []string
}

// FetchPosts collects candidates from every configured subreddit. A failed
// subreddit is a warning, not an error: collection continues with the rest.
func (c *Collector) FetchPosts(ctx context.Context, seg segment.Config) FetchResult {
	result := FetchResult{Rejected: make(map[string][]voc.Post)}

	var processed map[string]struct{}
	if c.history != nil {
		processed = c.history.Load(ctx, seg.Name)
	}

	filters := seg.RedditFilters
	now := time.Now()

	for _, sub := range seg.Subreddits {
		posts, err := c.client.FetchSubredditPosts(ctx, sub, filters.TimeRange, filters.Sort, fetchLimit)
		if err != nil {
			c.logger.WithError(err).WithField("subreddit", sub).Warn("Subreddit fetch failed")
			result.Warnings = append(result.Warnings, fmt.Sprintf("r/%s fetch failed: %v", sub, err))
			continue
		}

		c.logger.WithFields(logging.Fields{
			"subreddit": sub,
			"posts":     len(posts),
		}).Info("Fetched subreddit listing")

		result.Raw = append(result.Raw, posts...)

		for _, post := range posts {
			if reason := classifyPost(post, filters, processed, now); reason != "" {
				result.Rejected[reason] = append(result.Rejected[reason], post)
				continue
			}
			result.Candidates = append(result.Candidates, post)
		}
	}

	sort.SliceStable(result.Candidates, func(i, j int) bool {
		return result.Candidates[i].Score > result.Candidates[j].Score
	})

	return result
}

// classifyPost returns the rejection reason for a post, or "" for a keeper.
// Engagement and history checks run first; the stickied/age check catches
// pinned announcements and stale threads that pass raw engagement but skew
// relevance scoring.
func classifyPost(post voc.Post, filters segment.RedditFilters, processed map[string]struct{}, now time.Time) string {
	if post.Score < filters.MinScore || post.NumComments < filters.MinComments {
		return RejectLowEngagement
	}
	if _, seen := processed[post.ID]; seen {
		return RejectAlreadyProcessed
	}
	if post.Stickied {
		return RejectStickied
	}
	if filters.MaxAgeDays > 0 && post.CreatedUTC > 0 {
		cutoff := now.AddDate(0, 0, -filters.MaxAgeDays)
		if post.CreatedAt().Before(cutoff) {
			return RejectTooOld
		}
	}
	return ""
}
