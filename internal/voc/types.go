// Package voc holds the shared data model for voice-of-customer discovery
// runs: posts as they move through collection and scoring, trend signals, and
// the aggregated run result.
package voc

import "time"

// Post is a discussion post moving through the pipeline. The raw fields are
// immutable once fetched; Prescore, Comments and Analysis are attached by
// later stages. A post with a nil Analysis never counts as high-value.
type Post struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Subreddit   string  `json:"subreddit"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	Stickied    bool    `json:"stickied"`
	SelfText    string  `json:"selftext,omitempty"`
	URL         string  `json:"url,omitempty"`
	Permalink   string  `json:"permalink,omitempty"`

	Prescore *Prescore `json:"prescore,omitempty"`
	Comments []string  `json:"comments,omitempty"`
	Analysis *Analysis `json:"ai_analysis,omitempty"`
}

// CreatedAt converts the platform epoch timestamp.
func (p Post) CreatedAt() time.Time {
	return time.Unix(int64(p.CreatedUTC), 0).UTC()
}

// Prescore is the cheap title+snippet relevance estimate from phase A.
type Prescore struct {
	RelevanceScore float64 `json:"relevance_score"`
	QuickReason    string  `json:"quick_reason"`
}

// Analysis is the full-context scoring result from enrichment.
type Analysis struct {
	RelevanceScore float64 `json:"relevance_score"`
	Reasoning      string  `json:"reasoning"`
	PainPoint      string  `json:"identified_pain_point"`
	SolutionAngle  string  `json:"solution_angle"`
}

// InterestPoint is one sample of search interest over time.
type InterestPoint struct {
	Timestamp time.Time      `json:"timestamp"`
	Values    map[string]int `json:"values"`
}

// RelatedItem is one entry in a related-queries or related-topics table.
type RelatedItem struct {
	Title string `json:"title"`
	Value int    `json:"value"`
}

// RelatedTable splits related items into established and rising sets.
type RelatedTable struct {
	Top    []RelatedItem `json:"top"`
	Rising []RelatedItem `json:"rising"`
}

// TrendSignal is the search-trend data for one keyword, optionally compared
// against a second keyword.
type TrendSignal struct {
	Query             string          `json:"query"`
	ComparisonKeyword string          `json:"comparison_keyword,omitempty"`
	InterestOverTime  []InterestPoint `json:"interest_over_time"`
	RelatedQueries    RelatedTable    `json:"related_queries"`
	RelatedTopics     RelatedTable    `json:"related_topics"`
}

// Empty reports whether the signal carries no data at all.
func (s TrendSignal) Empty() bool {
	return len(s.InterestOverTime) == 0 &&
		len(s.RelatedQueries.Top) == 0 && len(s.RelatedQueries.Rising) == 0 &&
		len(s.RelatedTopics.Top) == 0 && len(s.RelatedTopics.Rising) == 0
}

// LogEntry is one timestamped line of the run's log trail.
type LogEntry struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Result is the aggregated outcome of a discovery run. Warnings and Logs are
// always populated so callers can render best-effort output with visible
// caveats.
type Result struct {
	Segment     string    `json:"segment"`
	RunID       string    `json:"run_id"`
	State       string    `json:"state"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	RedditPosts    []Post            `json:"reddit_posts"`
	RedditRejected map[string][]Post `json:"reddit_posts_rejected"`
	RedditLowScore []Post            `json:"reddit_posts_low_score"`
	GoogleTrends   []TrendSignal     `json:"google_trends"`
	CuratedQueries []string          `json:"curated_queries"`

	Warnings []string   `json:"warnings"`
	Logs     []LogEntry `json:"logs"`
}
