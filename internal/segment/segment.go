// Package segment loads and merges per-audience discovery configuration.
// Each segment is one JSON document in the segments directory, named by its
// slug (lowercased, spaces to underscores).
package segment

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Default thresholds and filter values applied when a segment document leaves
// them unset.
const (
	DefaultPrescoreThreshold    = 6.0
	DefaultAIRelevanceThreshold = 6.0
	DefaultTimeRange            = "month"
	DefaultSort                 = "top"
	DefaultMaxAgeDays           = 90
	DefaultTrendsTimeframe      = "today 12-m"
)

// DefaultSolutionAngles is the rubric enum used when a segment does not
// define its own solution categories.
var DefaultSolutionAngles = []string{"Recruitment", "EOR", "AI Screening", "HRIS", "None"}

// RedditFilters controls candidate selection for the collection stage.
type RedditFilters struct {
	MinScore    int    `json:"min_score"`
	MinComments int    `json:"min_comments"`
	TimeRange   string `json:"time_range"`
	Sort        string `json:"sort"`
	MaxAgeDays  int    `json:"max_age_days"`
}

// TrendsConfig controls the search-trends stage.
type TrendsConfig struct {
	PrimaryKeywords   []string `json:"primary_keywords"`
	ComparisonKeyword string   `json:"comparison_keyword"`
	Timeframe         string   `json:"timeframe"`
	Geo               string   `json:"geo"`
}

// Config is one audience segment's discovery configuration.
type Config struct {
	Name                 string        `json:"name,omitempty"`
	Audience             string        `json:"audience"`
	Subreddits           []string      `json:"subreddits"`
	RedditFilters        RedditFilters `json:"reddit_filters"`
	Priorities           []string      `json:"priorities"`
	PrescoreThreshold    float64       `json:"prescore_threshold"`
	AIRelevanceThreshold float64       `json:"ai_relevance_threshold"`
	GoogleTrends         TrendsConfig  `json:"google_trends"`
	SolutionAngles       []string      `json:"solution_angles,omitempty"`

	// Stage toggles default to enabled when absent from the document.
	EnableReddit         *bool `json:"enable_reddit,omitempty"`
	EnableTrends         *bool `json:"enable_trends,omitempty"`
	EnableCuratedQueries *bool `json:"enable_curated_queries,omitempty"`
}

// RedditEnabled reports whether the Reddit sub-pipeline should run.
func (c Config) RedditEnabled() bool { return c.EnableReddit == nil || *c.EnableReddit }

// TrendsEnabled reports whether the trends sub-pipeline should run.
func (c Config) TrendsEnabled() bool { return c.EnableTrends == nil || *c.EnableTrends }

// CuratedQueriesEnabled reports whether query synthesis should run.
func (c Config) CuratedQueriesEnabled() bool {
	return c.EnableCuratedQueries == nil || *c.EnableCuratedQueries
}

// Slug converts a segment name to its document filename stem.
func Slug(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
}

// Load reads a segment document from dir and applies defaults. An unknown
// segment is a configuration error, not a warning.
func Load(dir, name string) (Config, error) {
	slug := Slug(name)
	if slug == "" {
		return Config{}, fmt.Errorf("segment name is required")
	}

	path := filepath.Join(dir, slug+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("segment %q not found: %w", name, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("segment %q is not valid JSON: %w", name, err)
	}

	cfg.Name = slug
	cfg.applyDefaults()
	return cfg, nil
}

// List returns the slugs of all segment documents in dir.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read segments dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}
	return names, nil
}

// Merge deep-merges caller overrides into the config: nested objects merge
// key by key, scalars and lists replace wholesale. The receiver is not
// modified.
func (c Config) Merge(overrides map[string]any) (Config, error) {
	if len(overrides) == 0 {
		return c, nil
	}

	raw, err := json.Marshal(c)
	if err != nil {
		return Config{}, fmt.Errorf("merge overrides: %w", err)
	}
	var base map[string]any
	if err := json.Unmarshal(raw, &base); err != nil {
		return Config{}, fmt.Errorf("merge overrides: %w", err)
	}

	merged, err := json.Marshal(deepMerge(base, overrides))
	if err != nil {
		return Config{}, fmt.Errorf("merge overrides: %w", err)
	}

	var out Config
	if err := json.Unmarshal(merged, &out); err != nil {
		return Config{}, fmt.Errorf("overrides do not match segment schema: %w", err)
	}
	out.Name = c.Name
	out.applyDefaults()
	return out, nil
}

func deepMerge(base, overrides map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		if existing, ok := out[k].(map[string]any); ok {
			if incoming, ok := v.(map[string]any); ok {
				out[k] = deepMerge(existing, incoming)
				continue
			}
		}
		out[k] = v
	}
	return out
}

func (c *Config) applyDefaults() {
	if c.PrescoreThreshold == 0 {
		c.PrescoreThreshold = DefaultPrescoreThreshold
	}
	if c.AIRelevanceThreshold == 0 {
		c.AIRelevanceThreshold = DefaultAIRelevanceThreshold
	}
	if c.RedditFilters.TimeRange == "" {
		c.RedditFilters.TimeRange = DefaultTimeRange
	}
	if c.RedditFilters.Sort == "" {
		c.RedditFilters.Sort = DefaultSort
	}
	if c.RedditFilters.MaxAgeDays == 0 {
		c.RedditFilters.MaxAgeDays = DefaultMaxAgeDays
	}
	if c.GoogleTrends.Timeframe == "" {
		c.GoogleTrends.Timeframe = DefaultTrendsTimeframe
	}
	if len(c.SolutionAngles) == 0 {
		c.SolutionAngles = append([]string(nil), DefaultSolutionAngles...)
	}
}
