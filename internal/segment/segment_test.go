package segment

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSegment(t *testing.T, dir, slug, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, slug+".json"), []byte(body), 0o644); err != nil {
		t.Fatalf("write segment: %v", err)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeSegment(t, dir, "smb_owners", `{
		"audience": "Small business owners",
		"subreddits": ["smallbusiness"],
		"reddit_filters": {"min_score": 20, "min_comments": 5}
	}`)

	cfg, err := Load(dir, "SMB Owners")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Name != "smb_owners" {
		t.Fatalf("expected slug name, got %q", cfg.Name)
	}
	if cfg.PrescoreThreshold != 6.0 || cfg.AIRelevanceThreshold != 6.0 {
		t.Fatalf("expected default thresholds, got %v / %v", cfg.PrescoreThreshold, cfg.AIRelevanceThreshold)
	}
	if cfg.RedditFilters.TimeRange != "month" || cfg.RedditFilters.Sort != "top" {
		t.Fatalf("expected default filters, got %+v", cfg.RedditFilters)
	}
	if cfg.RedditFilters.MaxAgeDays != 90 {
		t.Fatalf("expected default max age 90, got %d", cfg.RedditFilters.MaxAgeDays)
	}
	if !cfg.RedditEnabled() || !cfg.TrendsEnabled() || !cfg.CuratedQueriesEnabled() {
		t.Fatal("expected all stages enabled by default")
	}
	if len(cfg.SolutionAngles) == 0 {
		t.Fatal("expected default solution angles")
	}
}

func TestLoadUnknownSegment(t *testing.T) {
	if _, err := Load(t.TempDir(), "nope"); err == nil {
		t.Fatal("expected error for unknown segment")
	}
}

func TestMergeDeepMergesNestedMaps(t *testing.T) {
	dir := t.TempDir()
	writeSegment(t, dir, "hr_leaders", `{
		"audience": "HR leaders",
		"subreddits": ["humanresources", "askhr"],
		"reddit_filters": {"min_score": 30, "min_comments": 10, "time_range": "week"},
		"google_trends": {"primary_keywords": ["hris"], "geo": "AU"}
	}`)

	cfg, err := Load(dir, "hr_leaders")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	merged, err := cfg.Merge(map[string]any{
		"reddit_filters": map[string]any{"min_score": 50},
		"subreddits":     []any{"recruiting"},
		"enable_trends":  false,
	})
	if err != nil {
		t.Fatalf("Merge returned error: %v", err)
	}

	// nested keys merge: min_score replaced, siblings kept
	if merged.RedditFilters.MinScore != 50 {
		t.Fatalf("expected overridden min_score 50, got %d", merged.RedditFilters.MinScore)
	}
	if merged.RedditFilters.MinComments != 10 || merged.RedditFilters.TimeRange != "week" {
		t.Fatalf("expected sibling filter keys preserved, got %+v", merged.RedditFilters)
	}
	// lists replace wholesale
	if len(merged.Subreddits) != 1 || merged.Subreddits[0] != "recruiting" {
		t.Fatalf("expected subreddits replaced, got %v", merged.Subreddits)
	}
	if merged.TrendsEnabled() {
		t.Fatal("expected trends disabled by override")
	}
	if merged.GoogleTrends.Geo != "AU" {
		t.Fatalf("expected untouched trends config, got %+v", merged.GoogleTrends)
	}

	// receiver untouched
	if cfg.RedditFilters.MinScore != 30 || !cfg.TrendsEnabled() {
		t.Fatal("Merge modified the receiver")
	}
}

func TestMergeEmptyOverrides(t *testing.T) {
	cfg := Config{Audience: "a", PrescoreThreshold: 7}
	merged, err := cfg.Merge(nil)
	if err != nil {
		t.Fatalf("Merge returned error: %v", err)
	}
	if merged.Audience != "a" || merged.PrescoreThreshold != 7 {
		t.Fatalf("expected unchanged config, got %+v", merged)
	}
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	writeSegment(t, dir, "alpha", `{}`)
	writeSegment(t, dir, "beta", `{}`)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	names, err := List(dir)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 segments, got %v", names)
	}
}
