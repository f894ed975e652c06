// Package synthesis turns the run's surviving pain points and trend signals
// into curated search-query strings with a single model call.
package synthesis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/steve-waters-outstaffer/content-finder/internal/segment"
	"github.com/steve-waters-outstaffer/content-finder/internal/voc"
	"github.com/steve-waters-outstaffer/content-finder/pkg/llm"
	"github.com/steve-waters-outstaffer/content-finder/pkg/logging"
)

const (
	synthesisTimeout = 30 * time.Second

	// maxRisingTerms caps how many rising search terms appear per trend line
	maxRisingTerms = 3
)

const synthesisSystemPrompt = `You turn observed customer pain points and search-trend signals into curated web search queries for content research. Each query should be a phrase someone in the target audience would actually type into a search engine.

Respond with a JSON array of query strings only, for example:
["query one", "query two"]`

// Synthesizer generates curated queries from enriched posts and trend
// signals.
type Synthesizer struct {
	provider llm.Provider
	logger   logging.Logger
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(provider llm.Provider, logger logging.Logger) *Synthesizer {
	return &Synthesizer{provider: provider, logger: logger}
}

// GenerateQueries produces curated search queries from the accepted posts and
// trend signals. Both inputs empty is a quiet segment, not a warning. A
// structurally wrong model response yields no queries and one warning rather
// than an error.
func (s *Synthesizer) GenerateQueries(ctx context.Context, posts []voc.Post, signals []voc.TrendSignal, seg segment.Config) ([]string, []string) {
	painLines := painPointLines(posts)
	trendLines := trendSignalLines(signals)

	if len(painLines) == 0 && len(trendLines) == 0 {
		s.logger.Info("Skipping curated query generation, no pain points or trend data")
		return nil, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, synthesisTimeout)
	defer cancel()

	stream, err := s.provider.Complete(callCtx, []llm.Message{
		{Role: "system", Content: synthesisSystemPrompt},
		{Role: "user", Content: buildSynthesisPrompt(painLines, trendLines, seg)},
	})
	if err != nil {
		s.logger.WithError(err).Warn("Curated query generation failed")
		return nil, []string{fmt.Sprintf("curated query generation failed: %v", err)}
	}

	content, err := llm.CollectText(stream)
	if err != nil {
		s.logger.WithError(err).Warn("Curated query generation failed")
		return nil, []string{fmt.Sprintf("curated query generation failed: %v", err)}
	}

	queries, ok := parseQueries(content)
	if !ok {
		s.logger.Warn("Model returned unexpected structure for curated queries")
		return nil, []string{"model returned unexpected structure for curated queries"}
	}

	s.logger.WithField("count", len(queries)).Info("Curated queries generated")
	return queries, nil
}

func painPointLines(posts []voc.Post) []string {
	var lines []string
	for _, post := range posts {
		if post.Analysis == nil {
			continue
		}
		pain := post.Analysis.PainPoint
		if pain == "" {
			pain = "(pain point unavailable)"
		}
		lines = append(lines, fmt.Sprintf("- %s (relevance %.1f) — r/%s | %s",
			pain, post.Analysis.RelevanceScore, post.Subreddit, post.Title))
	}
	return lines
}

func trendSignalLines(signals []voc.TrendSignal) []string {
	var lines []string
	for _, signal := range signals {
		if signal.Query == "" {
			continue
		}
		var rising []string
		for _, item := range signal.RelatedQueries.Rising {
			if item.Title == "" {
				continue
			}
			rising = append(rising, item.Title)
			if len(rising) == maxRisingTerms {
				break
			}
		}
		if len(rising) > 0 {
			lines = append(lines, fmt.Sprintf("- %s: rising searches include %s", signal.Query, strings.Join(rising, ", ")))
		} else {
			lines = append(lines, fmt.Sprintf("- %s: steady interest over time", signal.Query))
		}
	}
	return lines
}

func buildSynthesisPrompt(painLines, trendLines []string, seg segment.Config) string {
	painPoints := "- No analyzed discussion posts were available."
	if len(painLines) > 0 {
		painPoints = strings.Join(painLines, "\n")
	}
	trendsSummary := "- Search trend data unavailable."
	if len(trendLines) > 0 {
		trendsSummary = strings.Join(trendLines, "\n")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Target audience: %s\n\n", seg.Audience)
	fmt.Fprintf(&sb, "Observed pain points:\n%s\n\n", painPoints)
	fmt.Fprintf(&sb, "Search trend signals:\n%s\n\n", trendsSummary)
	sb.WriteString("Generate 5-10 curated search queries for content research on this audience.")
	return sb.String()
}

// parseQueries accepts either a bare JSON array of strings or an object with
// a queries key. Blank entries are dropped.
func parseQueries(content string) ([]string, bool) {
	var items []string
	if err := llm.DecodeJSON(content, &items); err != nil {
		var wrapped struct {
			Queries []string `json:"queries"`
		}
		if err := llm.DecodeJSON(content, &wrapped); err != nil || wrapped.Queries == nil {
			return nil, false
		}
		items = wrapped.Queries
	}

	var queries []string
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			queries = append(queries, trimmed)
		}
	}
	return queries, true
}
