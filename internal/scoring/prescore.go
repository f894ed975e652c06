// Package scoring implements the two-phase relevance scoring: a cheap
// batched pre-score over title+snippet, and the final partition of enriched
// posts by full-context score.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode"

	"github.com/steve-waters-outstaffer/content-finder/internal/segment"
	"github.com/steve-waters-outstaffer/content-finder/internal/voc"
	"github.com/steve-waters-outstaffer/content-finder/pkg/llm"
	"github.com/steve-waters-outstaffer/content-finder/pkg/logging"
)

const (
	batchSize       = 25
	prescoreTimeout = 30 * time.Second

	maxTitleChars   = 200
	maxSnippetChars = 1000

	// neutralScore is applied when a batch response is unusable, so no post
	// is silently dropped.
	neutralScore = 5.0
)

const prescoreSystemPrompt = `You are screening online discussions for relevance to a B2B audience. For each post you receive, estimate on a 0-10 scale how likely the discussion contains a pain point worth deeper analysis. You only see titles and snippets, so score potential, not certainty.

Respond with one JSON object per line, one line per post, in this exact shape:
{"post_index": <index from the input>, "relevance_score": <number>, "quick_reason": "<short phrase>"}`

// PreScorer runs phase A: one batched model call per group of stripped
// posts, no comment fetching.
type PreScorer struct {
	provider llm.Provider
	logger   logging.Logger
}

// NewPreScorer creates a PreScorer.
func NewPreScorer(provider llm.Provider, logger logging.Logger) *PreScorer {
	return &PreScorer{provider: provider, logger: logger}
}

// ScorePosts attaches a Prescore to every input post. Malformed response
// lines are skipped with a warning; an unusable batch response falls back to
// a uniform neutral score so the batch is never partially silently dropped.
func (s *PreScorer) ScorePosts(ctx context.Context, posts []voc.Post, seg segment.Config) ([]voc.Post, []string) {
	if len(posts) == 0 {
		return posts, nil
	}

	out := make([]voc.Post, len(posts))
	copy(out, posts)

	var warnings []string
	for start := 0; start < len(out); start += batchSize {
		end := start + batchSize
		if end > len(out) {
			end = len(out)
		}
		warnings = append(warnings, s.scoreBatch(ctx, out[start:end], seg)...)
	}
	return out, warnings
}

// scoreBatch scores one batch in place. post_index values in the model
// response are batch-relative, so scores merge back through the batch slice
// to the originating post id.
func (s *PreScorer) scoreBatch(ctx context.Context, batch []voc.Post, seg segment.Config) []string {
	callCtx, cancel := context.WithTimeout(ctx, prescoreTimeout)
	defer cancel()

	var warnings []string

	stream, err := s.provider.Complete(callCtx, []llm.Message{
		{Role: "system", Content: prescoreSystemPrompt},
		{Role: "user", Content: buildBatchPrompt(batch, seg)},
	})
	if err != nil {
		s.logger.WithError(err).Warn("Prescore batch call failed, applying neutral score")
		applyNeutral(batch)
		return []string{fmt.Sprintf("prescore batch failed (%v), neutral score applied to %d posts", err, len(batch))}
	}

	content, err := llm.CollectText(stream)
	if err != nil {
		s.logger.WithError(err).Warn("Prescore stream failed, applying neutral score")
		applyNeutral(batch)
		return []string{fmt.Sprintf("prescore batch failed (%v), neutral score applied to %d posts", err, len(batch))}
	}

	entries, parseWarnings := parsePrescoreResponse(content)
	warnings = append(warnings, parseWarnings...)

	if len(entries) == 0 {
		s.logger.Warn("Prescore response unusable, applying neutral score to batch")
		applyNeutral(batch)
		warnings = append(warnings, fmt.Sprintf("prescore response unusable, neutral score applied to %d posts", len(batch)))
		return warnings
	}

	for _, entry := range entries {
		if entry.PostIndex < 0 || entry.PostIndex >= len(batch) {
			warnings = append(warnings, fmt.Sprintf("prescore entry references unknown post_index %d", entry.PostIndex))
			continue
		}
		batch[entry.PostIndex].Prescore = &voc.Prescore{
			RelevanceScore: entry.RelevanceScore,
			QuickReason:    entry.QuickReason,
		}
	}

	for i := range batch {
		if batch[i].Prescore == nil {
			batch[i].Prescore = &voc.Prescore{RelevanceScore: neutralScore, QuickReason: "no score returned"}
		}
	}
	return warnings
}

func applyNeutral(batch []voc.Post) {
	for i := range batch {
		batch[i].Prescore = &voc.Prescore{RelevanceScore: neutralScore, QuickReason: "prescore unavailable"}
	}
}

type prescoreEntry struct {
	PostIndex      int     `json:"post_index"`
	RelevanceScore float64 `json:"relevance_score"`
	QuickReason    string  `json:"quick_reason"`
}

// parsePrescoreResponse accepts either a JSON array of entries or one JSON
// object per line. Individual bad lines are warnings, not failures.
func parsePrescoreResponse(content string) ([]prescoreEntry, []string) {
	text := llm.StripFences(content)
	if text == "" {
		return nil, nil
	}

	var entries []prescoreEntry
	if err := json.Unmarshal([]byte(text), &entries); err == nil {
		return entries, nil
	}

	var warnings []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var entry prescoreEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			warnings = append(warnings, fmt.Sprintf("skipping malformed prescore line: %.80s", line))
			continue
		}
		entries = append(entries, entry)
	}
	return entries, warnings
}

// PartitionByPrescore splits posts on the prescore threshold. Rejected posts
// are kept for audit, never discarded.
func PartitionByPrescore(posts []voc.Post, threshold float64) (promising, rejected []voc.Post) {
	for _, post := range posts {
		if post.Prescore != nil && post.Prescore.RelevanceScore >= threshold {
			promising = append(promising, post)
		} else {
			rejected = append(rejected, post)
		}
	}
	return promising, rejected
}

func buildBatchPrompt(batch []voc.Post, seg segment.Config) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Target audience: %s\n", seg.Audience)
	if len(seg.Priorities) > 0 {
		fmt.Fprintf(&sb, "Current priorities: %s\n", strings.Join(seg.Priorities, "; "))
	}
	sb.WriteString("\nPosts, one JSON object per line:\n")

	for i, post := range batch {
		line, _ := json.Marshal(map[string]any{
			"post_index": i,
			"title":      truncateRunes(cleanForPrompt(post.Title), maxTitleChars),
			"content":    truncateRunes(cleanForPrompt(post.SelfText), maxSnippetChars),
		})
		sb.Write(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

// cleanForPrompt unescapes HTML entities and collapses control characters so
// raw platform text does not break the JSONL framing.
func cleanForPrompt(s string) string {
	s = html.UnescapeString(s)
	var sb strings.Builder
	sb.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			if !lastSpace {
				sb.WriteRune(' ')
				lastSpace = true
			}
			continue
		}
		sb.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimSpace(sb.String())
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	truncated := string(runes[:limit])
	if idx := strings.LastIndex(truncated, " "); idx > limit/2 {
		truncated = truncated[:idx]
	}
	return truncated + "..."
}
