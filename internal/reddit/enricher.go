package reddit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/steve-waters-outstaffer/content-finder/internal/segment"
	"github.com/steve-waters-outstaffer/content-finder/internal/voc"
	"github.com/steve-waters-outstaffer/content-finder/pkg/llm"
	"github.com/steve-waters-outstaffer/content-finder/pkg/logging"
)

const enrichTimeout = 30 * time.Second

const analysisSystemPrompt = `You are a B2B marketing analyst reviewing online discussions for a company selling recruitment, employer-of-record, AI candidate screening and HR software services.

Score how relevant a discussion is to the target audience on a 0-10 scale:
- 9-10: the author describes a burning pain the company directly solves
- 7-8: a clear pain point in the company's domain
- 5-6: adjacent topic, pain point implied but not central
- 3-4: domain mentioned in passing
- 0-2: unrelated

Respond with a single JSON object:
{"relevance_score": <number>, "reasoning": "<one or two sentences>", "identified_pain_point": "<the author's core problem in their own terms>", "solution_angle": "<one of the listed categories>"}`

// EnricherConfig configures an Enricher.
type EnricherConfig struct {
	Client   *Client
	Provider llm.Provider
	Logger   logging.Logger
}

// Enricher fetches a post's discussion thread and runs full-context
// relevance scoring. Failures never drop a post: it comes back unmodified
// with a warning, and a nil Analysis excludes it downstream.
type Enricher struct {
	client   *Client
	provider llm.Provider
	logger   logging.Logger
}

// NewEnricher creates an Enricher.
func NewEnricher(cfg EnricherConfig) *Enricher {
	return &Enricher{
		client:   cfg.Client,
		provider: cfg.Provider,
		logger:   cfg.Logger,
	}
}

// EnrichPost attaches thread comments and a full-context analysis to the
// post. Returned warnings record what went wrong for degraded posts.
func (e *Enricher) EnrichPost(ctx context.Context, post voc.Post, seg segment.Config) (voc.Post, []string) {
	var warnings []string

	threadURL := post.Permalink
	if threadURL == "" {
		threadURL = post.URL
	}

	if threadURL != "" && e.client != nil {
		comments, err := e.client.FetchComments(ctx, threadURL)
		if err != nil {
			e.logger.WithError(err).WithField("post_id", post.ID).Warn("Comment fetch failed, scoring without thread")
			warnings = append(warnings, fmt.Sprintf("post %s: comment fetch failed: %v", post.ID, err))
		} else {
			post.Comments = comments
		}
	}

	analysis, err := e.analyze(ctx, post, seg)
	if err != nil {
		if errors.Is(err, llm.ErrEmptyResponse) {
			e.logger.WithField("post_id", post.ID).Warn("Model returned empty analysis")
			warnings = append(warnings, fmt.Sprintf("post %s: empty model response", post.ID))
		} else {
			e.logger.WithError(err).WithField("post_id", post.ID).Warn("Post analysis failed")
			warnings = append(warnings, fmt.Sprintf("post %s: analysis failed: %v", post.ID, err))
		}
		return post, warnings
	}

	post.Analysis = analysis
	return post, warnings
}

func (e *Enricher) analyze(ctx context.Context, post voc.Post, seg segment.Config) (*voc.Analysis, error) {
	callCtx, cancel := context.WithTimeout(ctx, enrichTimeout)
	defer cancel()

	stream, err := e.provider.Complete(callCtx, []llm.Message{
		{Role: "system", Content: analysisSystemPrompt},
		{Role: "user", Content: buildAnalysisPrompt(post, seg)},
	})
	if err != nil {
		return nil, err
	}

	content, err := llm.CollectText(stream)
	if err != nil {
		return nil, err
	}

	var analysis voc.Analysis
	if err := llm.DecodeJSON(content, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

func buildAnalysisPrompt(post voc.Post, seg segment.Config) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Target audience: %s\n", seg.Audience)
	if len(seg.Priorities) > 0 {
		fmt.Fprintf(&sb, "Current content priorities: %s\n", strings.Join(seg.Priorities, "; "))
	}
	fmt.Fprintf(&sb, "Solution categories: %s\n\n", strings.Join(seg.SolutionAngles, ", "))

	fmt.Fprintf(&sb, "Title: %s\n", post.Title)
	fmt.Fprintf(&sb, "Subreddit: r/%s\n\n", post.Subreddit)
	if post.SelfText != "" {
		fmt.Fprintf(&sb, "Post Body:\n%s\n", post.SelfText)
	}
	if len(post.Comments) > 0 {
		sb.WriteString("\nTop Comments:\n")
		for _, comment := range post.Comments {
			sb.WriteString("---\n")
			sb.WriteString(comment)
			sb.WriteString("\n")
		}
	}

	return sb.String()
}
