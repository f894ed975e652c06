package reddit

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/steve-waters-outstaffer/content-finder/internal/voc"
	"github.com/steve-waters-outstaffer/content-finder/pkg/llm"
)

type fakeProvider struct {
	content  string
	err      error
	lastUser string
}

func (f *fakeProvider) Complete(ctx context.Context, messages []llm.Message) (llm.Stream, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, msg := range messages {
		if msg.Role == "user" {
			f.lastUser = msg.Content
		}
	}
	return &singleChunkStream{content: f.content}, nil
}

type singleChunkStream struct {
	content string
	done    bool
}

func (s *singleChunkStream) Recv() (llm.Chunk, error) {
	if s.done {
		return llm.Chunk{}, io.EOF
	}
	s.done = true
	return llm.Chunk{Content: s.content}, nil
}

func (s *singleChunkStream) Close() error { return nil }

func TestEnrichPostAttachesAnalysis(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"body":"we switched to an EOR last year"},{"body":"[deleted]"}]`))
	})
	provider := &fakeProvider{content: `{"relevance_score": 8.5, "reasoning": "clear pain", "identified_pain_point": "global hiring compliance", "solution_angle": "EOR"}`}

	enricher := NewEnricher(EnricherConfig{Client: client, Provider: provider, Logger: testLogger()})

	post := voc.Post{ID: "p1", Title: "How do you hire overseas?", Subreddit: "startups", Permalink: "https://reddit.com/r/startups/p1", SelfText: "We want to hire in the Philippines."}
	enriched, warnings := enricher.EnrichPost(context.Background(), post, testSegment())

	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if enriched.Analysis == nil {
		t.Fatal("expected analysis attached")
	}
	if enriched.Analysis.RelevanceScore != 8.5 || enriched.Analysis.SolutionAngle != "EOR" {
		t.Fatalf("unexpected analysis: %+v", enriched.Analysis)
	}
	if len(enriched.Comments) != 1 {
		t.Fatalf("expected 1 usable comment, got %v", enriched.Comments)
	}
	if provider.lastUser == "" || !strings.Contains(provider.lastUser, "we switched to an EOR") {
		t.Fatal("expected comment transcript in the prompt")
	}
}

func TestEnrichPostMalformedModelOutput(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	provider := &fakeProvider{content: "I'd rate this about a seven."}

	enricher := NewEnricher(EnricherConfig{Client: client, Provider: provider, Logger: testLogger()})

	post := voc.Post{ID: "p2", Title: "t", Permalink: "u"}
	enriched, warnings := enricher.EnrichPost(context.Background(), post, testSegment())

	if enriched.Analysis != nil {
		t.Fatal("expected no analysis for malformed output")
	}
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", warnings)
	}
}

func TestEnrichPostEmptyModelOutput(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	provider := &fakeProvider{content: "   "}

	enricher := NewEnricher(EnricherConfig{Client: client, Provider: provider, Logger: testLogger()})

	enriched, warnings := enricher.EnrichPost(context.Background(), voc.Post{ID: "p3", Title: "t", Permalink: "u"}, testSegment())

	if enriched.Analysis != nil {
		t.Fatal("expected no analysis for empty output")
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "empty") {
		t.Fatalf("expected empty-response warning, got %v", warnings)
	}
}

func TestEnrichPostCommentFetchFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	provider := &fakeProvider{content: `{"relevance_score": 7, "reasoning": "r", "identified_pain_point": "p", "solution_angle": "None"}`}

	enricher := NewEnricher(EnricherConfig{Client: client, Provider: provider, Logger: testLogger()})

	enriched, warnings := enricher.EnrichPost(context.Background(), voc.Post{ID: "p4", Title: "t", Permalink: "u"}, testSegment())

	// comment failure degrades, scoring still runs on the post alone
	if enriched.Analysis == nil {
		t.Fatal("expected analysis despite comment failure")
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "comment fetch failed") {
		t.Fatalf("expected comment-fetch warning, got %v", warnings)
	}
}

func TestEnrichPostProviderError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("provider down")}
	enricher := NewEnricher(EnricherConfig{Provider: provider, Logger: testLogger()})

	enriched, warnings := enricher.EnrichPost(context.Background(), voc.Post{ID: "p5", Title: "t"}, testSegment())

	if enriched.Analysis != nil {
		t.Fatal("expected no analysis when the provider errors")
	}
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", warnings)
	}
}
