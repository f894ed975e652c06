package synthesis

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/steve-waters-outstaffer/content-finder/internal/segment"
	"github.com/steve-waters-outstaffer/content-finder/internal/voc"
	"github.com/steve-waters-outstaffer/content-finder/pkg/llm"
)

type fakeProvider struct {
	response string
	err      error
	calls    int
	prompts  []string
}

func (f *fakeProvider) Complete(ctx context.Context, messages []llm.Message) (llm.Stream, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, msg := range messages {
		if msg.Role == "user" {
			f.prompts = append(f.prompts, msg.Content)
		}
	}
	f.calls++
	return &singleChunkStream{content: f.response}, nil
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

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testSegment() segment.Config {
	return segment.Config{Name: "founders", Audience: "Startup founders"}
}

func analyzedPosts() []voc.Post {
	return []voc.Post{
		{
			ID:        "a1",
			Title:     "Hiring overseas is a nightmare",
			Subreddit: "smallbusiness",
			Analysis:  &voc.Analysis{RelevanceScore: 8.2, PainPoint: "cross-border payroll compliance"},
		},
	}
}

func trendSignals() []voc.TrendSignal {
	return []voc.TrendSignal{
		{
			Query: "eor",
			RelatedQueries: voc.RelatedTable{
				Rising: []voc.RelatedItem{
					{Title: "eor australia", Value: 200},
					{Title: "eor pricing", Value: 150},
				},
			},
		},
		{Query: "hris"},
	}
}

func TestGenerateQueriesBothEmptyShortCircuits(t *testing.T) {
	provider := &fakeProvider{response: `["should not be called"]`}
	syn := NewSynthesizer(provider, testLogger())

	queries, warnings := syn.GenerateQueries(context.Background(), nil, nil, testSegment())
	if len(queries) != 0 || len(warnings) != 0 {
		t.Fatalf("expected silent empty result, got %v %v", queries, warnings)
	}
	if provider.calls != 0 {
		t.Fatalf("expected no model call for a quiet segment, got %d", provider.calls)
	}
}

func TestGenerateQueriesArrayResponse(t *testing.T) {
	provider := &fakeProvider{response: `["global payroll provider comparison", " eor vs own entity "]`}
	syn := NewSynthesizer(provider, testLogger())

	queries, warnings := syn.GenerateQueries(context.Background(), analyzedPosts(), trendSignals(), testSegment())
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(queries) != 2 || queries[1] != "eor vs own entity" {
		t.Fatalf("unexpected queries: %v", queries)
	}

	prompt := provider.prompts[0]
	if !strings.Contains(prompt, "cross-border payroll compliance (relevance 8.2) — r/smallbusiness | Hiring overseas is a nightmare") {
		t.Fatalf("pain point line missing from prompt:\n%s", prompt)
	}
	if !strings.Contains(prompt, "eor: rising searches include eor australia, eor pricing") {
		t.Fatalf("rising trend line missing from prompt:\n%s", prompt)
	}
	if !strings.Contains(prompt, "hris: steady interest over time") {
		t.Fatalf("steady trend line missing from prompt:\n%s", prompt)
	}
}

func TestGenerateQueriesWrappedObjectResponse(t *testing.T) {
	provider := &fakeProvider{response: `{"queries": ["remote team onboarding checklist"]}`}
	syn := NewSynthesizer(provider, testLogger())

	queries, warnings := syn.GenerateQueries(context.Background(), analyzedPosts(), nil, testSegment())
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(queries) != 1 || queries[0] != "remote team onboarding checklist" {
		t.Fatalf("unexpected queries: %v", queries)
	}
}

func TestGenerateQueriesFencedResponse(t *testing.T) {
	provider := &fakeProvider{response: "```json\n[\"payroll automation tools\"]\n```"}
	syn := NewSynthesizer(provider, testLogger())

	queries, warnings := syn.GenerateQueries(context.Background(), nil, trendSignals(), testSegment())
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(queries) != 1 || queries[0] != "payroll automation tools" {
		t.Fatalf("unexpected queries: %v", queries)
	}
}

func TestGenerateQueriesWrongStructureIsWarning(t *testing.T) {
	provider := &fakeProvider{response: `{"unexpected": true}`}
	syn := NewSynthesizer(provider, testLogger())

	queries, warnings := syn.GenerateQueries(context.Background(), analyzedPosts(), nil, testSegment())
	if len(queries) != 0 {
		t.Fatalf("expected no queries, got %v", queries)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "unexpected structure") {
		t.Fatalf("expected structure warning, got %v", warnings)
	}
}

func TestGenerateQueriesProviderErrorIsWarning(t *testing.T) {
	provider := &fakeProvider{err: errors.New("provider down")}
	syn := NewSynthesizer(provider, testLogger())

	queries, warnings := syn.GenerateQueries(context.Background(), analyzedPosts(), nil, testSegment())
	if len(queries) != 0 {
		t.Fatalf("expected no queries, got %v", queries)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "generation failed") {
		t.Fatalf("expected failure warning, got %v", warnings)
	}
}

func TestGenerateQueriesPostWithoutAnalysisSkipped(t *testing.T) {
	posts := []voc.Post{{ID: "x", Title: "no analysis"}}
	provider := &fakeProvider{response: `[]`}
	syn := NewSynthesizer(provider, testLogger())

	queries, warnings := syn.GenerateQueries(context.Background(), posts, nil, testSegment())
	if provider.calls != 0 {
		t.Fatal("posts without analysis carry no pain points, expected short circuit")
	}
	if len(queries) != 0 || len(warnings) != 0 {
		t.Fatalf("expected silent empty result, got %v %v", queries, warnings)
	}
}
