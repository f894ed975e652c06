package scoring

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/steve-waters-outstaffer/content-finder/internal/segment"
	"github.com/steve-waters-outstaffer/content-finder/internal/voc"
	"github.com/steve-waters-outstaffer/content-finder/pkg/llm"
)

type fakeProvider struct {
	responses []string
	err       error
	calls     int
	prompts   []string
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
	content := ""
	if f.calls < len(f.responses) {
		content = f.responses[f.calls]
	}
	f.calls++
	return &singleChunkStream{content: content}, nil
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
	return segment.Config{Name: "founders", Audience: "Startup founders", PrescoreThreshold: 6.0}
}

func makePosts(n int) []voc.Post {
	posts := make([]voc.Post, n)
	for i := range posts {
		posts[i] = voc.Post{ID: fmt.Sprintf("p%d", i), Title: fmt.Sprintf("post %d", i), SelfText: "body"}
	}
	return posts
}

func TestScorePostsMergesByIndex(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		`{"post_index": 0, "relevance_score": 8, "quick_reason": "hiring pain"}
{"post_index": 1, "relevance_score": 3, "quick_reason": "off topic"}`,
	}}

	scorer := NewPreScorer(provider, testLogger())
	scored, warnings := scorer.ScorePosts(context.Background(), makePosts(2), testSegment())

	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if scored[0].Prescore.RelevanceScore != 8 || scored[1].Prescore.RelevanceScore != 3 {
		t.Fatalf("unexpected scores: %+v %+v", scored[0].Prescore, scored[1].Prescore)
	}
}

func TestScorePostsMalformedLineSkippedWithWarning(t *testing.T) {
	// 3 posts, 2 valid entries, 1 garbage line: valid scores merge back to
	// their posts, the unscored post gets a neutral default
	provider := &fakeProvider{responses: []string{
		`{"post_index": 0, "relevance_score": 9, "quick_reason": "strong"}
not json at all
{"post_index": 2, "relevance_score": 7, "quick_reason": "decent"}`,
	}}

	scorer := NewPreScorer(provider, testLogger())
	scored, warnings := scorer.ScorePosts(context.Background(), makePosts(3), testSegment())

	if len(warnings) != 1 || !strings.Contains(warnings[0], "malformed") {
		t.Fatalf("expected one malformed-line warning, got %v", warnings)
	}
	if scored[0].Prescore.RelevanceScore != 9 {
		t.Fatalf("expected p0 score 9, got %v", scored[0].Prescore.RelevanceScore)
	}
	if scored[2].Prescore.RelevanceScore != 7 {
		t.Fatalf("expected p2 score 7, got %v", scored[2].Prescore.RelevanceScore)
	}
	if scored[1].Prescore == nil || scored[1].Prescore.RelevanceScore != neutralScore {
		t.Fatalf("expected neutral default for unscored post, got %+v", scored[1].Prescore)
	}
}

func TestScorePostsUnusableResponseFallsBackUniformly(t *testing.T) {
	provider := &fakeProvider{responses: []string{"I cannot score these posts."}}

	scorer := NewPreScorer(provider, testLogger())
	scored, warnings := scorer.ScorePosts(context.Background(), makePosts(3), testSegment())

	if len(warnings) == 0 {
		t.Fatal("expected warnings for unusable response")
	}
	for i, post := range scored {
		if post.Prescore == nil || post.Prescore.RelevanceScore != neutralScore {
			t.Fatalf("post %d: expected uniform neutral score, got %+v", i, post.Prescore)
		}
	}
}

func TestScorePostsProviderErrorFallsBack(t *testing.T) {
	provider := &fakeProvider{err: errors.New("provider down")}

	scorer := NewPreScorer(provider, testLogger())
	scored, warnings := scorer.ScorePosts(context.Background(), makePosts(2), testSegment())

	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", warnings)
	}
	for _, post := range scored {
		if post.Prescore == nil || post.Prescore.RelevanceScore != neutralScore {
			t.Fatalf("expected neutral score, got %+v", post.Prescore)
		}
	}
}

func TestScorePostsArrayResponse(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		`[{"post_index": 0, "relevance_score": 6.5, "quick_reason": "ok"}]`,
	}}

	scorer := NewPreScorer(provider, testLogger())
	scored, warnings := scorer.ScorePosts(context.Background(), makePosts(1), testSegment())

	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if scored[0].Prescore.RelevanceScore != 6.5 {
		t.Fatalf("unexpected score: %+v", scored[0].Prescore)
	}
}

func TestScorePostsBatches(t *testing.T) {
	responses := make([]string, 2)
	for b := range responses {
		var sb strings.Builder
		for i := range batchSize {
			fmt.Fprintf(&sb, `{"post_index": %d, "relevance_score": 5, "quick_reason": "x"}`+"\n", i)
		}
		responses[b] = sb.String()
	}
	provider := &fakeProvider{responses: responses}

	scorer := NewPreScorer(provider, testLogger())
	scored, _ := scorer.ScorePosts(context.Background(), makePosts(30), testSegment())

	if provider.calls != 2 {
		t.Fatalf("expected 2 batch calls for 30 posts, got %d", provider.calls)
	}
	for i, post := range scored {
		if post.Prescore == nil {
			t.Fatalf("post %d missing prescore", i)
		}
	}
}

func TestScorePostsEmptyInput(t *testing.T) {
	scorer := NewPreScorer(&fakeProvider{}, testLogger())
	scored, warnings := scorer.ScorePosts(context.Background(), nil, testSegment())
	if len(scored) != 0 || len(warnings) != 0 {
		t.Fatalf("expected empty output for empty input, got %v %v", scored, warnings)
	}
}

func TestPartitionByPrescore(t *testing.T) {
	posts := []voc.Post{
		{ID: "a", Prescore: &voc.Prescore{RelevanceScore: 8}},
		{ID: "b", Prescore: &voc.Prescore{RelevanceScore: 4}},
		{ID: "c", Prescore: &voc.Prescore{RelevanceScore: 6}},
		{ID: "d"},
	}

	promising, rejected := PartitionByPrescore(posts, 6.0)

	if len(promising) != 2 || promising[0].ID != "a" || promising[1].ID != "c" {
		t.Fatalf("unexpected promising set: %+v", promising)
	}
	if len(rejected) != 2 {
		t.Fatalf("expected 2 rejected, got %d", len(rejected))
	}
	if len(promising)+len(rejected) != len(posts) {
		t.Fatal("partition lost posts")
	}
}

func TestCleanForPrompt(t *testing.T) {
	in := "We&amp;#39;re hiring\n\nfast\tand loose"
	got := cleanForPrompt(in)
	if strings.ContainsAny(got, "\n\t") {
		t.Fatalf("expected control characters collapsed, got %q", got)
	}
	if !strings.Contains(got, "hiring fast and loose") {
		t.Fatalf("unexpected cleanup result: %q", got)
	}
}
