// Package discovery sequences the voice-of-customer pipeline for one
// segment: collection, two-phase scoring, trend correlation and query
// synthesis, with per-stage fault isolation and a timestamped log trail.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/steve-waters-outstaffer/content-finder/internal/history"
	"github.com/steve-waters-outstaffer/content-finder/internal/reddit"
	"github.com/steve-waters-outstaffer/content-finder/internal/scoring"
	"github.com/steve-waters-outstaffer/content-finder/internal/segment"
	"github.com/steve-waters-outstaffer/content-finder/internal/voc"
	"github.com/steve-waters-outstaffer/content-finder/pkg/llm"
	"github.com/steve-waters-outstaffer/content-finder/pkg/logging"
)

// Run states recorded in the result's log trail. Bracketed stages only
// appear when the segment enables them.
const (
	StateInitialized        = "INITIALIZED"
	StateConfigLoaded       = "CONFIG_LOADED"
	StateRedditFetched      = "REDDIT_FETCHED"
	StateRedditPrescored    = "REDDIT_PRESCORED"
	StateRedditEnriched     = "REDDIT_ENRICHED"
	StateRedditFiltered     = "REDDIT_FILTERED"
	StateTrendsFetched      = "TRENDS_FETCHED"
	StateQueriesSynthesized = "QUERIES_SYNTHESIZED"
	StateComplete           = "COMPLETE"
)

// RejectLowPrescore keys prescore-rejected posts in the result's rejected
// map, alongside the collection-stage reasons.
const RejectLowPrescore = "low_prescore"

// postCollector is the collection stage surface.
type postCollector interface {
	FetchPosts(ctx context.Context, seg segment.Config) reddit.FetchResult
}

// postScorer is the batched prescore surface.
type postScorer interface {
	ScorePosts(ctx context.Context, posts []voc.Post, seg segment.Config) ([]voc.Post, []string)
}

// postEnricher is the full-context scoring surface.
type postEnricher interface {
	EnrichPost(ctx context.Context, post voc.Post, seg segment.Config) (voc.Post, []string)
}

// trendsFetcher is the trends stage surface.
type trendsFetcher interface {
	FetchTrends(ctx context.Context, seg segment.Config) ([]voc.TrendSignal, []string, error)
}

// querySynthesizer is the curated-query stage surface.
type querySynthesizer interface {
	GenerateQueries(ctx context.Context, posts []voc.Post, signals []voc.TrendSignal, seg segment.Config) ([]string, []string)
}

// RunPublisher receives completed run summaries. Implementations must accept
// being called with every run, including degraded ones.
type RunPublisher interface {
	PublishRunCompleted(ctx context.Context, result *voc.Result)
}

// Config wires an Orchestrator. Provider is required; Collector, Enricher
// and Trends may be nil when their upstream credential is not configured, in
// which case the enabled stage is skipped with a warning.
type Config struct {
	SegmentsDir string
	Provider    llm.Provider
	Collector   postCollector
	PreScorer   postScorer
	Enricher    postEnricher
	Trends      trendsFetcher
	Synthesizer querySynthesizer
	History     history.Store
	Events      RunPublisher
	Metrics     *Metrics
	Logger      logging.Logger
}

// Orchestrator runs discovery for one segment at a time.
type Orchestrator struct {
	segmentsDir string
	provider    llm.Provider
	collector   postCollector
	prescorer   postScorer
	enricher    postEnricher
	trends      trendsFetcher
	synthesizer querySynthesizer
	history     history.Store
	events      RunPublisher
	metrics     *Metrics
	logger      logging.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg Config) *Orchestrator {
	return &Orchestrator{
		segmentsDir: cfg.SegmentsDir,
		provider:    cfg.Provider,
		collector:   cfg.Collector,
		prescorer:   cfg.PreScorer,
		enricher:    cfg.Enricher,
		trends:      cfg.Trends,
		synthesizer: cfg.Synthesizer,
		history:     cfg.History,
		events:      cfg.Events,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}
}

// Run executes a full discovery run. Only configuration errors are returned:
// an unknown segment, bad overrides, or a missing model provider. Everything
// after the stages start is absorbed into warnings and the log trail, and the
// run reaches COMPLETE.
func (o *Orchestrator) Run(ctx context.Context, segmentName string, overrides map[string]any) (*voc.Result, error) {
	if o.provider == nil {
		return nil, errors.New("model provider is required: every stage depends on it")
	}

	seg, err := segment.Load(o.segmentsDir, segmentName)
	if err != nil {
		return nil, err
	}
	if len(overrides) > 0 {
		if seg, err = seg.Merge(overrides); err != nil {
			return nil, err
		}
	}

	runID := uuid.NewString()
	run := &runState{
		logger: o.logger.WithFields(logging.Fields{"segment": seg.Name, "run_id": runID}),
		result: &voc.Result{
			Segment:        seg.Name,
			RunID:          runID,
			State:          StateInitialized,
			StartedAt:      time.Now().UTC(),
			RedditRejected: make(map[string][]voc.Post),
		},
	}
	run.log("info", "Discovery run started")
	run.setState(StateConfigLoaded)

	o.metrics.runStarted(seg.Name)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		o.runRedditPipeline(groupCtx, seg, run)
		return nil
	})
	group.Go(func() error {
		o.runTrendsPipeline(groupCtx, seg, run)
		return nil
	})
	// stage goroutines absorb their own failures
	_ = group.Wait()

	o.runSynthesis(ctx, seg, run)

	run.setState(StateComplete)
	run.result.CompletedAt = time.Now().UTC()
	o.metrics.addWarnings(seg.Name, len(run.result.Warnings))

	run.logger.WithFields(logging.Fields{
		"posts":    len(run.result.RedditPosts),
		"queries":  len(run.result.CuratedQueries),
		"warnings": len(run.result.Warnings),
		"duration": run.result.CompletedAt.Sub(run.result.StartedAt).String(),
	}).Info("Discovery run complete")

	if o.events != nil {
		o.events.PublishRunCompleted(ctx, run.result)
	}
	return run.result, nil
}

func (o *Orchestrator) runRedditPipeline(ctx context.Context, seg segment.Config, run *runState) {
	if !seg.RedditEnabled() {
		return
	}
	if o.collector == nil || o.prescorer == nil || o.enricher == nil {
		run.log("warning", "Reddit stage skipped: collection API not configured")
		run.warn("reddit stage skipped: collection API not configured")
		return
	}

	start := time.Now()
	defer func() { o.metrics.observeStage(seg.Name, "reddit", time.Since(start)) }()

	fetched := o.collector.FetchPosts(ctx, seg)
	run.addWarnings(fetched.Warnings)
	run.mergeRejected(fetched.Rejected)
	run.setState(StateRedditFetched)
	run.log("info", fmt.Sprintf("Fetched %d raw posts, %d candidates", len(fetched.Raw), len(fetched.Candidates)))
	o.metrics.addPostsFetched(seg.Name, len(fetched.Raw))

	scored, warnings := o.prescorer.ScorePosts(ctx, fetched.Candidates, seg)
	run.addWarnings(warnings)
	run.setState(StateRedditPrescored)

	promising, lowPrescore := scoring.PartitionByPrescore(scored, seg.PrescoreThreshold)
	run.addRejected(RejectLowPrescore, lowPrescore)
	run.log("info", fmt.Sprintf("Prescore kept %d of %d candidates", len(promising), len(scored)))

	enriched := make([]voc.Post, 0, len(promising))
	for _, post := range promising {
		out, warnings := o.enricher.EnrichPost(ctx, post, seg)
		run.addWarnings(warnings)
		enriched = append(enriched, out)
	}
	run.setState(StateRedditEnriched)

	accepted, lowScore := scoring.FilterHighValue(enriched, seg.AIRelevanceThreshold)
	run.setPosts(accepted, lowScore)
	run.setState(StateRedditFiltered)
	run.log("info", fmt.Sprintf("Final filter accepted %d of %d enriched posts", len(accepted), len(enriched)))
	o.metrics.addPostsAccepted(seg.Name, len(accepted))

	if o.history != nil && len(scored) > 0 {
		ids := make([]string, 0, len(scored))
		for _, post := range scored {
			ids = append(ids, post.ID)
		}
		o.history.Mark(ctx, seg.Name, ids)
	}
}

func (o *Orchestrator) runTrendsPipeline(ctx context.Context, seg segment.Config, run *runState) {
	if !seg.TrendsEnabled() {
		return
	}
	if o.trends == nil {
		run.log("warning", "Trends stage skipped: trends API not configured")
		run.warn("trends stage skipped: trends API not configured")
		return
	}

	start := time.Now()
	defer func() { o.metrics.observeStage(seg.Name, "trends", time.Since(start)) }()

	signals, warnings, err := o.trends.FetchTrends(ctx, seg)
	run.addWarnings(warnings)
	if err != nil {
		run.log("error", fmt.Sprintf("Trends stage failed: %v", err))
		run.warn(fmt.Sprintf("trends stage failed: %v", err))
		return
	}
	run.setSignals(signals)
	run.setState(StateTrendsFetched)
	run.log("info", fmt.Sprintf("Fetched %d trend signals", len(signals)))
}

func (o *Orchestrator) runSynthesis(ctx context.Context, seg segment.Config, run *runState) {
	if !seg.CuratedQueriesEnabled() || o.synthesizer == nil {
		return
	}

	start := time.Now()
	defer func() { o.metrics.observeStage(seg.Name, "synthesis", time.Since(start)) }()

	queries, warnings := o.synthesizer.GenerateQueries(ctx, run.result.RedditPosts, run.result.GoogleTrends, seg)
	run.addWarnings(warnings)
	run.result.CuratedQueries = queries
	run.setState(StateQueriesSynthesized)
	run.log("info", fmt.Sprintf("Synthesized %d curated queries", len(queries)))
}

// runState guards the shared result while the reddit and trends pipelines
// run concurrently.
type runState struct {
	mu     sync.Mutex
	result *voc.Result
	logger *logrus.Entry
}

func (r *runState) setState(state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.State = state
	r.result.Logs = append(r.result.Logs, voc.LogEntry{
		Level:     "info",
		Message:   "state: " + state,
		Timestamp: time.Now().UTC(),
	})
}

func (r *runState) log(level, message string) {
	r.mu.Lock()
	r.result.Logs = append(r.result.Logs, voc.LogEntry{
		Level:     level,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
	r.mu.Unlock()

	switch level {
	case "error":
		r.logger.Error(message)
	case "warning":
		r.logger.Warn(message)
	default:
		r.logger.Info(message)
	}
}

func (r *runState) warn(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.Warnings = append(r.result.Warnings, message)
}

func (r *runState) addWarnings(warnings []string) {
	if len(warnings) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.Warnings = append(r.result.Warnings, warnings...)
}

func (r *runState) mergeRejected(rejected map[string][]voc.Post) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for reason, posts := range rejected {
		r.result.RedditRejected[reason] = append(r.result.RedditRejected[reason], posts...)
	}
}

func (r *runState) addRejected(reason string, posts []voc.Post) {
	if len(posts) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.RedditRejected[reason] = append(r.result.RedditRejected[reason], posts...)
}

func (r *runState) setPosts(accepted, lowScore []voc.Post) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.RedditPosts = accepted
	r.result.RedditLowScore = lowScore
}

func (r *runState) setSignals(signals []voc.TrendSignal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.GoogleTrends = signals
}
