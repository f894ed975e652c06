// Package api exposes the discovery pipeline over HTTP: one full-run
// endpoint plus staged endpoints that run a single stage on caller-supplied
// input, for debugging and partial reruns.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/steve-waters-outstaffer/content-finder/internal/history"
	"github.com/steve-waters-outstaffer/content-finder/internal/reddit"
	"github.com/steve-waters-outstaffer/content-finder/internal/scoring"
	"github.com/steve-waters-outstaffer/content-finder/internal/segment"
	"github.com/steve-waters-outstaffer/content-finder/internal/voc"
	"github.com/steve-waters-outstaffer/content-finder/pkg/logging"
	"github.com/steve-waters-outstaffer/content-finder/pkg/middleware"
)

// DiscoveryRunner runs a full discovery pass.
type DiscoveryRunner interface {
	Run(ctx context.Context, segmentName string, overrides map[string]any) (*voc.Result, error)
}

type postCollector interface {
	FetchPosts(ctx context.Context, seg segment.Config) reddit.FetchResult
}

type postScorer interface {
	ScorePosts(ctx context.Context, posts []voc.Post, seg segment.Config) ([]voc.Post, []string)
}

type postEnricher interface {
	EnrichPost(ctx context.Context, post voc.Post, seg segment.Config) (voc.Post, []string)
}

type trendsFetcher interface {
	FetchTrends(ctx context.Context, seg segment.Config) ([]voc.TrendSignal, []string, error)
}

type querySynthesizer interface {
	GenerateQueries(ctx context.Context, posts []voc.Post, signals []voc.TrendSignal, seg segment.Config) ([]string, []string)
}

// HandlersConfig wires the HTTP handlers. Nil stage components cause their
// endpoints to report 503.
type HandlersConfig struct {
	SegmentsDir string
	Runner      DiscoveryRunner
	Collector   postCollector
	PreScorer   postScorer
	Enricher    postEnricher
	Trends      trendsFetcher
	Synthesizer querySynthesizer
	History     history.Store
	Logger      logging.Logger
}

// Handlers holds the HTTP handlers for the discovery service.
type Handlers struct {
	segmentsDir string
	runner      DiscoveryRunner
	collector   postCollector
	prescorer   postScorer
	enricher    postEnricher
	trends      trendsFetcher
	synthesizer querySynthesizer
	history     history.Store
	logger      logging.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(cfg HandlersConfig) *Handlers {
	return &Handlers{
		segmentsDir: cfg.SegmentsDir,
		runner:      cfg.Runner,
		collector:   cfg.Collector,
		prescorer:   cfg.PreScorer,
		enricher:    cfg.Enricher,
		trends:      cfg.Trends,
		synthesizer: cfg.Synthesizer,
		history:     cfg.History,
		logger:      cfg.Logger,
	}
}

// RegisterRoutes mounts the discovery API under /api/crowsnest, guarded by
// the service API key when one is configured.
func (h *Handlers) RegisterRoutes(router *gin.Engine, apiKey string) {
	group := router.Group("/api/crowsnest")
	group.Use(middleware.APIKeyMiddleware(apiKey))

	group.GET("/segments", h.ListSegments)
	group.POST("/discover", h.Discover)
	group.POST("/fetch-reddit", h.FetchReddit)
	group.POST("/pre-score", h.PreScore)
	group.POST("/enrich", h.Enrich)
	group.POST("/fetch-trends", h.FetchTrends)
	group.POST("/generate-queries", h.GenerateQueries)
	group.DELETE("/history/:segment", h.PurgeHistory)
}

type segmentRequest struct {
	Segment   string         `json:"segment"`
	Overrides map[string]any `json:"overrides,omitempty"`
}

type stageRequest struct {
	Segment   string            `json:"segment"`
	Overrides map[string]any    `json:"overrides,omitempty"`
	Posts     []voc.Post        `json:"posts,omitempty"`
	Trends    []voc.TrendSignal `json:"trends,omitempty"`
}

// loadSegment resolves the request's segment config or writes the error
// response and returns false.
func (h *Handlers) loadSegment(c *gin.Context, name string, overrides map[string]any) (segment.Config, bool) {
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "segment is required"})
		return segment.Config{}, false
	}
	seg, err := segment.Load(h.segmentsDir, name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return segment.Config{}, false
	}
	if len(overrides) > 0 {
		if seg, err = seg.Merge(overrides); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return segment.Config{}, false
		}
	}
	return seg, true
}

// ListSegments returns the configured segment names.
func (h *Handlers) ListSegments(c *gin.Context) {
	names, err := segment.List(h.segmentsDir)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list segments"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"segments": names})
}

// Discover runs the full pipeline for a segment.
func (h *Handlers) Discover(c *gin.Context) {
	if h.runner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "discovery unavailable"})
		return
	}
	var req segmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if req.Segment == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "segment is required"})
		return
	}

	result, err := h.runner.Run(c.Request.Context(), req.Segment, req.Overrides)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// FetchReddit runs only the collection stage.
func (h *Handlers) FetchReddit(c *gin.Context) {
	if h.collector == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "collection API not configured"})
		return
	}
	var req segmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	seg, ok := h.loadSegment(c, req.Segment, req.Overrides)
	if !ok {
		return
	}

	result := h.collector.FetchPosts(c.Request.Context(), seg)
	c.JSON(http.StatusOK, gin.H{
		"candidates": result.Candidates,
		"rejected":   result.Rejected,
		"warnings":   result.Warnings,
	})
}

// PreScore runs the batched prescore over caller-supplied posts.
func (h *Handlers) PreScore(c *gin.Context) {
	if h.prescorer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model provider not configured"})
		return
	}
	var req stageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	seg, ok := h.loadSegment(c, req.Segment, req.Overrides)
	if !ok {
		return
	}

	scored, warnings := h.prescorer.ScorePosts(c.Request.Context(), req.Posts, seg)
	promising, rejected := scoring.PartitionByPrescore(scored, seg.PrescoreThreshold)
	c.JSON(http.StatusOK, gin.H{
		"promising": promising,
		"rejected":  rejected,
		"warnings":  warnings,
	})
}

// Enrich runs full-context scoring over caller-supplied posts.
func (h *Handlers) Enrich(c *gin.Context) {
	if h.enricher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model provider not configured"})
		return
	}
	var req stageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	seg, ok := h.loadSegment(c, req.Segment, req.Overrides)
	if !ok {
		return
	}

	var warnings []string
	enriched := make([]voc.Post, 0, len(req.Posts))
	for _, post := range req.Posts {
		out, postWarnings := h.enricher.EnrichPost(c.Request.Context(), post, seg)
		warnings = append(warnings, postWarnings...)
		enriched = append(enriched, out)
	}

	accepted, rejected := scoring.FilterHighValue(enriched, seg.AIRelevanceThreshold)
	c.JSON(http.StatusOK, gin.H{
		"accepted": accepted,
		"rejected": rejected,
		"warnings": warnings,
	})
}

// FetchTrends runs only the trends stage.
func (h *Handlers) FetchTrends(c *gin.Context) {
	if h.trends == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "trends API not configured"})
		return
	}
	var req segmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	seg, ok := h.loadSegment(c, req.Segment, req.Overrides)
	if !ok {
		return
	}

	signals, warnings, err := h.trends.FetchTrends(c.Request.Context(), seg)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "warnings": warnings})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trends": signals, "warnings": warnings})
}

// GenerateQueries synthesizes curated queries from caller-supplied stage
// outputs.
func (h *Handlers) GenerateQueries(c *gin.Context) {
	if h.synthesizer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model provider not configured"})
		return
	}
	var req stageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	seg, ok := h.loadSegment(c, req.Segment, req.Overrides)
	if !ok {
		return
	}

	queries, warnings := h.synthesizer.GenerateQueries(c.Request.Context(), req.Posts, req.Trends, seg)
	c.JSON(http.StatusOK, gin.H{"queries": queries, "warnings": warnings})
}

// PurgeHistory clears the processed-post ledger for a segment.
func (h *Handlers) PurgeHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history store not configured"})
		return
	}
	name := segment.Slug(c.Param("segment"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "segment is required"})
		return
	}
	if err := h.history.Purge(c.Request.Context(), name); err != nil {
		h.logger.WithError(err).WithField("segment", name).Error("History purge failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to purge history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"purged": name})
}
