package main

import (
	"context"
	"database/sql"

	"github.com/steve-waters-outstaffer/content-finder/internal/api"
	crowsnestconfig "github.com/steve-waters-outstaffer/content-finder/internal/config"
	"github.com/steve-waters-outstaffer/content-finder/internal/discovery"
	"github.com/steve-waters-outstaffer/content-finder/internal/events"
	"github.com/steve-waters-outstaffer/content-finder/internal/history"
	"github.com/steve-waters-outstaffer/content-finder/internal/reddit"
	"github.com/steve-waters-outstaffer/content-finder/internal/scoring"
	"github.com/steve-waters-outstaffer/content-finder/internal/synthesis"
	"github.com/steve-waters-outstaffer/content-finder/internal/trends"
	"github.com/steve-waters-outstaffer/content-finder/pkg/config"
	"github.com/steve-waters-outstaffer/content-finder/pkg/database"
	"github.com/steve-waters-outstaffer/content-finder/pkg/kafka"
	"github.com/steve-waters-outstaffer/content-finder/pkg/llm"
	"github.com/steve-waters-outstaffer/content-finder/pkg/logging"
	"github.com/steve-waters-outstaffer/content-finder/pkg/monitoring"
	"github.com/steve-waters-outstaffer/content-finder/pkg/server"
	"github.com/steve-waters-outstaffer/content-finder/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("crowsnest")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Crowsnest (Voice of Customer Discovery API)")

	cfg := crowsnestconfig.LoadConfig()

	// The history database is optional: without it runs still deduplicate
	// within the process via the in-memory cache.
	var db *sql.DB
	if cfg.DatabaseURL != "" {
		dbConfig := database.DefaultConfig()
		dbConfig.URL = cfg.DatabaseURL
		conn, err := database.Connect(dbConfig, logger)
		if err != nil {
			logger.WithError(err).Warn("Database unavailable - history persists in memory only")
		} else {
			db = conn
			defer func() { _ = db.Close() }()
		}
	} else {
		logger.Warn("DATABASE_URL not set - history persists in memory only")
	}

	historyStore := history.NewSQLStore(db, logger)
	if err := historyStore.EnsureSchema(context.Background()); err != nil {
		logger.WithError(err).Warn("Failed to ensure history schema")
	}

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("crowsnest", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("crowsnest", version.Version, version.GitCommit)

	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"SEGMENTS_DIR": cfg.SegmentsDir,
	}))

	// Model provider is required for every scoring and synthesis stage
	llmCfg := llm.LoadConfig()
	provider, err := llm.NewProvider(llmCfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create LLM provider")
	}
	if llmCfg.APIKey == "" {
		logger.Warn("LLM_API_KEY not set - model calls will fail against hosted providers")
	}

	var eventPublisher *events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaClientID, logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to create Kafka producer - run events disabled")
		} else {
			defer func() { _ = producer.Close() }()
			eventPublisher = events.NewPublisher(producer, cfg.KafkaTopic, logger)
			healthChecker.AddCheck("kafka", monitoring.KafkaProducerHealthCheck(producer.GetClient()))
		}
	} else {
		logger.Warn("KAFKA_BROKERS not set - run events disabled")
	}

	// Reddit collection is optional: without a key the stage is skipped with
	// a warning on every run.
	var collector *reddit.Collector
	var enricher *reddit.Enricher
	if cfg.RedditAPIKey != "" {
		redditClient := reddit.NewClient(reddit.ClientConfig{
			APIKey:  cfg.RedditAPIKey,
			BaseURL: cfg.RedditAPIURL,
			Logger:  logger,
		})
		collector = reddit.NewCollector(reddit.CollectorConfig{
			Client:  redditClient,
			History: historyStore,
			Logger:  logger,
		})
		enricher = reddit.NewEnricher(reddit.EnricherConfig{
			Client:   redditClient,
			Provider: provider,
			Logger:   logger,
		})
	} else {
		logger.Warn("REDDIT_API_KEY not set - reddit collection disabled")
	}

	var trendsFetcher *trends.Fetcher
	if cfg.TrendsAPIKey != "" {
		trendsClient := trends.NewClient(trends.ClientConfig{
			APIKey:  cfg.TrendsAPIKey,
			BaseURL: cfg.TrendsAPIURL,
			Logger:  logger,
		})
		trendsFetcher = trends.NewFetcher(trends.FetcherConfig{
			Client: trendsClient,
			Logger: logger,
		})
	} else {
		logger.Warn("TRENDS_API_KEY not set - trends stage disabled")
	}

	orchestratorCfg := discovery.Config{
		SegmentsDir: cfg.SegmentsDir,
		Provider:    provider,
		PreScorer:   scoring.NewPreScorer(provider, logger),
		Synthesizer: synthesis.NewSynthesizer(provider, logger),
		History:     historyStore,
		Metrics:     discovery.NewMetrics(metricsCollector),
		Logger:      logger,
	}
	if collector != nil {
		orchestratorCfg.Collector = collector
		orchestratorCfg.Enricher = enricher
	}
	if trendsFetcher != nil {
		orchestratorCfg.Trends = trendsFetcher
	}
	if eventPublisher != nil {
		orchestratorCfg.Events = eventPublisher
	}
	orchestrator := discovery.NewOrchestrator(orchestratorCfg)

	router := server.SetupServiceRouter(logger, "crowsnest", healthChecker, metricsCollector)

	handlersCfg := api.HandlersConfig{
		SegmentsDir: cfg.SegmentsDir,
		Runner:      orchestrator,
		PreScorer:   scoring.NewPreScorer(provider, logger),
		Synthesizer: synthesis.NewSynthesizer(provider, logger),
		History:     historyStore,
		Logger:      logger,
	}
	if collector != nil {
		handlersCfg.Collector = collector
		handlersCfg.Enricher = enricher
	}
	if trendsFetcher != nil {
		handlersCfg.Trends = trendsFetcher
	}
	handlers := api.NewHandlers(handlersCfg)
	handlers.RegisterRoutes(router, cfg.ServiceAPIKey)

	serverCfg := server.DefaultConfig("crowsnest", cfg.Port)
	if err := server.Start(serverCfg, router, logger); err != nil {
		logger.WithError(err).Fatal("Server error")
	}
}
