package config

import (
	"strings"

	"github.com/steve-waters-outstaffer/content-finder/pkg/config"
)

// Config stores environment configuration for Crowsnest.
type Config struct {
	Port          string
	DatabaseURL   string
	SegmentsDir   string
	RedditAPIKey  string
	RedditAPIURL  string
	TrendsAPIKey  string
	TrendsAPIURL  string
	ServiceAPIKey string
	KafkaBrokers  []string
	KafkaTopic    string
	KafkaClientID string
}

// LoadConfig loads the Crowsnest configuration from environment variables.
// The model-provider settings live in pkg/llm's own LoadConfig.
func LoadConfig() Config {
	return Config{
		Port:          config.GetEnv("PORT", "18030"),
		DatabaseURL:   config.GetEnv("DATABASE_URL", ""),
		SegmentsDir:   config.GetEnv("SEGMENTS_DIR", "segments"),
		RedditAPIKey:  config.GetEnv("REDDIT_API_KEY", ""),
		RedditAPIURL:  config.GetEnv("REDDIT_API_URL", ""),
		TrendsAPIKey:  config.GetEnv("TRENDS_API_KEY", config.GetEnv("REDDIT_API_KEY", "")),
		TrendsAPIURL:  config.GetEnv("TRENDS_API_URL", ""),
		ServiceAPIKey: config.GetEnv("CROWSNEST_API_KEY", ""),
		KafkaBrokers:  parseBrokerList(config.GetEnv("KAFKA_BROKERS", "")),
		KafkaTopic:    config.GetEnv("DISCOVERY_KAFKA_TOPIC", "crowsnest.discovery_runs"),
		KafkaClientID: config.GetEnv("KAFKA_CLIENT_ID", "crowsnest"),
	}
}

func parseBrokerList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var result []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
