// Package events publishes discovery run summaries to Kafka. The publisher
// is optional: a nil *Publisher records nothing, so runs work without a
// broker.
package events

import (
	"context"

	"github.com/steve-waters-outstaffer/content-finder/internal/voc"
	"github.com/steve-waters-outstaffer/content-finder/pkg/kafka"
	"github.com/steve-waters-outstaffer/content-finder/pkg/logging"
)

// DefaultTopic receives run-completed events.
const DefaultTopic = "crowsnest.discovery_runs"

// RunCompletedEvent is the wire payload for a finished discovery run.
type RunCompletedEvent struct {
	Segment    string   `json:"segment"`
	RunID      string   `json:"run_id"`
	Posts      int      `json:"posts"`
	Queries    int      `json:"queries"`
	Warnings   []string `json:"warnings"`
	DurationMS int64    `json:"duration_ms"`
}

// Publisher emits run summaries to a Kafka topic.
type Publisher struct {
	producer *kafka.Producer
	topic    string
	logger   logging.Logger
}

// NewPublisher creates a Publisher. Topic falls back to DefaultTopic.
func NewPublisher(producer *kafka.Producer, topic string, logger logging.Logger) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{producer: producer, topic: topic, logger: logger}
}

// PublishRunCompleted emits a summary event for the run. Publish failures
// are logged, never surfaced: the run result is already complete.
func (p *Publisher) PublishRunCompleted(ctx context.Context, result *voc.Result) {
	if p == nil || p.producer == nil || result == nil {
		return
	}

	event := RunCompletedEvent{
		Segment:    result.Segment,
		RunID:      result.RunID,
		Posts:      len(result.RedditPosts),
		Queries:    len(result.CuratedQueries),
		Warnings:   result.Warnings,
		DurationMS: result.CompletedAt.Sub(result.StartedAt).Milliseconds(),
	}

	if err := p.producer.ProduceJSON(ctx, p.topic, result.Segment, event, nil); err != nil {
		p.logger.WithError(err).WithField("run_id", result.RunID).Warn("Failed to publish run event")
		return
	}
	p.logger.WithFields(logging.Fields{
		"run_id": result.RunID,
		"topic":  p.topic,
	}).Debug("Published run event")
}
