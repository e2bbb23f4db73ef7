// Package events publishes newly collected items to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/econ-news-radar/backend/internal/pipeline"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Publisher sends one message per new item, keyed by item id so that
// consumers can compact the topic.
type Publisher struct {
	writer   messageWriter
	attempts int
	backoff  time.Duration
	log      *slog.Logger
}

// Option tweaks a Publisher.
type Option func(*Publisher)

// WithRetry sets how many times a batch is written and the base backoff,
// which doubles after every failed attempt.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(p *Publisher) {
		p.attempts = attempts
		p.backoff = backoff
	}
}

func NewPublisher(w messageWriter, log *slog.Logger, opts ...Option) *Publisher {
	p := &Publisher{writer: w, attempts: 3, backoff: time.Second, log: log}
	for _, opt := range opts {
		opt(p)
	}
	if p.attempts <= 0 {
		p.attempts = 1
	}
	return p
}

// NewWriter builds the kafka-go writer used in production.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireOne,
	}
}

func (p *Publisher) Name() string { return "kafka" }

// Publish writes res.NewItems as a single batch.
func (p *Publisher) Publish(ctx context.Context, res pipeline.Result) error {
	if len(res.NewItems) == 0 {
		return nil
	}

	runAt := res.RunAt.UTC().Format(time.RFC3339)
	msgs := make([]kafka.Message, 0, len(res.NewItems))
	for _, item := range res.NewItems {
		value, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshal item %s: %w", item.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(item.ID),
			Value: value,
			Headers: []kafka.Header{
				{Key: "source", Value: []byte(item.Source.Name)},
				{Key: "category", Value: []byte(item.Category)},
				{Key: "run_at", Value: []byte(runAt)},
			},
		})
	}

	var err error
	for attempt := range p.attempts {
		if err = p.writer.WriteMessages(ctx, msgs...); err == nil {
			p.log.Info("items published", slog.Int("count", len(msgs)), slog.Int("attempt", attempt+1))
			return nil
		}
		if attempt == p.attempts-1 {
			break
		}

		backoff := p.backoff * time.Duration(1<<uint(attempt))
		p.log.Warn("kafka write failed, retrying",
			slog.Any("err", err),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return fmt.Errorf("publish items: %w", ctx.Err())
		}
	}
	return fmt.Errorf("publish items after %d attempts: %w", p.attempts, err)
}
