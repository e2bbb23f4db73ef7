package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/DeafMist/econ-news-radar/backend/internal/events"
	"github.com/DeafMist/econ-news-radar/backend/internal/models"
	"github.com/DeafMist/econ-news-radar/backend/internal/pipeline"
)

type stubWriter struct {
	failures int
	calls    int
	msgs     []kafka.Message
}

func (s *stubWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	s.calls++
	if s.calls <= s.failures {
		return errors.New("leader not available")
	}
	s.msgs = append(s.msgs, msgs...)
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func result() pipeline.Result {
	return pipeline.Result{
		RunAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		NewItems: []models.FeedItem{
			{ID: "a1", Title: "기준금리 동결", Category: "금리", Source: models.SourceRef{Name: "한국은행"}},
			{ID: "b2", Title: "코스피 마감", Category: "증시", Source: models.SourceRef{Name: "wire"}},
		},
	}
}

func TestPublishWritesOneMessagePerItem(t *testing.T) {
	w := &stubWriter{}
	p := events.NewPublisher(w, discard())

	require.NoError(t, p.Publish(context.Background(), result()))
	require.Equal(t, 1, w.calls)
	require.Len(t, w.msgs, 2)

	msg := w.msgs[0]
	require.Equal(t, "a1", string(msg.Key))

	var item models.FeedItem
	require.NoError(t, json.Unmarshal(msg.Value, &item))
	require.Equal(t, "기준금리 동결", item.Title)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	require.Equal(t, map[string]string{"source": "한국은행", "category": "금리", "run_at": "2024-05-01T12:00:00Z"}, headers)
}

func TestPublishSkipsEmptyRuns(t *testing.T) {
	w := &stubWriter{}
	require.NoError(t, events.NewPublisher(w, discard()).Publish(context.Background(), pipeline.Result{}))
	require.Zero(t, w.calls)
}

func TestPublishRetries(t *testing.T) {
	w := &stubWriter{failures: 2}
	p := events.NewPublisher(w, discard(), events.WithRetry(3, time.Millisecond))

	require.NoError(t, p.Publish(context.Background(), result()))
	require.Equal(t, 3, w.calls)
	require.Len(t, w.msgs, 2)
}

func TestPublishGivesUp(t *testing.T) {
	w := &stubWriter{failures: 5}
	p := events.NewPublisher(w, discard(), events.WithRetry(2, time.Millisecond))

	err := p.Publish(context.Background(), result())
	require.ErrorContains(t, err, "after 2 attempts")
	require.Equal(t, 2, w.calls)
}

func TestPublishStopsOnCancel(t *testing.T) {
	w := &stubWriter{failures: 5}
	p := events.NewPublisher(w, discard(), events.WithRetry(3, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Publish(ctx, result())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, w.calls)
}
