package pipeline

import (
	"context"
	"log/slog"
)

// Sink mirrors a finished run somewhere outside the data directory.
// Sinks are write-only; the pipeline never reads them back.
type Sink interface {
	Name() string
	Publish(ctx context.Context, res Result) error
}

// PublishAll hands res to every sink in order. A failing sink is logged and
// skipped; the names of failed sinks are returned.
func PublishAll(ctx context.Context, log *slog.Logger, sinks []Sink, res Result) []string {
	var failed []string
	for _, s := range sinks {
		if err := s.Publish(ctx, res); err != nil {
			log.Warn("mirror publish failed", slog.String("sink", s.Name()), slog.Any("err", err))
			failed = append(failed, s.Name())
			continue
		}
		log.Debug("mirror published", slog.String("sink", s.Name()))
	}
	return failed
}
