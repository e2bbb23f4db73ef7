package elasticsearch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DeafMist/econ-news-radar/backend/internal/models"
	"github.com/DeafMist/econ-news-radar/backend/internal/pipeline"
)

type feedIndex interface {
	IndexItems(ctx context.Context, items []models.FeedItem) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

// Mirror projects each snapshot into the search index and expires documents
// that fell out of the retention window.
type Mirror struct {
	index     feedIndex
	retention time.Duration
	batchSize int
	log       *slog.Logger
}

func NewMirror(index feedIndex, retention time.Duration, log *slog.Logger) *Mirror {
	return &Mirror{index: index, retention: retention, batchSize: 500, log: log}
}

func (m *Mirror) Name() string { return "elasticsearch" }

// Publish upserts every snapshot item, then deletes documents published
// at or before RunAt minus the retention window.
func (m *Mirror) Publish(ctx context.Context, res pipeline.Result) error {
	if err := m.index.IndexItems(ctx, res.Snapshot.Items); err != nil {
		return fmt.Errorf("index snapshot: %w", err)
	}

	deleted, err := m.index.DeleteOlderThan(ctx, res.RunAt.Add(-m.retention), m.batchSize)
	if err != nil {
		return fmt.Errorf("expire documents: %w", err)
	}
	if deleted > 0 {
		m.log.Info("expired search documents", slog.Int64("deleted", deleted))
	}
	return nil
}
