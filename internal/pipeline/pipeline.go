// Package pipeline merges freshly fetched entries with the prior feed.
package pipeline

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/DeafMist/econ-news-radar/backend/internal/dedupe"
	"github.com/DeafMist/econ-news-radar/backend/internal/fetcher"
	"github.com/DeafMist/econ-news-radar/backend/internal/models"
	"github.com/DeafMist/econ-news-radar/backend/internal/processing"
)

// SnapshotVersion is written into every feed snapshot.
const SnapshotVersion = "1.0"

const (
	DefaultRetention      = 48 * time.Hour
	DefaultTrendingWindow = 6 * time.Hour
	DefaultTrendingLimit  = 20
)

// Fetcher retrieves raw entries for one source.
type Fetcher interface {
	Fetch(ctx context.Context, src models.Source) ([]models.RawEntry, error)
}

// Settings bounds the merge step. Zero values use the defaults above.
type Settings struct {
	Retention      time.Duration
	TrendingWindow time.Duration
	TrendingLimit  int
}

// Pipeline runs one collection pass. It holds no state between runs.
type Pipeline struct {
	fetcher    Fetcher
	classifier *processing.Classifier
	summarizer *processing.Summarizer
	scorer     *processing.Scorer
	tagger     *processing.TagExtractor
	settings   Settings
	log        *slog.Logger
}

func New(
	f Fetcher,
	classifier *processing.Classifier,
	summarizer *processing.Summarizer,
	scorer *processing.Scorer,
	tagger *processing.TagExtractor,
	settings Settings,
	log *slog.Logger,
) *Pipeline {
	if settings.Retention <= 0 {
		settings.Retention = DefaultRetention
	}
	if settings.TrendingWindow <= 0 {
		settings.TrendingWindow = DefaultTrendingWindow
	}
	if settings.TrendingLimit <= 0 {
		settings.TrendingLimit = DefaultTrendingLimit
	}
	return &Pipeline{
		fetcher:    f,
		classifier: classifier,
		summarizer: summarizer,
		scorer:     scorer,
		tagger:     tagger,
		settings:   settings,
		log:        log,
	}
}

// WithLogger returns a copy of p that logs to log, typically one carrying a
// run id.
func (p *Pipeline) WithLogger(log *slog.Logger) *Pipeline {
	cp := *p
	cp.log = log
	return &cp
}

// SourceResult records what one source contributed to the run.
type SourceResult struct {
	Name       string
	Fetched    int
	New        int
	Duplicates int
	Err        error
}

// Stats summarizes a run.
type Stats struct {
	Sources    []SourceResult
	New        int
	Duplicates int
	Retained   int
	Dropped    int
	Trending   int
}

// Result is everything a run produces. NewItems is the subset of
// Snapshot.Items collected in this run.
type Result struct {
	RunAt    time.Time
	Snapshot models.FeedSnapshot
	Trending models.TrendingIndex
	NewItems []models.FeedItem
	Stats    Stats
}

// Run fetches every active source, drops entries already in prior, keeps prior
// items published inside the retention window and recomputes trending.
// Fetch failures are logged and recorded in Stats; Run itself does not fail.
func (p *Pipeline) Run(ctx context.Context, prior models.FeedSnapshot, sources []models.Source, now time.Time) Result {
	ids := make([]string, 0, len(prior.Items))
	for _, item := range prior.Items {
		ids = append(ids, item.ID)
	}
	idx := dedupe.NewIndex(ids...)

	var stats Stats
	fresh := make([]models.FeedItem, 0)
	for _, src := range sources {
		if !src.Active() {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		items, res := p.collectSource(ctx, idx, src, now)
		fresh = append(fresh, items...)
		stats.Sources = append(stats.Sources, res)
		stats.New += res.New
		stats.Duplicates += res.Duplicates
	}

	retained, dropped := p.retain(idx, prior.Items, now)
	stats.Retained = len(retained)
	stats.Dropped = dropped

	combined := make([]models.FeedItem, 0, len(fresh)+len(retained))
	combined = append(combined, fresh...)
	combined = append(combined, retained...)
	slices.SortStableFunc(combined, func(a, b models.FeedItem) int {
		return cmp.Compare(b.RelevanceScore, a.RelevanceScore)
	})

	trending := p.markTrending(combined, now)
	stats.Trending = countTrending(combined)

	freshIDs := make(map[string]struct{}, len(fresh))
	for _, item := range fresh {
		freshIDs[item.ID] = struct{}{}
	}
	newItems := make([]models.FeedItem, 0, len(fresh))
	for _, item := range combined {
		if _, ok := freshIDs[item.ID]; ok {
			newItems = append(newItems, item)
		}
	}

	generated := processing.FormatTimestamp(now)
	return Result{
		RunAt:    now,
		Snapshot: models.FeedSnapshot{
			GeneratedAt: generated,
			Version:     SnapshotVersion,
			TotalItems:  len(combined),
			Items:       combined,
		},
		Trending: trending,
		NewItems: newItems,
		Stats:    stats,
	}
}

func (p *Pipeline) collectSource(ctx context.Context, idx *dedupe.Index, src models.Source, now time.Time) ([]models.FeedItem, SourceResult) {
	res := SourceResult{Name: src.Name}

	entries, err := p.fetcher.Fetch(ctx, src)
	if err != nil {
		res.Err = err
		attrs := []any{slog.String("source", src.Name), slog.Any("err", err)}
		var fe *fetcher.FetchError
		if errors.As(err, &fe) {
			attrs = append(attrs, slog.String("error_type", string(fe.Type)))
		}
		p.log.Warn("fetch source failed", attrs...)
		return nil, res
	}
	res.Fetched = len(entries)

	items := make([]models.FeedItem, 0, len(entries))
	for _, entry := range entries {
		id := processing.GenerateID(entry.URL)
		if !idx.MarkSeen(id) {
			res.Duplicates++
			continue
		}
		items = append(items, p.assemble(id, entry, src, now))
	}
	res.New = len(items)

	p.log.Info("source collected",
		slog.String("source", src.Name),
		slog.Int("fetched", res.Fetched),
		slog.Int("new", res.New),
		slog.Int("duplicates", res.Duplicates),
	)
	return items, res
}

// assemble builds the canonical item. Missing publish times fall back to the
// collection time.
func (p *Pipeline) assemble(id string, entry models.RawEntry, src models.Source, now time.Time) models.FeedItem {
	published := processing.Parsed(now)
	if entry.Published != nil {
		published = processing.Parsed(*entry.Published)
	}

	category := p.classifier.Classify(entry.Title, entry.Summary)

	return models.FeedItem{
		ID:    id,
		Title: entry.Title,
		URL:   entry.URL,
		Source: models.SourceRef{
			Domain: SourceDomain(src),
			Name:   src.Name,
			Type:   src.Trust,
		},
		PublishedAt:    processing.FormatTimestamp(published.Time),
		CollectedAt:    processing.FormatTimestamp(now),
		Category:       category,
		Tags:           p.tagger.Extract(entry.Title, entry.Summary, category),
		Country:        src.Country,
		Summary:        p.summarizer.Summarize(entry.Title, entry.Summary),
		RelevanceScore: p.scorer.Score(src.Trust, category, published, now),
	}
}

// retain keeps prior items whose publish time parses and is after
// now-Retention. Everything else is dropped for good.
func (p *Pipeline) retain(idx *dedupe.Index, prior []models.FeedItem, now time.Time) ([]models.FeedItem, int) {
	cutoff := now.Add(-p.settings.Retention)
	kept := make([]models.FeedItem, 0, len(prior))
	seen := make(map[string]struct{}, len(prior))
	dropped := 0

	for _, item := range prior {
		if _, dup := seen[item.ID]; dup || item.ID == "" || !idx.IsSeen(item.ID) {
			dropped++
			continue
		}
		ts := processing.ParseTimestamp(item.PublishedAt)
		if !ts.OK || !ts.Time.After(cutoff) {
			dropped++
			continue
		}
		seen[item.ID] = struct{}{}
		kept = append(kept, item)
	}
	return kept, dropped
}

// markTrending flags items published in [now-window, now] and clears the
// flag on everything else. items must already be sorted.
func (p *Pipeline) markTrending(items []models.FeedItem, now time.Time) models.TrendingIndex {
	from := now.Add(-p.settings.TrendingWindow)
	top := make([]string, 0, p.settings.TrendingLimit)

	for i := range items {
		items[i].IsTrending = processing.ParseTimestamp(items[i].PublishedAt).Within(from, now)
		if items[i].IsTrending && len(top) < p.settings.TrendingLimit {
			top = append(top, items[i].ID)
		}
	}

	return models.TrendingIndex{
		GeneratedAt: processing.FormatTimestamp(now),
		Period: models.Period{
			From: processing.FormatTimestamp(from),
			To:   processing.FormatTimestamp(now),
		},
		TopItems: top,
	}
}

func countTrending(items []models.FeedItem) int {
	n := 0
	for _, item := range items {
		if item.IsTrending {
			n++
		}
	}
	return n
}

// SourceDomain is the host of the source homepage, or of the feed URL when
// the homepage is missing or malformed.
func SourceDomain(src models.Source) string {
	for _, raw := range []string{src.URL, src.FeedURL} {
		if u, err := url.Parse(strings.TrimSpace(raw)); err == nil && u.Hostname() != "" {
			return u.Hostname()
		}
	}
	return ""
}
