package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DeafMist/econ-news-radar/backend/internal/fetcher"
	"github.com/DeafMist/econ-news-radar/backend/internal/models"
	"github.com/DeafMist/econ-news-radar/backend/internal/pipeline"
	"github.com/DeafMist/econ-news-radar/backend/internal/processing"
	"github.com/DeafMist/econ-news-radar/backend/internal/sanitize"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type stubFetcher struct {
	entries map[string][]models.RawEntry
	errs    map[string]error
	calls   []string
}

func (s *stubFetcher) Fetch(_ context.Context, src models.Source) ([]models.RawEntry, error) {
	s.calls = append(s.calls, src.Name)
	if err := s.errs[src.Name]; err != nil {
		return nil, err
	}
	return s.entries[src.Name], nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPipeline(f pipeline.Fetcher, settings pipeline.Settings) *pipeline.Pipeline {
	categories := []models.Category{
		{Name: "금리", Keywords: []string{"금리", "FOMC"}, Priority: 3},
		{Name: "증시", Keywords: []string{"코스피"}, Priority: 1},
	}
	return pipeline.New(
		f,
		processing.NewClassifier(categories, ""),
		processing.NewSummarizer(sanitize.New()),
		processing.NewScorer(processing.DefaultPriorityCategories),
		processing.NewTagExtractor(processing.DefaultTagRules()),
		settings,
		discardLogger(),
	)
}

func at(d time.Duration) *time.Time {
	t := now.Add(-d)
	return &t
}

func src(name, trust string) models.Source {
	return models.Source{
		Name:    name,
		URL:     "https://" + name + ".example.com/home",
		FeedURL: "https://" + name + ".example.com/rss",
		Trust:   trust,
		Country: "KR",
		Status:  "active",
	}
}

func priorItem(url string, publishedAgo time.Duration, score int) models.FeedItem {
	return models.FeedItem{
		ID:             processing.GenerateID(url),
		Title:          "prior " + url,
		URL:            url,
		PublishedAt:    processing.FormatTimestamp(now.Add(-publishedAgo)),
		CollectedAt:    processing.FormatTimestamp(now.Add(-publishedAgo)),
		Category:       "기타",
		Tags:           []string{"기타"},
		RelevanceScore: score,
		IsTrending:     true,
	}
}

func TestRunAssemblesItem(t *testing.T) {
	f := &stubFetcher{entries: map[string][]models.RawEntry{
		"bok": {{URL: "https://bok.example.com/1", Title: "한국은행 기준금리 동결", Summary: "<p>물가 안정</p>", Published: at(2 * time.Hour)}},
	}}

	res := newPipeline(f, pipeline.Settings{}).Run(context.Background(), models.FeedSnapshot{}, []models.Source{src("bok", models.TrustOfficial)}, now)

	require.Len(t, res.Snapshot.Items, 1)
	item := res.Snapshot.Items[0]
	require.Equal(t, processing.GenerateID("https://bok.example.com/1"), item.ID)
	require.Equal(t, models.SourceRef{Domain: "bok.example.com", Name: "bok", Type: models.TrustOfficial}, item.Source)
	require.Equal(t, "금리", item.Category)
	require.Equal(t, []string{"금리", "한국은행", "인플레이션"}, item.Tags)
	require.Equal(t, 100, item.RelevanceScore)
	require.Equal(t, "물가 안정", item.Summary.Auto)
	require.Equal(t, "<p>물가 안정</p>", item.Summary.Source)
	require.Equal(t, "KR", item.Country)
	require.Equal(t, "2024-05-01T10:00:00Z", item.PublishedAt)
	require.Equal(t, "2024-05-01T12:00:00Z", item.CollectedAt)
	require.True(t, item.IsTrending)

	require.Equal(t, pipeline.SnapshotVersion, res.Snapshot.Version)
	require.Equal(t, 1, res.Snapshot.TotalItems)
	require.Equal(t, "2024-05-01T12:00:00Z", res.Snapshot.GeneratedAt)
	require.Equal(t, []string{item.ID}, res.Trending.TopItems)
	require.Equal(t, models.Period{From: "2024-05-01T06:00:00Z", To: "2024-05-01T12:00:00Z"}, res.Trending.Period)
	require.Len(t, res.NewItems, 1)
}

func TestRunMissingPublishFallsBackToCollection(t *testing.T) {
	f := &stubFetcher{entries: map[string][]models.RawEntry{
		"wire": {{URL: "https://wire.example.com/1", Title: "코스피 마감"}},
	}}

	res := newPipeline(f, pipeline.Settings{}).Run(context.Background(), models.FeedSnapshot{}, []models.Source{src("wire", "other")}, now)

	item := res.Snapshot.Items[0]
	require.Equal(t, item.CollectedAt, item.PublishedAt)
	require.Equal(t, "코스피 마감", item.Summary.Auto)
	require.True(t, item.IsTrending)
}

func TestRunDropsDuplicates(t *testing.T) {
	shared := "https://shared.example.com/story"
	f := &stubFetcher{entries: map[string][]models.RawEntry{
		"a": {{URL: shared, Title: "first", Published: at(time.Hour)}, {URL: shared, Title: "again", Published: at(time.Hour)}},
		"b": {{URL: shared, Title: "second", Published: at(time.Hour)}, {URL: "https://known.example.com/x", Title: "known", Published: at(time.Hour)}},
	}}
	prior := models.FeedSnapshot{Items: []models.FeedItem{priorItem("https://known.example.com/x", 3*time.Hour, 40)}}

	res := newPipeline(f, pipeline.Settings{}).Run(context.Background(), prior, []models.Source{src("a", "other"), src("b", "other")}, now)

	require.Len(t, res.Snapshot.Items, 2)
	require.Equal(t, "first", res.Snapshot.Items[0].Title)
	require.Equal(t, 1, res.Stats.New)
	require.Equal(t, 3, res.Stats.Duplicates)
	require.Equal(t, 1, res.Stats.Retained)

	ids := map[string]bool{}
	for _, item := range res.Snapshot.Items {
		require.False(t, ids[item.ID], "duplicate id %s", item.ID)
		ids[item.ID] = true
	}
}

func TestRunRetention(t *testing.T) {
	prior := models.FeedSnapshot{Items: []models.FeedItem{
		priorItem("https://p.example.com/fresh", 47*time.Hour, 60),
		priorItem("https://p.example.com/edge", 48*time.Hour, 60),
		priorItem("https://p.example.com/old", 72*time.Hour, 60),
		{ID: "broken", URL: "https://p.example.com/broken", PublishedAt: "yesterday", RelevanceScore: 90},
		{ID: "missing", URL: "https://p.example.com/missing", RelevanceScore: 90},
	}}

	res := newPipeline(&stubFetcher{}, pipeline.Settings{}).Run(context.Background(), prior, nil, now)

	require.Len(t, res.Snapshot.Items, 1)
	require.Equal(t, "https://p.example.com/fresh", res.Snapshot.Items[0].URL)
	require.Equal(t, 1, res.Stats.Retained)
	require.Equal(t, 4, res.Stats.Dropped)

	cutoff := now.Add(-48 * time.Hour)
	for _, item := range res.Snapshot.Items {
		ts := processing.ParseTimestamp(item.PublishedAt)
		require.True(t, ts.OK)
		require.True(t, ts.Time.After(cutoff))
	}
}

func TestRunRetentionIsConfigurable(t *testing.T) {
	prior := models.FeedSnapshot{Items: []models.FeedItem{priorItem("https://p.example.com/a", 20*time.Hour, 60)}}

	res := newPipeline(&stubFetcher{}, pipeline.Settings{Retention: 12 * time.Hour, TrendingWindow: time.Hour}).Run(context.Background(), prior, nil, now)
	require.Empty(t, res.Snapshot.Items)
	require.NotNil(t, res.Snapshot.Items)
}

func TestRunSortsByScoreStable(t *testing.T) {
	prior := models.FeedSnapshot{Items: []models.FeedItem{
		priorItem("https://p.example.com/a", 30*time.Hour, 70),
		priorItem("https://p.example.com/b", 30*time.Hour, 50),
		priorItem("https://p.example.com/c", 30*time.Hour, 70),
	}}
	f := &stubFetcher{entries: map[string][]models.RawEntry{
		"wire": {{URL: "https://wire.example.com/1", Title: "코스피", Published: at(20 * time.Hour)}},
	}}

	res := newPipeline(f, pipeline.Settings{}).Run(context.Background(), prior, []models.Source{src("wire", "other")}, now)

	var urls []string
	for _, item := range res.Snapshot.Items {
		urls = append(urls, item.URL)
	}
	require.Equal(t, []string{"https://p.example.com/a", "https://p.example.com/c", "https://wire.example.com/1", "https://p.example.com/b"}, urls)

	for i := 1; i < len(res.Snapshot.Items); i++ {
		require.GreaterOrEqual(t, res.Snapshot.Items[i-1].RelevanceScore, res.Snapshot.Items[i].RelevanceScore)
	}
}

func TestRunTrendingWindow(t *testing.T) {
	prior := models.FeedSnapshot{Items: []models.FeedItem{
		priorItem("https://p.example.com/inside", 5*time.Hour, 60),
		priorItem("https://p.example.com/boundary", 6*time.Hour, 55),
		priorItem("https://p.example.com/outside", 6*time.Hour+time.Second, 90),
		priorItem("https://p.example.com/future", -time.Hour, 80),
	}}

	res := newPipeline(&stubFetcher{}, pipeline.Settings{}).Run(context.Background(), prior, nil, now)

	flags := map[string]bool{}
	for _, item := range res.Snapshot.Items {
		flags[item.URL] = item.IsTrending
	}
	require.Equal(t, map[string]bool{
		"https://p.example.com/inside":   true,
		"https://p.example.com/boundary": true,
		"https://p.example.com/outside":  false,
		"https://p.example.com/future":   false,
	}, flags)
	require.Equal(t, []string{
		processing.GenerateID("https://p.example.com/inside"),
		processing.GenerateID("https://p.example.com/boundary"),
	}, res.Trending.TopItems)
	require.Equal(t, 2, res.Stats.Trending)
}

func TestRunTrendingLimit(t *testing.T) {
	var items []models.FeedItem
	for i := range 30 {
		items = append(items, priorItem(fmt.Sprintf("https://p.example.com/%d", i), time.Hour, 100-i))
	}

	res := newPipeline(&stubFetcher{}, pipeline.Settings{}).Run(context.Background(), models.FeedSnapshot{Items: items}, nil, now)

	require.Len(t, res.Trending.TopItems, pipeline.DefaultTrendingLimit)
	for i, id := range res.Trending.TopItems {
		require.Equal(t, res.Snapshot.Items[i].ID, id)
	}
	require.Equal(t, 30, res.Stats.Trending)
}

func TestRunIsolatesFetchFailures(t *testing.T) {
	f := &stubFetcher{
		entries: map[string][]models.RawEntry{"ok": {{URL: "https://ok.example.com/1", Title: "코스피", Published: at(time.Hour)}}},
		errs:    map[string]error{"down": fetcher.ClassifyHTTPStatus(503, "https://down.example.com/rss")},
	}
	inactive := src("paused", "other")
	inactive.Status = "inactive"

	res := newPipeline(f, pipeline.Settings{}).Run(context.Background(), models.FeedSnapshot{},
		[]models.Source{src("down", "other"), inactive, src("ok", "other")}, now)

	require.Equal(t, []string{"down", "ok"}, f.calls)
	require.Len(t, res.Snapshot.Items, 1)
	require.Len(t, res.Stats.Sources, 2)

	var fe *fetcher.FetchError
	require.True(t, errors.As(res.Stats.Sources[0].Err, &fe))
	require.Equal(t, fetcher.ErrTypeStatus, fe.Type)
	require.NoError(t, res.Stats.Sources[1].Err)
}

func TestSourceDomain(t *testing.T) {
	require.Equal(t, "www.bok.or.kr", pipeline.SourceDomain(models.Source{URL: "https://www.bok.or.kr/portal/main.do"}))
	require.Equal(t, "feeds.example.com", pipeline.SourceDomain(models.Source{FeedURL: "https://feeds.example.com/rss"}))
	require.Equal(t, "", pipeline.SourceDomain(models.Source{}))
}
