package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/DeafMist/econ-news-radar/backend/internal/models"
	"github.com/DeafMist/econ-news-radar/backend/internal/pipeline"
	"github.com/DeafMist/econ-news-radar/backend/internal/redisstore"
)

func newStore(t *testing.T) (*redisstore.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redisstore.NewClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = rdb.Close() })
	return redisstore.New(rdb, "econfeed", 48*time.Hour), mr
}

func result(trending ...string) pipeline.Result {
	return pipeline.Result{
		Snapshot: models.FeedSnapshot{Items: []models.FeedItem{
			{ID: "a", Title: "A", RelevanceScore: 90, IsTrending: true},
			{ID: "b", Title: "B", RelevanceScore: 70, IsTrending: true},
			{ID: "c", Title: "C", RelevanceScore: 50},
		}},
		Trending: models.TrendingIndex{GeneratedAt: "2024-05-01T12:00:00Z", TopItems: trending},
	}
}

func TestPublishWritesTrendingSet(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Publish(ctx, result("a", "b")))

	members, err := mr.ZMembers(s.TrendingKey())
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, members)

	score, err := mr.ZScore(s.TrendingKey(), "a")
	require.NoError(t, err)
	require.Equal(t, float64(90), score)

	require.True(t, mr.Exists(s.ItemKey("c")))
	require.Equal(t, 48*time.Hour, mr.TTL(s.ItemKey("c")))

	generated, err := mr.Get(s.GeneratedKey())
	require.NoError(t, err)
	require.Equal(t, "2024-05-01T12:00:00Z", generated)

	top, err := s.TopTrending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, "A", top[0].Title)
	require.Equal(t, "B", top[1].Title)
}

func TestPublishReplacesPreviousTrending(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Publish(ctx, result("a", "b")))
	require.NoError(t, s.Publish(ctx, result("b")))

	members, err := mr.ZMembers(s.TrendingKey())
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, members)

	require.NoError(t, s.Publish(ctx, result()))
	require.False(t, mr.Exists(s.TrendingKey()))
}

func TestTopTrendingSkipsExpiredItems(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Publish(ctx, result("a", "b")))
	mr.Del(s.ItemKey("a"))

	top, err := s.TopTrending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	require.Equal(t, "b", top[0].ID)
}

func TestPublishUnavailable(t *testing.T) {
	rdb := redisstore.NewClient("127.0.0.1:1", "", 0)
	t.Cleanup(func() { _ = rdb.Close() })

	err := redisstore.New(rdb, "econfeed", time.Hour).Publish(context.Background(), result("a"))
	require.Error(t, err)
}
