// Package redisstore mirrors the trending index into Redis.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DeafMist/econ-news-radar/backend/internal/models"
	"github.com/DeafMist/econ-news-radar/backend/internal/pipeline"
)

// NewClient creates a Redis client.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Store keeps a sorted set of trending ids scored by relevance and the item
// JSON under per-item keys that expire with the retention window.
type Store struct {
	rdb     *redis.Client
	prefix  string
	itemTTL time.Duration
}

func New(rdb *redis.Client, prefix string, itemTTL time.Duration) *Store {
	return &Store{rdb: rdb, prefix: prefix, itemTTL: itemTTL}
}

func (s *Store) TrendingKey() string      { return s.prefix + ":trending" }
func (s *Store) ItemKey(id string) string { return fmt.Sprintf("%s:item:%s", s.prefix, id) }
func (s *Store) GeneratedKey() string     { return s.prefix + ":generated_at" }

func (s *Store) Name() string { return "redis" }

// Publish replaces the trending set atomically and refreshes every snapshot
// item.
func (s *Store) Publish(ctx context.Context, res pipeline.Result) error {
	scores := make(map[string]int, len(res.Snapshot.Items))
	for _, item := range res.Snapshot.Items {
		scores[item.ID] = item.RelevanceScore
	}

	payloads := make(map[string][]byte, len(res.Snapshot.Items))
	for _, item := range res.Snapshot.Items {
		b, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshal item %s: %w", item.ID, err)
		}
		payloads[item.ID] = b
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.TrendingKey())
		if len(res.Trending.TopItems) > 0 {
			members := make([]redis.Z, 0, len(res.Trending.TopItems))
			for _, id := range res.Trending.TopItems {
				members = append(members, redis.Z{Score: float64(scores[id]), Member: id})
			}
			pipe.ZAdd(ctx, s.TrendingKey(), members...)
		}
		for id, b := range payloads {
			pipe.Set(ctx, s.ItemKey(id), b, s.itemTTL)
		}
		pipe.Set(ctx, s.GeneratedKey(), res.Trending.GeneratedAt, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// TopTrending returns up to n trending items, highest relevance first.
// Items whose key already expired are skipped.
func (s *Store) TopTrending(ctx context.Context, n int) ([]models.FeedItem, error) {
	ids, err := s.rdb.ZRevRange(ctx, s.TrendingKey(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read trending: %w", err)
	}

	out := make([]models.FeedItem, 0, len(ids))
	for _, id := range ids {
		b, err := s.rdb.Get(ctx, s.ItemKey(id)).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read item %s: %w", id, err)
		}
		var item models.FeedItem
		if err := json.Unmarshal(b, &item); err != nil {
			return nil, fmt.Errorf("decode item %s: %w", id, err)
		}
		out = append(out, item)
	}
	return out, nil
}
