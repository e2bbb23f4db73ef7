package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/DeafMist/econ-news-radar/backend/internal/models"
)

// Client wraps go-elasticsearch with helpers tailored to the feed index.
type Client struct {
	es    *elasticsearch.Client
	index string
	log   *slog.Logger
}

// SearchParams narrow the search endpoint query.
type SearchParams struct {
	Query        string
	Category     string
	Tags         []string
	Source       string
	Country      string
	TrendingOnly bool
	From         int
	Size         int
	Sort         string
	Start        *time.Time
	End          *time.Time
}

// SearchResult bundles hits and total count.
type SearchResult struct {
	Total int64             `json:"total"`
	Items []models.FeedItem `json:"items"`
}

// indexMapping keeps filterable fields as keywords and timestamps as dates.
const indexMapping = `{
  "mappings": {
    "properties": {
      "id":              {"type": "keyword"},
      "title":           {"type": "text"},
      "url":             {"type": "keyword"},
      "source":          {"properties": {"domain": {"type": "keyword"}, "name": {"type": "keyword"}, "type": {"type": "keyword"}}},
      "published_at":    {"type": "date"},
      "collected_at":    {"type": "date"},
      "category":        {"type": "keyword"},
      "tags":            {"type": "keyword"},
      "country":         {"type": "keyword"},
      "summary":         {"properties": {"auto": {"type": "text"}, "source": {"type": "text", "index": false}}},
      "relevance_score": {"type": "integer"},
      "is_trending":     {"type": "boolean"}
    }
  }
}`

// New instantiates the Elasticsearch client.
func New(addr, index string, logger *slog.Logger) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{addr},
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{es: es, index: index, log: logger}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}

	return nil
}

// EnsureIndex creates the feed index with its mapping when it does not exist.
func (c *Client) EnsureIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("check index failed: %s", res.Status())
	}

	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("create index failed: %s", strings.TrimSpace(string(body)))
	}

	c.log.Info("elasticsearch index created", slog.String("index", c.index))
	return nil
}

// IndexItems upserts items in one bulk request so that flags such as
// is_trending stay in step with the snapshot.
func (c *Client) IndexItems(ctx context.Context, items []models.FeedItem) error {
	if len(items) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, item := range items {
		meta := map[string]any{"index": map[string]any{"_index": c.index, "_id": item.ID}}
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("marshal bulk meta: %w", err)
		}
		if err := enc.Encode(item); err != nil {
			return fmt.Errorf("marshal item: %w", err)
		}
	}

	res, err := c.es.Bulk(
		bytes.NewReader(buf.Bytes()),
		c.es.Bulk.WithContext(ctx),
		c.es.Bulk.WithIndex(c.index),
	)
	if err != nil {
		return fmt.Errorf("bulk index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("bulk index failed: %s", strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if !parsed.Errors {
		return nil
	}

	failed := 0
	for _, it := range parsed.Items {
		for _, op := range it {
			if op.Status >= http.StatusBadRequest {
				failed++
			}
		}
	}
	return fmt.Errorf("bulk index: %d of %d items failed", failed, len(items))
}

// SearchNews executes a bool query with optional filters.
func (c *Client) SearchNews(ctx context.Context, params SearchParams) (*SearchResult, error) {
	payload, err := json.Marshal(buildSearchBody(params))
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.FeedItem `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	items := make([]models.FeedItem, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		items = append(items, hit.Source)
	}

	return &SearchResult{
		Total: parsed.Hits.Total.Value,
		Items: items,
	}, nil
}

func buildSearchBody(params SearchParams) map[string]any {
	if params.Size <= 0 {
		params.Size = 20
	}
	if params.Size > 200 {
		params.Size = 200
	}
	if params.From < 0 {
		params.From = 0
	}

	must := make([]map[string]any, 0, 1)
	filters := make([]map[string]any, 0, 5)

	if params.Query != "" {
		must = append(must, map[string]any{
			"multi_match": map[string]any{
				"query":  params.Query,
				"fields": []string{"title^2", "summary.auto"},
			},
		})
	}

	terms := []struct {
		field string
		value string
	}{
		{"category", params.Category},
		{"source.name", params.Source},
		{"country", params.Country},
	}
	for _, t := range terms {
		if t.value != "" {
			filters = append(filters, map[string]any{"term": map[string]any{t.field: t.value}})
		}
	}

	if len(params.Tags) > 0 {
		filters = append(filters, map[string]any{
			"terms": map[string]any{"tags": params.Tags},
		})
	}

	if params.TrendingOnly {
		filters = append(filters, map[string]any{"term": map[string]any{"is_trending": true}})
	}

	if params.Start != nil || params.End != nil {
		rangeQuery := map[string]any{}
		if params.Start != nil {
			rangeQuery["gte"] = params.Start.UTC().Format(time.RFC3339)
		}
		if params.End != nil {
			rangeQuery["lte"] = params.End.UTC().Format(time.RFC3339)
		}
		filters = append(filters, map[string]any{
			"range": map[string]any{"published_at": rangeQuery},
		})
	}

	boolQuery := map[string]any{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}
	if len(must) == 0 && len(filters) == 0 {
		boolQuery["must"] = []map[string]any{
			{"match_all": map[string]any{}},
		}
	}

	field, order := "relevance_score", "desc"
	if params.Sort != "" {
		parts := strings.SplitN(params.Sort, ":", 2)
		if parts[0] != "" {
			field = parts[0]
		}
		if len(parts) > 1 && parts[1] != "" {
			order = parts[1]
		}
	}

	return map[string]any{
		"from":             params.From,
		"size":             params.Size,
		"track_total_hits": true,
		"query":            map[string]any{"bool": boolQuery},
		"sort": []map[string]any{
			{field: map[string]any{"order": order}},
			{"published_at": map[string]any{"order": "desc"}},
		},
	}
}

// DeleteOlderThan removes documents published at or before cutoff using
// batched delete-by-query. It loops until a batch deletes fewer documents
// than batchSize.
func (c *Client) DeleteOlderThan(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	body := map[string]any{
		"query": map[string]any{
			"range": map[string]any{
				"published_at": map[string]any{
					"lte": cutoff.UTC().Format(time.RFC3339),
				},
			},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal delete body: %w", err)
	}

	totalDeleted := int64(0)
	for {
		res, err := c.es.DeleteByQuery(
			[]string{c.index},
			bytes.NewReader(payload),
			c.es.DeleteByQuery.WithContext(ctx),
			c.es.DeleteByQuery.WithWaitForCompletion(true),
			c.es.DeleteByQuery.WithConflicts("proceed"),
			c.es.DeleteByQuery.WithScrollSize(batchSize),
			c.es.DeleteByQuery.WithMaxDocs(batchSize),
		)
		if err != nil {
			return totalDeleted, fmt.Errorf("delete by query: %w", err)
		}

		if res.IsError() {
			data, _ := io.ReadAll(res.Body)
			res.Body.Close()
			return totalDeleted, fmt.Errorf("delete by query failed: %s", strings.TrimSpace(string(data)))
		}

		var parsed struct {
			Deleted int64 `json:"deleted"`
		}
		if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
			res.Body.Close()
			return totalDeleted, fmt.Errorf("decode delete response: %w", err)
		}
		res.Body.Close()

		totalDeleted += parsed.Deleted

		if parsed.Deleted < int64(batchSize) {
			break
		}
	}

	return totalDeleted, nil
}

// Health pings Elasticsearch to ensure connectivity.
func (c *Client) Health(ctx context.Context) error {
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("cluster health bad: %s", strings.TrimSpace(string(data)))
	}
	return nil
}
