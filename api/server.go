package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DeafMist/econ-news-radar/backend/internal/config"
	"github.com/DeafMist/econ-news-radar/backend/internal/elasticsearch"
	"github.com/DeafMist/econ-news-radar/backend/internal/metrics"
	"github.com/DeafMist/econ-news-radar/backend/internal/models"
)

// feedFiles reads what the collector persisted.
type feedFiles interface {
	LoadSnapshot() (models.FeedSnapshot, error)
	LoadTrending() (models.TrendingIndex, error)
}

type newsSearcher interface {
	SearchNews(ctx context.Context, params elasticsearch.SearchParams) (*elasticsearch.SearchResult, error)
	Health(ctx context.Context) error
}

type trendingCache interface {
	TopTrending(ctx context.Context, n int) ([]models.FeedItem, error)
}

type server struct {
	log    *slog.Logger
	cfg    *config.API
	files  feedFiles
	search newsSearcher  // nil when no search mirror is configured
	cache  trendingCache // nil when no trending mirror is configured
}

type errorResponse struct {
	Error string `json:"error"`
}

type feedResponse struct {
	GeneratedAt string            `json:"generated_at"`
	Total       int               `json:"total"`
	From        int               `json:"from"`
	Items       []models.FeedItem `json:"items"`
}

type trendingItemsResponse struct {
	Source string            `json:"source"`
	Items  []models.FeedItem `json:"items"`
}

func newRouter(s *server, reg prometheus.Registerer, gatherer prometheus.Gatherer) http.Handler {
	requests := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "HTTP requests served, by route and status code.",
	}, []string{"route", "code"})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(countRequests(requests))

	r.Get("/health", s.handleHealth)
	r.Get("/feed", s.handleFeed)
	r.Get("/trending", s.handleTrending)
	r.Get("/trending/items", s.handleTrendingItems)
	r.Get("/news", s.handleSearch)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}

func countRequests(requests *prometheus.CounterVec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		})
	}
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.search != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.search.Health(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleFeed serves the latest snapshot, optionally filtered, in snapshot
// order.
func (s *server) handleFeed(w http.ResponseWriter, r *http.Request) {
	snap, err := s.files.LoadSnapshot()
	if err != nil {
		s.log.Error("load snapshot", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "feed unavailable"})
		return
	}

	q := r.URL.Query()
	category := strings.TrimSpace(q.Get("category"))
	tags := parseCSV(q.Get("tags"))
	source := strings.TrimSpace(q.Get("source"))
	country := strings.TrimSpace(q.Get("country"))
	trendingOnly := q.Get("trending") == "true"

	matched := make([]models.FeedItem, 0, len(snap.Items))
	for _, item := range snap.Items {
		if category != "" && item.Category != category {
			continue
		}
		if source != "" && item.Source.Name != source && item.Source.Domain != source {
			continue
		}
		if country != "" && !strings.EqualFold(item.Country, country) {
			continue
		}
		if trendingOnly && !item.IsTrending {
			continue
		}
		if !hasAllTags(item.Tags, tags) {
			continue
		}
		matched = append(matched, item)
	}

	from := clampInt(q.Get("from"), 0, len(matched))
	size := clampInt(q.Get("size"), s.cfg.DefaultPage, s.cfg.MaxPage)
	end := min(from+size, len(matched))

	writeJSON(w, http.StatusOK, feedResponse{
		GeneratedAt: snap.GeneratedAt,
		Total:       len(matched),
		From:        from,
		Items:       matched[from:end],
	})
}

func (s *server) handleTrending(w http.ResponseWriter, _ *http.Request) {
	idx, err := s.files.LoadTrending()
	if err != nil {
		s.log.Error("load trending", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "trending unavailable"})
		return
	}
	if idx.TopItems == nil {
		idx.TopItems = []string{}
	}
	writeJSON(w, http.StatusOK, idx)
}

// handleTrendingItems returns full trending items, from the cache when one is
// configured and reachable, otherwise resolved against the snapshot.
func (s *server) handleTrendingItems(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(r.URL.Query().Get("size"), s.cfg.DefaultPage, s.cfg.MaxPage)

	if s.cache != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		items, err := s.cache.TopTrending(ctx, limit)
		cancel()
		if err == nil {
			writeJSON(w, http.StatusOK, trendingItemsResponse{Source: "cache", Items: items})
			return
		}
		s.log.Warn("trending cache unavailable, using files", slog.Any("err", err))
	}

	idx, err := s.files.LoadTrending()
	if err != nil {
		s.log.Error("load trending", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "trending unavailable"})
		return
	}
	snap, err := s.files.LoadSnapshot()
	if err != nil {
		s.log.Error("load snapshot", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "feed unavailable"})
		return
	}

	byID := make(map[string]models.FeedItem, len(snap.Items))
	for _, item := range snap.Items {
		byID[item.ID] = item
	}
	items := make([]models.FeedItem, 0, min(limit, len(idx.TopItems)))
	for _, id := range idx.TopItems {
		if len(items) == limit {
			break
		}
		if item, ok := byID[id]; ok {
			items = append(items, item)
		}
	}
	writeJSON(w, http.StatusOK, trendingItemsResponse{Source: "files", Items: items})
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.search == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "search is not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q := r.URL.Query()
	params := elasticsearch.SearchParams{
		Query:        strings.TrimSpace(q.Get("q")),
		Category:     strings.TrimSpace(q.Get("category")),
		Tags:         parseCSV(q.Get("tags")),
		Source:       strings.TrimSpace(q.Get("source")),
		Country:      strings.TrimSpace(q.Get("country")),
		TrendingOnly: q.Get("trending") == "true",
		From:         clampInt(q.Get("from"), 0, 10_000),
		Size:         clampInt(q.Get("size"), s.cfg.DefaultPage, s.cfg.MaxPage),
		Sort:         strings.TrimSpace(q.Get("sort")),
		Start:        parseTime(q.Get("start")),
		End:          parseTime(q.Get("end")),
	}

	result, err := s.search.SearchNews(ctx, params)
	if err != nil {
		s.log.Error("search news", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func hasAllTags(have, want []string) bool {
	for _, tag := range want {
		if !slices.Contains(have, tag) {
			return false
		}
	}
	return true
}

func parseTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return &ts
	}
	return nil
}

func parseCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// clampInt parses raw and caps it at max. Missing, malformed or negative
// values give fallback.
func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
