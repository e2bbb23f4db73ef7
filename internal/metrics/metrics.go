// Package metrics exposes Prometheus collectors for collection runs.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/DeafMist/econ-news-radar/backend/internal/fetcher"
	"github.com/DeafMist/econ-news-radar/backend/internal/pipeline"
)

const Namespace = "econfeed"

// Metrics holds the collector's Prometheus metrics.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	LastSuccess     prometheus.Gauge
	SourceFetches   *prometheus.CounterVec
	ItemsCollected  *prometheus.CounterVec
	ItemsDuplicated *prometheus.CounterVec
	ItemsDropped    prometheus.Counter
	FeedSize        prometheus.Gauge
	TrendingSize    prometheus.Gauge
	MirrorFailures  *prometheus.CounterVec
}

// New creates and registers all metrics on reg, or the default registerer
// when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runs_total",
			Help:      "Collection runs by outcome",
		}, []string{"status"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a collection run",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that persisted its snapshot",
		}),
		SourceFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "source_fetches_total",
			Help:      "Source fetches by outcome",
		}, []string{"source", "result"}),
		ItemsCollected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "items_collected_total",
			Help:      "New items admitted to the feed",
		}, []string{"source"}),
		ItemsDuplicated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "items_duplicate_total",
			Help:      "Fetched entries dropped as already known",
		}, []string{"source"}),
		ItemsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "items_expired_total",
			Help:      "Prior items dropped by retention",
		}),
		FeedSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "feed_items",
			Help:      "Items in the latest snapshot",
		}),
		TrendingSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "trending_items",
			Help:      "Items flagged trending in the latest snapshot",
		}),
		MirrorFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "mirror_failures_total",
			Help:      "Failed mirror publishes",
		}, []string{"sink"}),
	}
}

// ObserveRun records a persisted run.
func (m *Metrics) ObserveRun(res pipeline.Result, took time.Duration) {
	m.RunsTotal.WithLabelValues("success").Inc()
	m.RunDuration.Observe(took.Seconds())
	m.LastSuccess.Set(float64(res.RunAt.Unix()))

	for _, src := range res.Stats.Sources {
		m.SourceFetches.WithLabelValues(src.Name, fetchResult(src.Err)).Inc()
		m.ItemsCollected.WithLabelValues(src.Name).Add(float64(src.New))
		m.ItemsDuplicated.WithLabelValues(src.Name).Add(float64(src.Duplicates))
	}
	m.ItemsDropped.Add(float64(res.Stats.Dropped))
	m.FeedSize.Set(float64(res.Snapshot.TotalItems))
	m.TrendingSize.Set(float64(res.Stats.Trending))
}

// ObserveFailure records a run that could not persist.
func (m *Metrics) ObserveFailure(took time.Duration) {
	m.RunsTotal.WithLabelValues("failure").Inc()
	m.RunDuration.Observe(took.Seconds())
}

// ObserveMirrorFailures counts failed sinks by name.
func (m *Metrics) ObserveMirrorFailures(sinks []string) {
	for _, s := range sinks {
		m.MirrorFailures.WithLabelValues(s).Inc()
	}
}

func fetchResult(err error) string {
	if err == nil {
		return "ok"
	}
	var fe *fetcher.FetchError
	if errors.As(err, &fe) {
		return string(fe.Type)
	}
	return "error"
}
