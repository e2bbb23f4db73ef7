package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/DeafMist/econ-news-radar/backend/internal/config"
	"github.com/DeafMist/econ-news-radar/backend/internal/elasticsearch"
	"github.com/DeafMist/econ-news-radar/backend/internal/events"
	"github.com/DeafMist/econ-news-radar/backend/internal/fetcher"
	"github.com/DeafMist/econ-news-radar/backend/internal/metrics"
	"github.com/DeafMist/econ-news-radar/backend/internal/models"
	"github.com/DeafMist/econ-news-radar/backend/internal/pipeline"
	"github.com/DeafMist/econ-news-radar/backend/internal/processing"
	"github.com/DeafMist/econ-news-radar/backend/internal/redisstore"
	"github.com/DeafMist/econ-news-radar/backend/internal/sanitize"
	"github.com/DeafMist/econ-news-radar/backend/internal/storage"
	"github.com/DeafMist/econ-news-radar/backend/internal/translate"
)

type app struct {
	cfg     *config.Collector
	log     *slog.Logger
	store   *storage.Store
	pipe    *pipeline.Pipeline
	sources []models.Source
	sinks   []pipeline.Sink
	metrics *metrics.Metrics
	now     func() time.Time
}

// newApp loads the source, category and tag files and wires every
// collaborator. The returned cleanup closes mirror connections.
func newApp(ctx context.Context, cfg *config.Collector, log *slog.Logger, reg prometheus.Registerer) (*app, func(), error) {
	sources, err := config.LoadSources(cfg.SourcesPath())
	if err != nil {
		return nil, nil, err
	}
	categories, err := config.LoadCategories(cfg.CategoriesPath())
	if err != nil {
		return nil, nil, err
	}
	rules, err := config.LoadTagRules(cfg.TagsPath())
	if err != nil {
		return nil, nil, err
	}
	if rules == nil {
		rules = processing.DefaultTagRules()
	}

	var translator translate.Translator = translate.Noop{}
	if cfg.Translate.Enabled {
		translator = translate.NewGoogle(cfg.Translate.Endpoint, cfg.Translate.Timeout, cfg.Translate.RateLimit)
	}

	f := fetcher.New(fetcher.Options{
		Timeout:        cfg.FetchTimeout,
		UserAgent:      cfg.UserAgent,
		MaxEntries:     cfg.MaxEntries,
		MaxAge:         cfg.Retention,
		TargetLanguage: cfg.TargetLanguage,
		Translator:     translator,
		Logger:         log,
	})

	sinks, cleanup, err := buildSinks(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		store:   storage.New(cfg.DataDir, cfg.Location),
		pipe:    buildPipeline(cfg, f, categories, rules, log),
		sources: sources,
		sinks:   sinks,
		metrics: metrics.New(reg),
		now:     time.Now,
	}

	log.Info("collector configured",
		slog.Int("sources", len(sources)),
		slog.Int("categories", len(categories)),
		slog.Int("tag_rules", len(rules)),
		slog.Int("mirrors", len(sinks)),
		slog.String("data_dir", cfg.DataDir),
	)
	return a, cleanup, nil
}

func buildPipeline(cfg *config.Collector, f pipeline.Fetcher, categories []models.Category, rules []models.TagRule, log *slog.Logger) *pipeline.Pipeline {
	return pipeline.New(
		f,
		processing.NewClassifier(categories, processing.DefaultCategory),
		processing.NewSummarizer(sanitize.New()),
		processing.NewScorer(cfg.PriorityCategories),
		processing.NewTagExtractor(rules),
		pipeline.Settings{
			Retention:      cfg.Retention,
			TrendingWindow: cfg.TrendingWindow,
			TrendingLimit:  cfg.TrendingLimit,
		},
		log,
	)
}

// buildSinks enables each mirror whose address is configured. A mirror that
// is unreachable at startup is still registered; its publishes fail and are
// logged per run.
func buildSinks(ctx context.Context, cfg *config.Collector, log *slog.Logger) ([]pipeline.Sink, func(), error) {
	var (
		sinks   []pipeline.Sink
		closers []func() error
	)

	if cfg.ElasticsearchAddr != "" {
		es, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", config.ErrConfig, err)
		}
		ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := es.EnsureIndex(ensureCtx); err != nil {
			log.Warn("elasticsearch index not ready", slog.Any("err", err))
		}
		cancel()
		sinks = append(sinks, elasticsearch.NewMirror(es, cfg.Retention, log))
	}

	if len(cfg.KafkaBrokers) > 0 {
		w := events.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		closers = append(closers, w.Close)
		sinks = append(sinks, events.NewPublisher(w, log))
	}

	if cfg.RedisAddr != "" {
		rdb := redisstore.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		closers = append(closers, rdb.Close)
		sinks = append(sinks, redisstore.New(rdb, cfg.RedisPrefix, cfg.Retention))
	}

	cleanup := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Warn("close mirror", slog.Any("err", err))
			}
		}
	}
	return sinks, cleanup, nil
}

// runOnce performs one collection pass. Only persistence failures are
// returned; fetch and mirror failures are logged.
func (a *app) runOnce(ctx context.Context) error {
	log := a.log.With(slog.String("run_id", uuid.NewString()))
	start := a.now()
	log.Info("collection started", slog.Int("sources", len(a.sources)))

	prior, err := a.store.LoadSnapshot()
	if err != nil {
		a.metrics.ObserveFailure(time.Since(start))
		return fmt.Errorf("load prior snapshot: %w", err)
	}

	res := a.pipe.WithLogger(log).Run(ctx, prior, a.sources, start.In(a.cfg.Location))

	archive, err := a.store.Save(res.Snapshot, res.Trending, res.RunAt)
	if err != nil {
		a.metrics.ObserveFailure(time.Since(start))
		return fmt.Errorf("save snapshot: %w", err)
	}

	failed := pipeline.PublishAll(ctx, log, a.sinks, res)
	a.metrics.ObserveMirrorFailures(failed)
	took := time.Since(start)
	a.metrics.ObserveRun(res, took)

	failedSources := 0
	for _, s := range res.Stats.Sources {
		if s.Err != nil {
			failedSources++
		}
	}

	log.Info("collection finished",
		slog.Int("new", res.Stats.New),
		slog.Int("duplicates", res.Stats.Duplicates),
		slog.Int("retained", res.Stats.Retained),
		slog.Int("dropped", res.Stats.Dropped),
		slog.Int("trending", res.Stats.Trending),
		slog.Int("total", res.Snapshot.TotalItems),
		slog.Int("failed_sources", failedSources),
		slog.String("archive", archive),
		slog.Duration("took", took),
	)
	return nil
}

// serve runs a pass immediately and then on every tick of the configured
// schedule until ctx is done. Runs never overlap.
func (a *app) serve(ctx context.Context, gatherer prometheus.Gatherer) error {
	sched, err := cron.ParseStandard(a.cfg.Schedule)
	if err != nil {
		return fmt.Errorf("%w: schedule %q: %v", config.ErrConfig, a.cfg.Schedule, err)
	}

	clog := cronLogger{log: a.log}
	job := cron.NewChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)).Then(cron.FuncJob(func() {
		if err := a.runOnce(ctx); err != nil {
			a.log.Error("collection failed", slog.Any("err", err))
		}
	}))

	c := cron.New(cron.WithLocation(a.cfg.Location), cron.WithLogger(clog))
	c.Schedule(sched, job)

	var srv *http.Server
	if a.cfg.MetricsAddr != "" {
		srv = &http.Server{
			Addr:              a.cfg.MetricsAddr,
			Handler:           metricsRouter(gatherer),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			a.log.Info("metrics server starting", slog.String("addr", a.cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("metrics server stopped", slog.Any("err", err))
			}
		}()
	}

	job.Run()
	c.Start()
	a.log.Info("scheduler started", slog.String("schedule", a.cfg.Schedule))

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	<-c.Stop().Done()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("metrics server shutdown", slog.Any("err", err))
		}
	}
	return nil
}

func metricsRouter(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}

// cronLogger routes cron's own messages through slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, slog.Any("err", err))...)
}
