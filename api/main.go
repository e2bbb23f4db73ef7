package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/DeafMist/econ-news-radar/backend/internal/config"
	"github.com/DeafMist/econ-news-radar/backend/internal/elasticsearch"
	"github.com/DeafMist/econ-news-radar/backend/internal/logger"
	"github.com/DeafMist/econ-news-radar/backend/internal/redisstore"
	"github.com/DeafMist/econ-news-radar/backend/internal/storage"
)

func main() {
	log := logger.New("api")

	var cfgFile string
	cmd := &cobra.Command{
		Use:           "api",
		Short:         "Serve the collected feed over HTTP",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadAPI(cfgFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, log)
		},
	}
	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or ./configs/config.yaml)")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		log.Error("api failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.API, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := &server{
		log:   log,
		cfg:   cfg,
		files: storage.New(cfg.DataDir, time.Local),
	}

	if cfg.ElasticsearchAddr != "" {
		es, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
		if err != nil {
			return errors.Join(config.ErrConfig, err)
		}
		srv.search = es
	}

	if cfg.RedisAddr != "" {
		rdb := redisstore.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer rdb.Close()
		srv.cache = redisstore.New(rdb, cfg.RedisPrefix, 0)
	}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           newRouter(srv, reg, reg),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api server starting",
			slog.String("addr", cfg.BindAddr),
			slog.String("data_dir", cfg.DataDir),
			slog.Bool("search", srv.search != nil),
			slog.Bool("cache", srv.cache != nil),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
	return nil
}
