package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/DeafMist/econ-news-radar/backend/internal/config"
	"github.com/DeafMist/econ-news-radar/backend/internal/logger"
	"github.com/DeafMist/econ-news-radar/backend/internal/storage"
)

const (
	exitConfig  = 1
	exitPersist = 2
)

func main() {
	log := logger.New("collector")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	err := newRootCmd(log).ExecuteContext(ctx)
	stop()

	if err != nil {
		log.Error("collector failed", slog.Any("err", err))
		os.Exit(exitCode(err))
	}
}

func newRootCmd(log *slog.Logger) *cobra.Command {
	var (
		cfgFile  string
		schedule string
		once     bool
	)

	cmd := &cobra.Command{
		Use:           "collector",
		Short:         "Collect economic news feeds into a rolling JSON feed",
		Long:          "Fetches every active source once and rewrites the feed, trending index and hourly archive. With --schedule it keeps running and repeats on a cron spec.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadCollector(cfgFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("schedule") {
				cfg.Schedule = schedule
			}
			if once {
				cfg.Schedule = ""
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			ctx := cmd.Context()
			a, cleanup, err := newApp(ctx, cfg, log, reg)
			if err != nil {
				return err
			}
			defer cleanup()

			if cfg.Schedule == "" {
				return a.runOnce(ctx)
			}
			return a.serve(ctx, reg)
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or ./configs/config.yaml)")
	cmd.Flags().StringVar(&schedule, "schedule", "", `cron spec for repeated runs, e.g. "0 * * * *"`)
	cmd.Flags().BoolVar(&once, "once", false, "run a single pass even if a schedule is configured")

	return cmd
}

// exitCode maps configuration failures to 1 and persistence failures to 2.
func exitCode(err error) int {
	switch {
	case errors.Is(err, storage.ErrPersist):
		return exitPersist
	default:
		return exitConfig
	}
}
