package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"followwatch/pkg/logger"
	"followwatch/pkg/service"
)

var (
	serveInterval time.Duration
	serveWorkers  int
	serveNotifier string
	serveMetrics  string
)

// serveCmd runs the monitor until interrupted
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the periodic monitor",
	Long: `Run the monitor in the foreground. Every active target is checked once
per interval, starting shortly after launch. Stop with Ctrl+C; running
checks are allowed to finish.`,
	Example: `  # Check every 6 hours with the configured notifier
  followwatch serve

  # Faster cadence with Discord DMs and metrics
  followwatch serve --interval 1h --notifier discord --metrics-addr :9090`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().DurationVar(&serveInterval, "interval", 0, "scan interval (e.g. 30m, 6h)")
	serveCmd.Flags().IntVar(&serveWorkers, "workers", 0, "maximum concurrent checks")
	serveCmd.Flags().StringVar(&serveNotifier, "notifier", "", "notifier type (log, desktop, discord, none)")
	serveCmd.Flags().StringVar(&serveMetrics, "metrics-addr", "", "address for /metrics and /health, empty disables")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.GetLogger()

	svc, err := service.New(cfg, service.Deps{Logger: log})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(ctx); err != nil {
		_ = svc.Stop(context.Background())
		return err
	}

	<-ctx.Done()
	log.Info("shutdown requested, waiting for running checks")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return svc.Stop(shutdownCtx)
}
