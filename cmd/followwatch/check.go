package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"followwatch/pkg/logger"
	"followwatch/pkg/monitor"
	"followwatch/pkg/notify"
	"followwatch/pkg/service"
	"followwatch/pkg/ui"
)

var checkNotify bool

// checkCmd runs one target check and waits for it
var checkCmd = &cobra.Command{
	Use:   "check <target-id>",
	Short: "Check one target now",
	Long: `Check a single target immediately and print the report. The owner is
only notified when --notify is set.`,
	Example: `  followwatch check 5
  followwatch check 5 --notify`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().BoolVar(&checkNotify, "notify", false, "deliver the report through the configured notifier")
}

func runCheck(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	deps := service.Deps{Logger: logger.GetLogger()}
	if !checkNotify {
		deps.Notifier = notify.Nop{}
	}
	svc, err := service.New(cfg, deps)
	if err != nil {
		return err
	}
	defer svc.Stop(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out := svc.Check(ctx, id)
	return printOutcome(out)
}

func printOutcome(out monitor.Outcome) error {
	switch out.Status {
	case monitor.StatusSuccess:
		r := monitor.RenderReport(out.Target, *out.Snapshot, *out.Diff)
		ui.PrintSuccess(r.Title)
		ui.PrintBlock(r.Body)
		return nil
	case monitor.StatusSkipped:
		ui.PrintWarning("Check skipped", out.SkipReason)
		return nil
	default:
		return fmt.Errorf("check failed: %w", out.Err)
	}
}
