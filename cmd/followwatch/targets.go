package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"followwatch/pkg/models"
	"followwatch/pkg/monitor"
	"followwatch/pkg/scraper"
	"followwatch/pkg/store"
	"followwatch/pkg/ui"
)

var (
	targetOwner  string
	listOwner    string
	listInactive bool
)

// targetsCmd groups tracked target management
var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Manage tracked profiles",
}

var targetsAddCmd = &cobra.Command{
	Use:   "add <profile-url>",
	Short: "Track a profile",
	Long: `Track an Instagram or TikTok profile. The platform is detected from the
URL, which must look like https://www.instagram.com/<user> or
https://www.tiktok.com/@<user>.`,
	Example: `  followwatch targets add https://www.tiktok.com/@someone --owner 123456789012345678`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		platform, username, err := scraper.DetectPlatform(args[0])
		if err != nil {
			return err
		}
		return withStore(func(ctx context.Context, st store.Store) error {
			t, err := st.AddTarget(ctx, models.TrackedTarget{
				OwnerID:    targetOwner,
				Platform:   platform,
				ProfileURL: args[0],
				Username:   username,
				Active:     true,
			})
			if err != nil {
				return fmt.Errorf("failed to add target: %w", err)
			}
			ui.PrintSuccess(fmt.Sprintf("Tracking %s on %s (id %d)", t.DisplayName(), platform.Title(), t.ID))
			return nil
		})
	},
}

var targetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, st store.Store) error {
			targets, err := st.ListTargets(ctx, listOwner)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(targets))
			for _, t := range targets {
				if !t.Active && !listInactive {
					continue
				}
				rows = append(rows, []string{
					strconv.FormatInt(t.ID, 10),
					t.Platform.Title(),
					t.DisplayName(),
					t.OwnerID,
					activeLabel(t.Active),
					monitor.FormatTime(t.LastCheckedAt),
				})
			}
			if len(rows) == 0 {
				ui.PrintWarning("No targets")
				return nil
			}
			ui.PrintTable([]string{"ID", "PLATFORM", "PROFILE", "OWNER", "STATE", "LAST CHECKED"}, rows)
			return nil
		})
	},
}

var targetsPauseCmd = &cobra.Command{
	Use:   "pause <target-id>",
	Short: "Stop checking a profile without forgetting its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTargetActive(args[0], false)
	},
}

var targetsResumeCmd = &cobra.Command{
	Use:   "resume <target-id>",
	Short: "Resume checking a paused profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTargetActive(args[0], true)
	},
}

var targetsRemoveCmd = &cobra.Command{
	Use:   "remove <target-id>",
	Short: "Stop tracking a profile and delete its snapshots",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withStore(func(ctx context.Context, st store.Store) error {
			if err := st.DeleteTarget(ctx, id); err != nil {
				return err
			}
			ui.PrintSuccess(fmt.Sprintf("Removed target %d", id))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(targetsCmd)
	targetsCmd.AddCommand(targetsAddCmd, targetsListCmd, targetsPauseCmd, targetsResumeCmd, targetsRemoveCmd)

	targetsAddCmd.Flags().StringVar(&targetOwner, "owner", "", "owner id that receives the reports (required)")
	_ = targetsAddCmd.MarkFlagRequired("owner")

	targetsListCmd.Flags().StringVar(&listOwner, "owner", "", "only show targets of this owner")
	targetsListCmd.Flags().BoolVarP(&listInactive, "all", "a", false, "include paused targets")
}

func setTargetActive(arg string, active bool) error {
	id, err := parseID(arg)
	if err != nil {
		return err
	}
	return withStore(func(ctx context.Context, st store.Store) error {
		if err := st.SetTargetActive(ctx, id, active); err != nil {
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("Target %d is now %s", id, activeLabel(active)))
		return nil
	})
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func activeLabel(active bool) string {
	if active {
		return "active"
	}
	return "paused"
}
