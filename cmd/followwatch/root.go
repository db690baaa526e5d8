package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"followwatch/pkg/config"
	"followwatch/pkg/logger"
	"followwatch/pkg/service"
	"followwatch/pkg/store"
	"followwatch/pkg/ui"
)

var (
	// Version information
	version   = "0.1.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	dbPath     string
	noColor    bool

	// cfg is loaded before every command runs
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "followwatch",
	Short: "Watch social profiles and report follower changes",
	Long: `followwatch periodically re-checks tracked Instagram and TikTok profiles,
records a snapshot of each observation and reports what changed since the
previous one to the profile's owner.

Scraper accounts are shared between all targets. Their secrets (a session
cookie or a full cookie header) are kept in the system keychain, with
FOLLOWWATCH_<PLATFORM>_<USER>_SECRET environment variables as a fallback.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.SetNoColor(noColor)

		flags := map[string]interface{}{}
		if cmd.Flags().Changed("log-level") {
			flags["log-level"] = logLevel
		}
		if dbPath != "" {
			flags["db"] = dbPath
		}
		for _, name := range []string{"interval", "workers", "notifier", "metrics-addr"} {
			f := cmd.Flags().Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			switch name {
			case "interval":
				flags[name] = serveInterval
			case "workers":
				flags[name] = serveWorkers
			default:
				flags[name] = f.Value.String()
			}
		}

		loaded, err := config.Load(configFile, flags)
		if err != nil {
			return err
		}
		cfg = loaded
		return logger.Initialize(&cfg.Logging)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .followwatch.yaml or ~/.config/followwatch/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "sqlite database path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.SetVersionTemplate(`followwatch {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// withStore opens the configured database for an admin command
func withStore(fn func(ctx context.Context, st store.Store) error) error {
	st, err := service.OpenStore(cfg, nil)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(context.Background(), st)
}
