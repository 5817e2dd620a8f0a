package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mkravchenko/claude-sync/internal/config"
	"github.com/mkravchenko/claude-sync/internal/logger"
	"github.com/mkravchenko/claude-sync/internal/service/installer"
	"github.com/mkravchenko/claude-sync/internal/service/syncer"
	"github.com/mkravchenko/claude-sync/internal/version"
)

// Exit codes let the scheduler distinguish the three terminal states.
const (
	// ExitFailure is returned for any failed run.
	ExitFailure = 1
	// ExitUpToDate is returned when the store already holds the latest
	// version and nothing was done.
	ExitUpToDate = 2
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel overrides the default info level.
	logLevel string
	// force republishes even when versions match.
	force bool
	// installOutput is the target path for the install command.
	installOutput string
	// installPlatform overrides platform detection for the install command.
	installPlatform string

	// exitCode is set by subcommands that finished without error but need a
	// distinct status for the scheduler.
	exitCode int

	// rootCmd represents the base command for the sync tool.
	rootCmd = &cobra.Command{
		Use:   "claude-sync",
		Short: "Mirror Claude Code binaries into a versioned release store",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}
		},
	}

	// syncCmd runs the full sync procedure.
	syncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Download, verify and publish the latest upstream version",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			result, err := syncer.Run(ctx, &syncer.Options{
				ConfigPath: configPath,
				Force:      force,
			})
			if err != nil {
				return err
			}

			if result.Outcome == syncer.OutcomeUpToDate {
				exitCode = ExitUpToDate
			}

			return nil
		},
	}

	// checkCmd compares versions without downloading or publishing.
	checkCmd = &cobra.Command{
		Use:   "check",
		Short: "Report whether upstream is ahead of the release store",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			result, err := syncer.Check(ctx, &syncer.Options{ConfigPath: configPath})
			if err != nil {
				return err
			}

			if result.Outcome == syncer.OutcomeUpToDate {
				exitCode = ExitUpToDate
			}

			return nil
		},
	}

	// installCmd installs the current platform's binary locally.
	installCmd = &cobra.Command{
		Use:   "install",
		Short: "Download and install the latest binary for this platform",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return installer.Run(ctx, &installer.Options{
				ConfigPath: configPath,
				OutputPath: installOutput,
				Platform:   installPlatform,
			})
		},
	}
)

// Execute runs the claude-sync CLI and exits with a status the scheduler can
// act on: 0 published/installed, 2 up-to-date no-op, 1 failure.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitFailure)
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to configuration file (default "+config.DefaultConfigFilename+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")

	syncCmd.Flags().BoolVar(&force, "force", false,
		"republish even when the store already holds the latest version")

	installCmd.Flags().StringVarP(&installOutput, "output", "o", "",
		"install path for the binary (default ./claude)")
	installCmd.Flags().StringVar(&installPlatform, "platform", "",
		"platform key override, e.g. linux-x64-musl")

	rootCmd.AddCommand(syncCmd, checkCmd, installCmd)
}
