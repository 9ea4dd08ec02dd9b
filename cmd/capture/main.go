// Command capture records single transactions by hand, from a spoken
// transcript or from a receipt photo, and serves the same flow over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvloznov/finance-capture/internal/config"
	"github.com/dvloznov/finance-capture/internal/logger"
	"github.com/dvloznov/finance-capture/internal/settings"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgFile string

	// Populated by initConfig before any subcommand runs.
	cfg   *config.Config
	prefs *settings.Settings
	log   zerolog.Logger

	rootCmd = &cobra.Command{
		Use:   "capture",
		Short: "Capture personal finance transactions",
		Long: `capture records one transaction at a time: typed in by hand, extracted
from a spoken transcript, or read off a receipt photo. Every extracted value is
shown for review before it is committed to the ledger.`,
		PersistentPreRunE: initConfig,
		SilenceUsage:      true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or $HOME/.config/finance-capture/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(sayCmd())
	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(migrateCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(cmd *cobra.Command, _ []string) error {
	v, err := config.New(cfgFile)
	if err != nil {
		return err
	}

	flags := cmd.Root().PersistentFlags()
	_ = v.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("logging.format", flags.Lookup("log-format"))

	cfg, err = config.Load(v)
	if err != nil {
		return err
	}

	prefs, err = settings.Load(v)
	if err != nil {
		return err
	}

	log, err = logger.New(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	return nil
}
