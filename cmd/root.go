package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"invoice-service/pkg/config"
	"invoice-service/pkg/logger"
)

var version = "1.0.0"

// cfg is loaded once before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "invoice-service",
	Short: "Invoice service - invoices, PDFs and online payments for organizations",
	Long: `Invoice service is an HTTP API for organizations to manage invoice
templates, issue numbered invoices, email them as PDFs and collect
payment through the payment gateway.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}

		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.Log.Level = level
		}
		if err := logger.InitLogger(&logger.LogConfig{
			Level:       cfg.Log.Level,
			Environment: cfg.Server.Env,
			ServiceName: cfg.ServiceName,
		}); err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
}

// Execute runs the CLI until it finishes or the process is signalled.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.GetLogger().Error("Command execution failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		stop()
		os.Exit(1)
	}
	_ = logger.GetLogger().Sync()
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")
}
