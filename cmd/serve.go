package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"invoice-service/internal/model"
	"invoice-service/internal/server"
	"invoice-service/pkg/database"
	"invoice-service/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (overrides SERVER_PORT)")
	serveCmd.Flags().Bool("migrate", true, "Migrate the schema before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.GetLogger()
	log.Info("Starting invoice service...", cfg.LogConfig()...)

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Server.Port = port
	}

	db, err := database.InitDB(&cfg.DB)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
		if err := database.MigrateModels(db, model.All()...); err != nil {
			return err
		}
		log.Info("Database migrations completed")
	}

	app, err := server.New(cfg, db, server.Options{})
	if err != nil {
		return err
	}

	if err := app.Run(cmd.Context()); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		return err
	}
	log.Info("Server stopped")
	return nil
}
