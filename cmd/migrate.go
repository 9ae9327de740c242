package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"invoice-service/internal/model"
	"invoice-service/pkg/database"
	"invoice-service/pkg/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	log := logger.GetLogger()

	db, err := database.InitDB(&cfg.DB)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.MigrateModels(db, model.All()...); err != nil {
		return err
	}
	log.Info("Database migrations completed",
		zap.String("db_driver", cfg.DB.Driver),
		zap.String("db_name", cfg.DB.DBName))
	return nil
}
