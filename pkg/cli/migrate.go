package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/genbi-engine/pkg/config"
	"github.com/ekaya-inc/genbi-engine/pkg/database"
	"github.com/ekaya-inc/genbi-engine/pkg/logging"
)

func newMigrateCmd(configPath *string, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd.Context(), *configPath, version)
		},
	}
}

func runMigrate(ctx context.Context, configPath, version string) error {
	cfg, logger, err := bootstrap(configPath, version)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return db.Close()
}

// bootstrap loads configuration and builds the root logger.
func bootstrap(configPath, version string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath, version)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

// openDatabase opens the store and applies pending migrations.
func openDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*database.DB, error) {
	db, err := database.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	logger.Info("Database opened", zap.String("path", cfg.Database.Path))

	if err := database.RunMigrations(db, logger.Named("migrations")); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
