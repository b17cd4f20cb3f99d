package commands

import (
	"context"
	"fmt"

	handler "formflow-backend/api"
	"formflow-backend/pkg/config"
	"formflow-backend/pkg/database"
	"formflow-backend/pkg/logging"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "formflow",
		Short:         "Form builder backend with shared workspaces",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		NewServeCommand(),
		NewReconcileCommand(),
		NewSweepInvitesCommand(),
		NewMigrateCommand(),
	)

	return rootCmd
}

// runtime is what every command needs: validated config, a configured logger and an open store
type runtime struct {
	cfg   *config.Config
	log   *logrus.Logger
	db    database.DatabaseInterface
	flush func()
}

func (rt *runtime) Close() {
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			rt.log.WithError(err).Warn("failed to close store")
		}
	}
	rt.flush()
}

func bootstrap(ctx context.Context) (*runtime, error) {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, flush, err := logging.Setup(logging.Options{
		Level:       cfg.LogLevel,
		JSON:        cfg.IsProduction(),
		SentryDSN:   cfg.SentryDSN,
		Environment: cfg.Environment,
	})
	if err != nil {
		// keep running without Sentry
		log.WithError(err).Warn("sentry initialisation failed")
	}
	if cfg.UsesDefaultJWTSecret() {
		log.Warn("JWT_SECRET is not set; using the development default")
	}

	db, err := database.NewDatabase(ctx, handler.StoreConfig(cfg))
	if err != nil {
		flush()
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StoreBackend, err)
	}
	return &runtime{cfg: cfg, log: log, db: db, flush: flush}, nil
}
