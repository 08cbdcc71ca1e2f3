package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/VertyyBird/Reddit-Archiver/internal/database"
	"github.com/VertyyBird/Reddit-Archiver/internal/logging"
	"github.com/VertyyBird/Reddit-Archiver/internal/metrics"
	"github.com/VertyyBird/Reddit-Archiver/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serves the read-only dashboard over an existing database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck // best-effort flush

			metrics.Init()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			db, err := database.NewReadOnly(cfg.DB.Path)
			if err != nil {
				return fmt.Errorf("open database read-only: %w", err)
			}
			defer db.Close()

			srv, err := server.New(db, cfg.DB.Path, logger)
			if err != nil {
				return fmt.Errorf("init dashboard: %w", err)
			}

			addr := fmt.Sprintf("%s:%d", cfg.Dashboard.Host, cfg.Dashboard.Port)
			logger.Info("serving dashboard", zap.String("addr", addr), zap.String("db", cfg.DB.Path))
			return srv.Start(ctx, addr)
		},
	}
}
