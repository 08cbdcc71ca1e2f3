package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/VertyyBird/Reddit-Archiver/internal/archive"
	"github.com/VertyyBird/Reddit-Archiver/internal/config"
	"github.com/VertyyBird/Reddit-Archiver/internal/cycle"
	"github.com/VertyyBird/Reddit-Archiver/internal/database"
	"github.com/VertyyBird/Reddit-Archiver/internal/ingest"
	"github.com/VertyyBird/Reddit-Archiver/internal/logging"
	"github.com/VertyyBird/Reddit-Archiver/internal/metrics"
	"github.com/VertyyBird/Reddit-Archiver/internal/server"
	"github.com/VertyyBird/Reddit-Archiver/internal/verify"
)

func newRunCmd() *cobra.Command {
	var (
		once      bool
		subreddit string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Starts the archiver polling loop",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if len(cfg.Feeds.Subreddits) == 0 && subreddit != "" {
				cfg.Feeds.Subreddits = []string{subreddit}
			}
			if len(cfg.Feeds.Subreddits) == 0 {
				return fmt.Errorf("no subreddits configured")
			}

			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck // best-effort flush

			metrics.Init()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			db, err := database.New(cfg.DB.Path)
			if err != nil {
				return fmt.Errorf("init database: %w", err)
			}
			defer db.Close()

			runner := buildRunner(db, cfg, logger)

			if cfg.Dashboard.Enabled {
				startDashboard(ctx, cfg, logger)
			}

			logger.Info("archiver starting",
				zap.String("db", cfg.DB.Path),
				zap.Strings("subreddits", cfg.Feeds.Subreddits),
				zap.Bool("wayback", cfg.Archive.Wayback),
				zap.Bool("archive_today", cfg.Archive.ArchiveToday),
				zap.Int("scan_limit", cfg.Feeds.ScanLimit),
				zap.Duration("interval", cfg.CycleInterval()))

			if once {
				runner.RunCycle(ctx)
				return nil
			}
			runner.Run(ctx)
			logger.Info("archiver stopping")
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run one cycle and exit")
	cmd.Flags().StringVar(&subreddit, "subreddit", "", "fallback subreddit when the config lists none")

	return cmd
}

func buildRunner(db *database.DB, cfg config.Config, logger *zap.Logger) *cycle.Runner {
	wayback := archive.NewWayback(
		cfg.Archive.WaybackBaseURL,
		cfg.Archive.AvailabilityURL,
		cfg.Feeds.UserAgent,
		cfg.HTTPTimeout())
	atoday := archive.NewArchiveToday(
		cfg.Archive.ArchiveTodayBase,
		cfg.Feeds.UserAgent,
		cfg.HTTPTimeout())

	ingestor := ingest.New(db, wayback, atoday, ingest.Config{
		ScanLimit:    cfg.Feeds.ScanLimit,
		UserAgent:    cfg.Feeds.UserAgent,
		Wayback:      cfg.Archive.Wayback,
		ArchiveToday: cfg.Archive.ArchiveToday,
		DelayWayback: time.Duration(cfg.Archive.DelayWaybackSec * float64(time.Second)),
		DelayAToday:  time.Duration(cfg.Archive.DelayATodaySec * float64(time.Second)),
	}, logger)

	verifier := verify.New(db, wayback, verify.Policy{
		Batch:           cfg.Verify.Batch,
		MinAge:          time.Duration(cfg.Verify.MinAgeSec) * time.Second,
		RecheckInterval: time.Duration(cfg.Verify.RecheckIntervalSec) * time.Second,
	}, logger)

	return cycle.New(db, ingestor, verifier, cycle.Config{
		Subreddits:    cfg.Feeds.Subreddits,
		Wayback:       cfg.Archive.Wayback,
		SnapshotPath:  cfg.Snapshot.Path,
		SnapshotLimit: cfg.Snapshot.Limit,
		Interval:      cfg.CycleInterval(),
	}, logger)
}

// startDashboard runs the dashboard next to the archiver loop. It opens
// its own read-only handle so the write path stays single-owner, and
// shares the loop's signal context so both drain on shutdown.
func startDashboard(ctx context.Context, cfg config.Config, logger *zap.Logger) {
	roDB, err := database.NewReadOnly(cfg.DB.Path)
	if err != nil {
		logger.Warn("dashboard store open failed", zap.Error(err))
		return
	}
	srv, err := server.New(roDB, cfg.DB.Path, logger)
	if err != nil {
		logger.Warn("dashboard init failed", zap.Error(err))
		return
	}
	addr := fmt.Sprintf("%s:%d", cfg.Dashboard.Host, cfg.Dashboard.Port)
	go func() {
		if err := srv.Start(ctx, addr); err != nil {
			logger.Warn("dashboard stopped", zap.Error(err))
		}
	}()
}
