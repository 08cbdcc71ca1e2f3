// Package cycle runs the archiver's polling loop: ingest every configured
// feed, verify pending Wayback legs, export the JSON snapshot. Failures
// never cross a cycle boundary; a bad feed or a bad stage is logged and
// the cycle carries on.
package cycle

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/VertyyBird/Reddit-Archiver/internal/database"
	"github.com/VertyyBird/Reddit-Archiver/internal/ingest"
	"github.com/VertyyBird/Reddit-Archiver/internal/metrics"
	"github.com/VertyyBird/Reddit-Archiver/internal/snapshot"
	"github.com/VertyyBird/Reddit-Archiver/internal/verify"
)

// snapshotExport is a seam so tests can observe export calls.
var snapshotExport = snapshot.Export

// Stats aggregates what one cycle accomplished.
type Stats struct {
	NewPosts     int
	LegsVerified int
}

// Config controls the Runner.
type Config struct {
	Subreddits    []string
	Wayback       bool
	SnapshotPath  string
	SnapshotLimit int
	Interval      time.Duration
}

// Runner owns the single-writer loop. Ingestion and verification run
// strictly sequentially; outbound HTTP calls are the only blocking work.
type Runner struct {
	db       *database.DB
	ingestor *ingest.Ingestor
	verifier *verify.Verifier
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Runner.
func New(db *database.DB, ingestor *ingest.Ingestor, verifier *verify.Verifier, cfg Config, logger *zap.Logger) *Runner {
	return &Runner{
		db:       db,
		ingestor: ingestor,
		verifier: verifier,
		cfg:      cfg,
		logger:   logger,
	}
}

// RunCycle executes one full cycle and returns its counters. Every stage
// error is logged and swallowed so one failing feed or service never
// starves the others.
func (r *Runner) RunCycle(ctx context.Context) Stats {
	var stats Stats

	for _, sub := range r.cfg.Subreddits {
		count, err := r.ingestor.PollSubreddit(ctx, sub)
		if err != nil {
			metrics.FeedError(sub)
			r.logger.Warn("feed poll failed", zap.String("subreddit", sub), zap.Error(err))
			continue
		}
		stats.NewPosts += count
	}

	if r.cfg.Wayback {
		verified, err := r.verifier.Run(ctx)
		if err != nil {
			r.logger.Warn("verification pass failed", zap.Error(err))
		} else {
			stats.LegsVerified = verified
		}
	}

	if r.cfg.SnapshotPath != "" {
		if err := snapshotExport(r.db, r.cfg.SnapshotPath, r.cfg.SnapshotLimit); err != nil {
			r.logger.Warn("snapshot export failed", zap.Error(err))
		}
	}

	metrics.CycleCompleted()
	r.logger.Info("cycle done",
		zap.Int("new_posts", stats.NewPosts),
		zap.Int("legs_verified", stats.LegsVerified))
	return stats
}

// Run loops RunCycle until the context finishes, sleeping the configured
// interval (plus jitter) between cycles.
func (r *Runner) Run(ctx context.Context) {
	for {
		r.RunCycle(ctx)

		jitter := time.Duration((0.2 + rand.Float64()) * float64(time.Second))
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.cfg.Interval + jitter):
		}
	}
}
