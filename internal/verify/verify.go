// Package verify schedules and applies delayed Wayback verification.
// Capture requests are confirmed asynchronously by the service, so each
// submitted leg is re-checked on later cycles until a snapshot newer than
// the submission shows up.
package verify

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/VertyyBird/Reddit-Archiver/internal/archive"
	"github.com/VertyyBird/Reddit-Archiver/internal/database"
	"github.com/VertyyBird/Reddit-Archiver/internal/metrics"
	"github.com/VertyyBird/Reddit-Archiver/internal/model"
)

// Policy holds the timing knobs of the verification pass.
type Policy struct {
	// Batch caps how many candidate posts one pass examines.
	Batch int
	// MinAge is how long after submission a leg becomes eligible for its
	// first check, giving the archival backend time to process the capture.
	MinAge time.Duration
	// RecheckInterval is the minimum spacing between checks of one leg.
	RecheckInterval time.Duration
}

// Verifier applies the verification policy against the store.
type Verifier struct {
	db      *database.DB
	wayback *archive.Wayback
	policy  Policy
	logger  *zap.Logger

	// Injected for tests.
	now   func() time.Time
	sleep func(time.Duration)
}

// Option adjusts a Verifier after construction.
type Option func(*Verifier)

// WithClock overrides the time source and the courtesy-delay sleeper.
func WithClock(now func() time.Time, sleep func(time.Duration)) Option {
	return func(v *Verifier) {
		v.now = now
		v.sleep = sleep
	}
}

// New constructs a Verifier.
func New(db *database.DB, wayback *archive.Wayback, policy Policy, logger *zap.Logger, opts ...Option) *Verifier {
	v := &Verifier{
		db:      db,
		wayback: wayback,
		policy:  policy,
		logger:  logger,
		now:     time.Now,
		sleep:   time.Sleep,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Run performs one verification pass and returns the number of legs
// checked. Already-verified legs are excluded by the candidate query, so a
// confirmed leg can never be demoted here.
func (v *Verifier) Run(ctx context.Context) (int, error) {
	posts, err := v.db.PendingWaybackVerification(v.policy.Batch)
	if err != nil {
		return 0, err
	}

	checked := 0
	for _, post := range posts {
		for _, key := range model.WaybackLegKeys() {
			leg := post.Legs[key]
			if !v.due(leg) {
				continue
			}
			if v.checkLeg(ctx, post, key, leg) {
				checked++
			}
			v.politeSleep(time.Second)
		}
	}
	return checked, nil
}

// due implements the selection predicate: submitted, not yet confirmed,
// old enough for a first check, and not re-checked too recently.
func (v *Verifier) due(leg model.LegState) bool {
	if leg.SubmitTS == "" || leg.Verified() {
		return false
	}
	now := v.now()
	var submittedAt time.Time
	if t, err := model.ParseTS14(leg.SubmitTS); err == nil {
		submittedAt = t
	}
	if now.Sub(submittedAt) < v.policy.MinAge {
		return false
	}
	if !leg.CheckedAt.IsZero() && now.Sub(leg.CheckedAt) < v.policy.RecheckInterval {
		return false
	}
	return true
}

// checkLeg asks the availability API about one leg and persists the
// verdict, reporting whether the verdict was actually stored. The
// snapshot only confirms the leg when its timestamp is at or after the
// submission timestamp; an older pre-existing snapshot of the same URL
// proves nothing about this capture.
func (v *Verifier) checkLeg(ctx context.Context, post model.Post, key model.LegKey, leg model.LegState) bool {
	res := v.wayback.CheckAvailability(ctx, post.VariantURL(key.Variant), leg.SubmitTS)

	ok := res.Available && res.Timestamp != "" && res.Timestamp >= leg.SubmitTS
	fields := map[string]any{
		key.ColumnBase():                 nullable(res.Link),
		key.ColumnBase() + "_ts":         nullable(res.Timestamp),
		key.ColumnBase() + "_status":     nullable(res.Status),
		key.ColumnBase() + "_ok":         boolToInt(ok),
		key.ColumnBase() + "_checked_at": v.now().UTC().Format(time.RFC3339),
		key.AvailErrColumn():             nullable(res.Err),
	}
	if err := v.db.UpdateFields(post.RedditID, fields); err != nil {
		v.logger.Error("persist verification failed",
			zap.String("reddit_id", post.RedditID),
			zap.String("variant", string(key.Variant)),
			zap.Error(err))
		return false
	}

	switch {
	case res.Err != "":
		metrics.VerifyCheckObserved("error")
	case ok:
		metrics.VerifyCheckObserved("ok")
		v.logger.Info("wayback leg verified",
			zap.String("reddit_id", post.RedditID),
			zap.String("variant", string(key.Variant)),
			zap.String("snapshot_ts", res.Timestamp))
	default:
		metrics.VerifyCheckObserved("not_ok")
	}
	return true
}

func (v *Verifier) politeSleep(base time.Duration) {
	jitter := time.Duration((0.2 + rand.Float64()) * float64(time.Second))
	v.sleep(base + jitter)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
