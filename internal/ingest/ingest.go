// Package ingest discovers new posts from subreddit feeds, deduplicates
// them against the store and drives the initial archival submissions.
package ingest

import (
	"context"
	"fmt"
	"html"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/VertyyBird/Reddit-Archiver/internal/archive"
	"github.com/VertyyBird/Reddit-Archiver/internal/database"
	"github.com/VertyyBird/Reddit-Archiver/internal/metrics"
	"github.com/VertyyBird/Reddit-Archiver/internal/model"
)

// Config controls one Ingestor.
type Config struct {
	FeedBaseURL  string // default https://www.reddit.com
	ScanLimit    int
	UserAgent    string
	Wayback      bool
	ArchiveToday bool
	DelayWayback time.Duration
	DelayAToday  time.Duration
}

// Ingestor polls subreddit feeds and archives newly seen posts. All
// submissions run sequentially; the courtesy delay between outbound calls
// keeps request volume predictable for the target services.
type Ingestor struct {
	db      *database.DB
	parser  *gofeed.Parser
	wayback *archive.Wayback
	atoday  *archive.ArchiveToday
	cfg     Config
	logger  *zap.Logger

	// Injected for tests.
	now   func() time.Time
	sleep func(time.Duration)
}

// Option adjusts an Ingestor after construction.
type Option func(*Ingestor)

// WithClock overrides the time source and the courtesy-delay sleeper.
func WithClock(now func() time.Time, sleep func(time.Duration)) Option {
	return func(g *Ingestor) {
		g.now = now
		g.sleep = sleep
	}
}

// New constructs an Ingestor.
func New(db *database.DB, wayback *archive.Wayback, atoday *archive.ArchiveToday, cfg Config, logger *zap.Logger, opts ...Option) *Ingestor {
	if cfg.FeedBaseURL == "" {
		cfg.FeedBaseURL = "https://www.reddit.com"
	}
	parser := gofeed.NewParser()
	parser.UserAgent = cfg.UserAgent
	g := &Ingestor{
		db:      db,
		parser:  parser,
		wayback: wayback,
		atoday:  atoday,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		sleep:   time.Sleep,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// PollSubreddit fetches one subreddit's newest-posts feed and ingests every
// entry not seen before. Returns the number of new posts. A bad entry is
// skipped, never fatal for the feed.
func (g *Ingestor) PollSubreddit(ctx context.Context, subreddit string) (int, error) {
	feedURL := fmt.Sprintf("%s/r/%s/new.rss", g.cfg.FeedBaseURL, subreddit)
	feed, err := g.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return 0, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	items := feed.Items
	if len(items) > g.cfg.ScanLimit {
		items = items[:g.cfg.ScanLimit]
	}

	newCount := 0
	for _, item := range items {
		if item.Link == "" {
			continue
		}
		canonical := CanonicalPostURL(item.Link)
		rid := ExtractRedditID(canonical)
		if rid == "" {
			continue
		}

		known, err := g.db.HasPost(rid)
		if err != nil {
			g.logger.Error("existence check failed", zap.String("reddit_id", rid), zap.Error(err))
			continue
		}
		if known {
			continue
		}

		post := &model.Post{
			RedditID:   rid,
			Subreddit:  subreddit,
			CreatedUTC: entryCreatedUTC(item),
			Title:      entryTitle(item),
			RedditURL:  canonical,
			URLWWW:     VariantURL(canonical, model.VariantWWW),
			URLOld:     VariantURL(canonical, model.VariantOld),
			InsertedAt: g.now(),
		}
		inserted, err := g.db.InsertPost(post)
		if err != nil {
			g.logger.Error("insert post failed", zap.String("reddit_id", rid), zap.Error(err))
			continue
		}
		if !inserted {
			continue
		}
		newCount++
		metrics.PostIngested(subreddit)
		g.logger.Info("new post",
			zap.String("subreddit", subreddit),
			zap.String("reddit_id", rid),
			zap.String("title", post.Title))

		g.archivePost(ctx, post)
	}
	return newCount, nil
}

// archivePost runs the initial submissions for all configured legs of one
// post, persisting each outcome before moving on. One leg failing does not
// stop the others.
func (g *Ingestor) archivePost(ctx context.Context, post *model.Post) {
	if g.cfg.Wayback {
		for _, key := range model.WaybackLegKeys() {
			submitTS := model.FormatTS14(g.now())
			res := g.wayback.Submit(ctx, post.VariantURL(key.Variant))
			fields := map[string]any{
				key.ColumnBase():                nullable(res.Link),
				key.ColumnBase() + "_submit_ts": submitTS,
				key.ErrColumn():                 nullable(res.Err),
			}
			if err := g.db.UpdateFields(post.RedditID, fields); err != nil {
				g.logger.Error("persist wayback submission failed",
					zap.String("reddit_id", post.RedditID),
					zap.String("variant", string(key.Variant)),
					zap.Error(err))
			}
			metrics.SubmissionObserved(string(key.Service), string(key.Variant), outcome(res))
			g.politeSleep(g.cfg.DelayWayback)
		}
	}

	if g.cfg.ArchiveToday {
		for _, key := range []model.LegKey{
			{Service: model.ServiceArchiveToday, Variant: model.VariantWWW},
			{Service: model.ServiceArchiveToday, Variant: model.VariantOld},
		} {
			res := g.atoday.Submit(ctx, post.VariantURL(key.Variant))
			fields := map[string]any{
				key.ColumnBase():                 nullable(res.Link),
				key.ColumnBase() + "_ok":         boolToInt(res.Link != ""),
				key.ColumnBase() + "_checked_at": g.now().UTC().Format(time.RFC3339),
				key.ErrColumn():                  nullable(res.Err),
			}
			if err := g.db.UpdateFields(post.RedditID, fields); err != nil {
				g.logger.Error("persist archive.today submission failed",
					zap.String("reddit_id", post.RedditID),
					zap.String("variant", string(key.Variant)),
					zap.Error(err))
			}
			metrics.SubmissionObserved(string(key.Service), string(key.Variant), outcome(res))
			g.politeSleep(g.cfg.DelayAToday)
		}
	}
}

// politeSleep waits the base delay plus a small random jitter so outbound
// calls never land on an exact rhythm.
func (g *Ingestor) politeSleep(base time.Duration) {
	jitter := time.Duration((0.2 + rand.Float64()) * float64(time.Second))
	g.sleep(base + jitter)
}

func entryTitle(item *gofeed.Item) string {
	title := strings.TrimSpace(html.UnescapeString(item.Title))
	if title == "" {
		return "(no title)"
	}
	return title
}

// entryCreatedUTC resolves the feed entry's publish time: published date,
// else updated date, else absent.
func entryCreatedUTC(item *gofeed.Item) *int64 {
	if item.PublishedParsed != nil {
		v := item.PublishedParsed.UTC().Unix()
		return &v
	}
	if item.UpdatedParsed != nil {
		v := item.UpdatedParsed.UTC().Unix()
		return &v
	}
	return nil
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

func outcome(res archive.SubmitResult) string {
	switch {
	case res.Err != "":
		return "error"
	case res.Link != "":
		return "link"
	default:
		return "accepted"
	}
}
