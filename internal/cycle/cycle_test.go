package cycle

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/VertyyBird/Reddit-Archiver/internal/archive"
	"github.com/VertyyBird/Reddit-Archiver/internal/database"
	"github.com/VertyyBird/Reddit-Archiver/internal/ingest"
	"github.com/VertyyBird/Reddit-Archiver/internal/snapshot"
	"github.com/VertyyBird/Reddit-Archiver/internal/verify"
)

const feedTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>newest posts</title>
  <entry>
    <title>hello from %[1]s</title>
    <link href="https://www.reddit.com/r/%[1]s/comments/%[2]s/hello/"/>
    <updated>2024-01-01T11:00:00+00:00</updated>
  </entry>
</feed>`

// newTestRunner wires a Runner against stub feed and archive endpoints.
// Feeds for subreddits named "broken" answer 500.
func newTestRunner(t *testing.T) (*Runner, *database.DB) {
	t.Helper()

	feeds := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/r/"), "/new.rss")
		if sub == "broken" {
			http.Error(w, "nope", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprintf(w, feedTemplate, sub, "id"+sub)
	}))
	t.Cleanup(feeds.Close)

	archives := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(archives.Close)

	db, err := database.New(filepath.Join(t.TempDir(), "cycle.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := zaptest.NewLogger(t)
	wb := archive.NewWayback(archives.URL, archives.URL+"/wayback/available", "test-agent", 5*time.Second)
	at := archive.NewArchiveToday(archives.URL, "test-agent", 5*time.Second)

	noSleep := func(time.Duration) {}
	ing := ingest.New(db, wb, at, ingest.Config{
		FeedBaseURL:  feeds.URL,
		ScanLimit:    25,
		UserAgent:    "test-agent",
		Wayback:      true,
		ArchiveToday: true,
	}, logger, ingest.WithClock(time.Now, noSleep))

	ver := verify.New(db, wb,
		verify.Policy{Batch: 40, MinAge: time.Minute, RecheckInterval: 15 * time.Minute},
		logger, verify.WithClock(time.Now, noSleep))

	runner := New(db, ing, ver, Config{
		Subreddits: []string{"golang", "broken", "datahoarder"},
		Wayback:    true,
	}, logger)
	return runner, db
}

func TestRunCycleIsolatesFeedFailures(t *testing.T) {
	runner, db := newTestRunner(t)

	stats := runner.RunCycle(context.Background())
	assert.Equal(t, 2, stats.NewPosts)

	total, err := db.CountPosts("")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestRunCycleIsIdempotentAcrossCycles(t *testing.T) {
	runner, _ := newTestRunner(t)

	first := runner.RunCycle(context.Background())
	assert.Equal(t, 2, first.NewPosts)

	second := runner.RunCycle(context.Background())
	assert.Zero(t, second.NewPosts)
}

func TestRunCycleExportsSnapshot(t *testing.T) {
	runner, _ := newTestRunner(t)
	runner.cfg.SnapshotPath = filepath.Join(t.TempDir(), "latest.json")
	runner.cfg.SnapshotLimit = 25

	var exportedPath string
	orig := snapshotExport
	snapshotExport = func(db *database.DB, path string, limit int) error {
		exportedPath = path
		return snapshot.Export(db, path, limit)
	}
	defer func() { snapshotExport = orig }()

	runner.RunCycle(context.Background())
	assert.Equal(t, runner.cfg.SnapshotPath, exportedPath)
	assert.FileExists(t, exportedPath)
}
