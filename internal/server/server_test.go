package server

import (
	"context"
	"encoding/json"
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

	"github.com/VertyyBird/Reddit-Archiver/internal/database"
	"github.com/VertyyBird/Reddit-Archiver/internal/model"
	"github.com/VertyyBird/Reddit-Archiver/internal/snapshot"
)

// newTestServer seeds n posts through a writer handle and serves them
// through a separate read-only handle, the same split the process uses.
func newTestServer(t *testing.T, n int) (*Server, *database.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dash.sqlite")

	rw, err := database.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { rw.Close() })

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("id%03d", i)
		_, err := rw.InsertPost(&model.Post{
			RedditID:   id,
			Subreddit:  "golang",
			Title:      "title " + id,
			RedditURL:  "https://www.reddit.com/r/golang/comments/" + id + "/post",
			URLWWW:     "https://www.reddit.com/r/golang/comments/" + id + "/post",
			URLOld:     "https://old.reddit.com/r/golang/comments/" + id + "/post",
			InsertedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	ro, err := database.NewReadOnly(path)
	require.NoError(t, err)
	t.Cleanup(func() { ro.Close() })

	srv, err := New(ro, path, zaptest.NewLogger(t))
	require.NoError(t, err)
	return srv, rw
}

func get(t *testing.T, srv *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestIndexPagination(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, 120)

	rec := get(t, srv, "/?page=2&per_page=50")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	// Page 2 of 50 is ranks 51-100 by recency: newest shown is id069,
	// oldest is id020.
	assert.Contains(t, body, "title id069")
	assert.Contains(t, body, "title id020")
	assert.NotContains(t, body, "title id070")
	assert.NotContains(t, body, "title id019")
}

func TestIndexClampsPerPage(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, 30)

	rec := get(t, srv, "/?per_page=5000")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, srv, "/?page=-3&per_page=1")
	require.Equal(t, http.StatusOK, rec.Code)
	// per_page floors at 10, page floors at 1, so the newest posts show.
	assert.Contains(t, rec.Body.String(), "title id029")
	assert.Contains(t, rec.Body.String(), "title id020")
}

func TestLatestAPI(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, 12)

	rec := get(t, srv, "/api/latest?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json"))

	var rows []snapshot.Row
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 5)
	assert.Equal(t, "id011", rows[0].RedditID)

	// Oversized and non-numeric limits fall back to the clamped defaults.
	rec = get(t, srv, "/api/latest.json?limit=99999")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	assert.Len(t, rows, 12)

	rec = get(t, srv, "/api/latest?limit=bogus")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	assert.Len(t, rows, 12)
}

func TestLatestAPIEmptyStore(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, 0)

	rec := get(t, srv, "/api/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestWaybackPillStates(t *testing.T) {
	t.Parallel()
	ok := true
	notOK := false

	assert.Equal(t, "unknown", waybackPill(model.LegState{}).Class)
	assert.Equal(t, "pending", waybackPill(model.LegState{SubmitTS: "20240101120000"}).Class)
	assert.Equal(t, "… queued", waybackPill(model.LegState{SubmitTS: "20240101120000"}).Label)

	checked := model.LegState{
		SubmitTS:  "20240101120000",
		OK:        &notOK,
		CheckedAt: time.Date(2024, 1, 1, 12, 5, 0, 0, time.UTC),
	}
	assert.Equal(t, "pending", waybackPill(checked).Class)
	assert.Equal(t, "… pending", waybackPill(checked).Label)

	verified := checked
	verified.OK = &ok
	assert.Equal(t, "ok", waybackPill(verified).Class)
}

func TestATodayPillStates(t *testing.T) {
	t.Parallel()
	ok := true
	notOK := false

	assert.Equal(t, "unknown", atodayPill(model.LegState{}).Class)
	assert.Equal(t, "ok", atodayPill(model.LegState{
		OK:        &ok,
		Link:      "https://archive.vn/abc12",
		CheckedAt: time.Now(),
	}).Class)
	assert.Equal(t, "bad", atodayPill(model.LegState{
		OK:        &notOK,
		CheckedAt: time.Now(),
	}).Class)
}

func TestStartStopsOnContextCancel(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Start(ctx, "127.0.0.1:0")
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err, "shutdown drains and returns cleanly")
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after context cancel")
	}
}

func TestStats(t *testing.T) {
	t.Parallel()
	srv, rw := newTestServer(t, 3)

	require.NoError(t, rw.UpdateFields("id000", map[string]any{
		"wayback_www_ok": 1,
		"atoday_www_ok":  1,
	}))
	require.NoError(t, rw.UpdateFields("id001", map[string]any{
		"wayback_old_submit_ts": "20240101120000",
	}))

	stats, err := srv.stats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.WaybackOK)
	assert.Equal(t, 1, stats.WaybackPending)
	assert.Equal(t, 1, stats.ATodayOK)
	assert.Equal(t, 1, stats.BothOK)
}
