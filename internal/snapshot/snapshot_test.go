package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VertyyBird/Reddit-Archiver/internal/database"
	"github.com/VertyyBird/Reddit-Archiver/internal/model"
)

func seedDB(t *testing.T, n int) *database.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "snap.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("id%03d", i)
		_, err := db.InsertPost(&model.Post{
			RedditID:   id,
			Subreddit:  "golang",
			Title:      "post " + id,
			RedditURL:  "https://www.reddit.com/r/golang/comments/" + id + "/post",
			URLWWW:     "https://www.reddit.com/r/golang/comments/" + id + "/post",
			URLOld:     "https://old.reddit.com/r/golang/comments/" + id + "/post",
			InsertedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	return db
}

func TestFromPostProjection(t *testing.T) {
	t.Parallel()
	db := seedDB(t, 1)

	require.NoError(t, db.UpdateFields("id000", map[string]any{
		"wayback_www":            "https://web.archive.org/web/20240101120500/x",
		"wayback_www_ts":         "20240101120500",
		"wayback_www_ok":         1,
		"wayback_www_checked_at": "2024-01-01T12:10:00Z",
		"atoday_www":             "https://archive.vn/abc12",
		"atoday_www_ok":          1,
		"err_atoday_old":         "Archive.today HTTP 502",
	}))

	posts, err := db.RecentPosts(1, 0)
	require.NoError(t, err)
	row := FromPost(posts[0])

	assert.Equal(t, "id000", row.RedditID)
	require.NotNil(t, row.WaybackWWW)
	assert.Equal(t, "https://web.archive.org/web/20240101120500/x", *row.WaybackWWW)
	require.NotNil(t, row.WaybackWWWOK)
	assert.Equal(t, 1, *row.WaybackWWWOK)
	require.NotNil(t, row.WaybackWWWCheckedAt)
	assert.Equal(t, "2024-01-01T12:10:00Z", *row.WaybackWWWCheckedAt)
	require.NotNil(t, row.ArchiveTodayWWWOK)
	assert.Equal(t, 1, *row.ArchiveTodayWWWOK)

	// Untouched legs show up as nulls, not zero values.
	assert.Nil(t, row.WaybackOld)
	assert.Nil(t, row.WaybackOldOK)
	assert.Nil(t, row.ArchiveTodayOldOK)

	require.NotNil(t, row.Errors["err_atoday_old"])
	assert.Equal(t, "Archive.today HTTP 502", *row.Errors["err_atoday_old"])
	assert.Nil(t, row.Errors["err_wayback_www"])
}

func TestExportWritesLimitedNewestFirst(t *testing.T) {
	t.Parallel()
	db := seedDB(t, 30)
	path := filepath.Join(t.TempDir(), "latest_archives.json")

	require.NoError(t, Export(db, path, 25))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var rows []Row
	require.NoError(t, json.Unmarshal(data, &rows))
	require.Len(t, rows, 25)
	assert.Equal(t, "id029", rows[0].RedditID)
	assert.Equal(t, "id005", rows[24].RedditID)
}

func TestExportReplacesPreviousFile(t *testing.T) {
	t.Parallel()
	db := seedDB(t, 2)
	path := filepath.Join(t.TempDir(), "latest_archives.json")

	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))
	require.NoError(t, Export(db, path, 10))

	var rows []Row
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &rows))
	assert.Len(t, rows, 2)

	// No temp residue left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
