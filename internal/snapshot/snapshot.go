// Package snapshot projects the store into bounded, ordered views for
// external consumers: the per-cycle JSON export file and the dashboard's
// JSON API.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/VertyyBird/Reddit-Archiver/internal/database"
	"github.com/VertyyBird/Reddit-Archiver/internal/model"
)

// Row is one post with all leg fields, shaped for JSON consumers.
// Pointer fields distinguish "absent" from zero values: a nil ok is a leg
// with no verdict yet.
type Row struct {
	RedditID   string `json:"reddit_id"`
	Subreddit  string `json:"subreddit"`
	CreatedUTC *int64 `json:"created_utc"`
	InsertedAt string `json:"inserted_at"`
	Title      string `json:"title"`
	RedditURL  string `json:"reddit_url"`
	URLWWW     string `json:"url_www"`
	URLOld     string `json:"url_old"`

	WaybackWWW          *string `json:"wayback_www"`
	WaybackOld          *string `json:"wayback_old"`
	WaybackWWWTS        *string `json:"wayback_www_ts"`
	WaybackOldTS        *string `json:"wayback_old_ts"`
	WaybackWWWOK        *int    `json:"wayback_www_ok"`
	WaybackOldOK        *int    `json:"wayback_old_ok"`
	WaybackWWWCheckedAt *string `json:"wayback_www_checked_at"`
	WaybackOldCheckedAt *string `json:"wayback_old_checked_at"`

	ArchiveTodayWWW   *string `json:"archive_today_www"`
	ArchiveTodayOld   *string `json:"archive_today_old"`
	ArchiveTodayWWWOK *int    `json:"archive_today_www_ok"`
	ArchiveTodayOldOK *int    `json:"archive_today_old_ok"`

	Errors map[string]*string `json:"errors"`
}

// FromPost projects one post into a Row.
func FromPost(p model.Post) Row {
	wbWWW := p.Legs[model.LegKey{Service: model.ServiceWayback, Variant: model.VariantWWW}]
	wbOld := p.Legs[model.LegKey{Service: model.ServiceWayback, Variant: model.VariantOld}]
	atWWW := p.Legs[model.LegKey{Service: model.ServiceArchiveToday, Variant: model.VariantWWW}]
	atOld := p.Legs[model.LegKey{Service: model.ServiceArchiveToday, Variant: model.VariantOld}]

	return Row{
		RedditID:   p.RedditID,
		Subreddit:  p.Subreddit,
		CreatedUTC: p.CreatedUTC,
		InsertedAt: p.InsertedAt.UTC().Format(time.RFC3339),
		Title:      p.Title,
		RedditURL:  p.RedditURL,
		URLWWW:     p.URLWWW,
		URLOld:     p.URLOld,

		WaybackWWW:          optString(wbWWW.Link),
		WaybackOld:          optString(wbOld.Link),
		WaybackWWWTS:        optString(wbWWW.SnapshotTS),
		WaybackOldTS:        optString(wbOld.SnapshotTS),
		WaybackWWWOK:        okToInt(wbWWW.OK),
		WaybackOldOK:        okToInt(wbOld.OK),
		WaybackWWWCheckedAt: optTime(wbWWW.CheckedAt),
		WaybackOldCheckedAt: optTime(wbOld.CheckedAt),

		ArchiveTodayWWW:   optString(atWWW.Link),
		ArchiveTodayOld:   optString(atOld.Link),
		ArchiveTodayWWWOK: okToInt(atWWW.OK),
		ArchiveTodayOldOK: okToInt(atOld.OK),

		Errors: map[string]*string{
			"err_wayback_www":       optString(wbWWW.SubmitErr),
			"err_wayback_old":       optString(wbOld.SubmitErr),
			"err_wayback_avail_www": optString(wbWWW.AvailErr),
			"err_wayback_avail_old": optString(wbOld.AvailErr),
			"err_atoday_www":        optString(atWWW.SubmitErr),
			"err_atoday_old":        optString(atOld.SubmitErr),
		},
	}
}

// Latest returns the limit most recently inserted posts as rows.
func Latest(db *database.DB, limit, offset int) ([]Row, error) {
	posts, err := db.RecentPosts(limit, offset)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(posts))
	for _, p := range posts {
		rows = append(rows, FromPost(p))
	}
	return rows, nil
}

// Export writes the latest rows to path as indented JSON, replacing any
// previous export. The write goes through a temp file and rename so a
// concurrent reader never sees a half-written document.
func Export(db *database.DB, path string, limit int) error {
	rows, err := Latest(db, limit, 0)
	if err != nil {
		return fmt.Errorf("query latest posts: %w", err)
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func okToInt(b *bool) *int {
	if b == nil {
		return nil
	}
	v := 0
	if *b {
		v = 1
	}
	return &v
}
