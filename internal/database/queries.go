package database

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/VertyyBird/Reddit-Archiver/internal/model"
)

// Count predicates shared by the dashboard and the snapshot stats. Each is
// a WHERE fragment over leg-status columns.
const (
	WhereWaybackOKAny = "(wayback_www_ok=1 OR wayback_old_ok=1)"
	WhereATodayOKAny  = "(atoday_www_ok=1 OR atoday_old_ok=1)"
	WhereBothOKAny    = WhereWaybackOKAny + " AND " + WhereATodayOKAny
	WhereWaybackPendingAny = "((wayback_www_submit_ts IS NOT NULL AND (wayback_www_ok IS NULL OR wayback_www_ok=0)) OR " +
		"(wayback_old_submit_ts IS NOT NULL AND (wayback_old_ok IS NULL OR wayback_old_ok=0)))"
)

const postColumns = `reddit_id, subreddit, created_utc, title, reddit_url, url_www, url_old,
	wayback_www, wayback_old, wayback_www_ts, wayback_old_ts, wayback_www_status, wayback_old_status,
	wayback_www_submit_ts, wayback_old_submit_ts, wayback_www_ok, wayback_old_ok,
	wayback_www_checked_at, wayback_old_checked_at,
	atoday_www, atoday_old, atoday_www_ok, atoday_old_ok, atoday_www_checked_at, atoday_old_checked_at,
	err_wayback_www, err_wayback_old, err_atoday_www, err_atoday_old,
	err_wayback_avail_www, err_wayback_avail_old,
	inserted_at`

// HasPost reports whether a post with the given identity exists.
func (db *DB) HasPost(redditID string) (bool, error) {
	var one int
	err := db.conn.QueryRow("SELECT 1 FROM posts WHERE reddit_id = ?", redditID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// InsertPost inserts a new post row if the identity is unknown. Returns
// whether a row was actually inserted, making ingestion idempotent.
func (db *DB) InsertPost(p *model.Post) (bool, error) {
	res, err := db.conn.Exec(`
		INSERT OR IGNORE INTO posts
		(reddit_id, subreddit, created_utc, title, reddit_url, url_www, url_old, inserted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.RedditID, p.Subreddit, p.CreatedUTC, p.Title, p.RedditURL, p.URLWWW, p.URLOld,
		p.InsertedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// UpdateFields applies a partial update of leg columns to one post. Column
// names are checked against the schema's leg-column set; anything else is
// rejected rather than interpolated into SQL.
func (db *DB) UpdateFields(redditID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	cols := make([]string, 0, len(fields))
	for col := range fields {
		if _, ok := requiredColumns[col]; !ok {
			return fmt.Errorf("unknown column %q", col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	set := ""
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		if i > 0 {
			set += ", "
		}
		set += col + " = ?"
		args = append(args, fields[col])
	}
	args = append(args, redditID)
	_, err := db.conn.Exec("UPDATE posts SET "+set+" WHERE reddit_id = ?", args...)
	return err
}

// RecentPosts returns up to limit posts ordered by insertion time
// descending, skipping offset rows.
func (db *DB) RecentPosts(limit, offset int) ([]model.Post, error) {
	rows, err := db.conn.Query(
		"SELECT "+postColumns+" FROM posts ORDER BY inserted_at DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPosts(rows)
}

// PendingWaybackVerification returns up to batch posts that have at least
// one Wayback leg submitted but not yet confirmed, oldest post first so a
// pending backlog larger than the batch cannot starve older legs. The
// predicate excludes legs already verified, which is what keeps a
// confirmed leg from ever being demoted by a later pass.
func (db *DB) PendingWaybackVerification(batch int) ([]model.Post, error) {
	rows, err := db.conn.Query(
		"SELECT "+postColumns+" FROM posts WHERE "+WhereWaybackPendingAny+
			" ORDER BY inserted_at ASC LIMIT ?",
		batch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPosts(rows)
}

// CountPosts counts rows matching an optional WHERE fragment.
func (db *DB) CountPosts(where string, args ...any) (int, error) {
	q := "SELECT COUNT(*) FROM posts"
	if where != "" {
		q += " WHERE " + where
	}
	var n int
	if err := db.conn.QueryRow(q, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanPosts(rows *sql.Rows) ([]model.Post, error) {
	var posts []model.Post
	for rows.Next() {
		var (
			p          model.Post
			createdUTC sql.NullInt64
			title      sql.NullString
			redditURL  sql.NullString

			wbWWW, wbOld               sql.NullString
			wbWWWTS, wbOldTS           sql.NullString
			wbWWWStatus, wbOldStatus   sql.NullString
			wbWWWSubmit, wbOldSubmit   sql.NullString
			wbWWWOK, wbOldOK           sql.NullInt64
			wbWWWChecked, wbOldChecked sql.NullString

			atWWW, atOld               sql.NullString
			atWWWOK, atOldOK           sql.NullInt64
			atWWWChecked, atOldChecked sql.NullString

			errWbWWW, errWbOld       sql.NullString
			errAtWWW, errAtOld       sql.NullString
			errAvailWWW, errAvailOld sql.NullString
			insertedAt               string
		)
		if err := rows.Scan(
			&p.RedditID, &p.Subreddit, &createdUTC, &title, &redditURL, &p.URLWWW, &p.URLOld,
			&wbWWW, &wbOld, &wbWWWTS, &wbOldTS, &wbWWWStatus, &wbOldStatus,
			&wbWWWSubmit, &wbOldSubmit, &wbWWWOK, &wbOldOK,
			&wbWWWChecked, &wbOldChecked,
			&atWWW, &atOld, &atWWWOK, &atOldOK, &atWWWChecked, &atOldChecked,
			&errWbWWW, &errWbOld, &errAtWWW, &errAtOld,
			&errAvailWWW, &errAvailOld,
			&insertedAt,
		); err != nil {
			return nil, err
		}
		if createdUTC.Valid {
			v := createdUTC.Int64
			p.CreatedUTC = &v
		}
		p.Title = title.String
		p.RedditURL = redditURL.String
		p.InsertedAt = parseISO(insertedAt)
		p.Legs = map[model.LegKey]model.LegState{
			{Service: model.ServiceWayback, Variant: model.VariantWWW}: {
				Link:           wbWWW.String,
				SnapshotTS:     wbWWWTS.String,
				SnapshotStatus: wbWWWStatus.String,
				SubmitTS:       wbWWWSubmit.String,
				OK:             intToBool(wbWWWOK),
				CheckedAt:      parseISO(wbWWWChecked.String),
				SubmitErr:      errWbWWW.String,
				AvailErr:       errAvailWWW.String,
			},
			{Service: model.ServiceWayback, Variant: model.VariantOld}: {
				Link:           wbOld.String,
				SnapshotTS:     wbOldTS.String,
				SnapshotStatus: wbOldStatus.String,
				SubmitTS:       wbOldSubmit.String,
				OK:             intToBool(wbOldOK),
				CheckedAt:      parseISO(wbOldChecked.String),
				SubmitErr:      errWbOld.String,
				AvailErr:       errAvailOld.String,
			},
			{Service: model.ServiceArchiveToday, Variant: model.VariantWWW}: {
				Link:      atWWW.String,
				OK:        intToBool(atWWWOK),
				CheckedAt: parseISO(atWWWChecked.String),
				SubmitErr: errAtWWW.String,
			},
			{Service: model.ServiceArchiveToday, Variant: model.VariantOld}: {
				Link:      atOld.String,
				OK:        intToBool(atOldOK),
				CheckedAt: parseISO(atOldChecked.String),
				SubmitErr: errAtOld.String,
			},
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func intToBool(v sql.NullInt64) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Int64 != 0
	return &b
}

func parseISO(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
