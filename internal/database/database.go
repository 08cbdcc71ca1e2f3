// Package database provides SQLite storage for archived posts.
package database

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection.
type DB struct {
	conn     *sql.DB
	readOnly bool
}

// New opens or creates the archive database at the given path. The handle
// is the single writer: WAL mode is enabled so a read-only handle in
// another process can read concurrently without blocking.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// NewReadOnly opens an existing archive database without write access.
// The dashboard process uses this so it can never mutate the store.
func NewReadOnly(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open db read-only: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{conn: conn, readOnly: true}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS posts (
	reddit_id TEXT PRIMARY KEY,
	subreddit TEXT NOT NULL,
	created_utc INTEGER,

	title TEXT,
	reddit_url TEXT,

	url_www TEXT NOT NULL,
	url_old TEXT NOT NULL,

	wayback_www TEXT,
	wayback_old TEXT,
	wayback_www_ts TEXT,
	wayback_old_ts TEXT,
	wayback_www_status TEXT,
	wayback_old_status TEXT,

	wayback_www_submit_ts TEXT,
	wayback_old_submit_ts TEXT,
	wayback_www_ok INTEGER,
	wayback_old_ok INTEGER,
	wayback_www_checked_at TEXT,
	wayback_old_checked_at TEXT,

	atoday_www TEXT,
	atoday_old TEXT,
	atoday_www_ok INTEGER,
	atoday_old_ok INTEGER,
	atoday_www_checked_at TEXT,
	atoday_old_checked_at TEXT,

	err_wayback_www TEXT,
	err_wayback_old TEXT,
	err_atoday_www TEXT,
	err_atoday_old TEXT,
	err_wayback_avail_www TEXT,
	err_wayback_avail_old TEXT,

	inserted_at TEXT NOT NULL
);
`

// requiredColumns lists every leg column together with its type. Databases
// created by older versions of the schema gain missing columns on startup,
// so adding a column here is the whole migration.
var requiredColumns = map[string]string{
	"title":                  "TEXT",
	"reddit_url":             "TEXT",
	"wayback_www":            "TEXT",
	"wayback_old":            "TEXT",
	"wayback_www_ts":         "TEXT",
	"wayback_old_ts":         "TEXT",
	"wayback_www_status":     "TEXT",
	"wayback_old_status":     "TEXT",
	"wayback_www_submit_ts":  "TEXT",
	"wayback_old_submit_ts":  "TEXT",
	"wayback_www_ok":         "INTEGER",
	"wayback_old_ok":         "INTEGER",
	"wayback_www_checked_at": "TEXT",
	"wayback_old_checked_at": "TEXT",
	"atoday_www":             "TEXT",
	"atoday_old":             "TEXT",
	"atoday_www_ok":          "INTEGER",
	"atoday_old_ok":          "INTEGER",
	"atoday_www_checked_at":  "TEXT",
	"atoday_old_checked_at":  "TEXT",
	"err_wayback_www":        "TEXT",
	"err_wayback_old":        "TEXT",
	"err_atoday_www":         "TEXT",
	"err_atoday_old":         "TEXT",
	"err_wayback_avail_www":  "TEXT",
	"err_wayback_avail_old":  "TEXT",
}

func (db *DB) migrate() error {
	if _, err := db.conn.Exec(createTableSQL); err != nil {
		return err
	}
	existing, err := db.tableColumns("posts")
	if err != nil {
		return err
	}
	for col, colType := range requiredColumns {
		if existing[col] {
			continue
		}
		if _, err := db.conn.Exec(fmt.Sprintf("ALTER TABLE posts ADD COLUMN %s %s", col, colType)); err != nil {
			return fmt.Errorf("add column %s: %w", col, err)
		}
	}
	return nil
}

func (db *DB) tableColumns(table string) (map[string]bool, error) {
	rows, err := db.conn.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}
