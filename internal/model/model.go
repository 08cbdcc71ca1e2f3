// Package model defines shared data structures.
package model

import "time"

// Service identifies one of the external archival services.
type Service string

// Variant identifies which host variant of a post URL a leg covers.
type Variant string

const (
	ServiceWayback      Service = "wayback"
	ServiceArchiveToday Service = "atoday"

	VariantWWW Variant = "www"
	VariantOld Variant = "old"
)

// TS14Layout is the compact UTC timestamp format the Wayback Machine uses
// for snapshot identifiers (YYYYMMDDHHMMSS). Values are fixed-width digits,
// so lexical comparison matches chronological comparison.
const TS14Layout = "20060102150405"

// FormatTS14 renders t as a Wayback-style 14-digit UTC timestamp.
func FormatTS14(t time.Time) string {
	return t.UTC().Format(TS14Layout)
}

// ParseTS14 parses a 14-digit UTC timestamp.
func ParseTS14(s string) (time.Time, error) {
	return time.ParseInLocation(TS14Layout, s, time.UTC)
}

// LegKey addresses one archival leg of a post: which service, which URL
// variant. Four keys exist per post.
type LegKey struct {
	Service Service
	Variant Variant
}

// AllLegKeys returns the four legs every post carries.
func AllLegKeys() []LegKey {
	return []LegKey{
		{ServiceWayback, VariantWWW},
		{ServiceWayback, VariantOld},
		{ServiceArchiveToday, VariantWWW},
		{ServiceArchiveToday, VariantOld},
	}
}

// WaybackLegKeys returns the two legs subject to delayed verification.
func WaybackLegKeys() []LegKey {
	return []LegKey{
		{ServiceWayback, VariantWWW},
		{ServiceWayback, VariantOld},
	}
}

// ColumnBase is the column-name stem for this leg in the posts table,
// e.g. "wayback_www" or "atoday_old".
func (k LegKey) ColumnBase() string {
	return string(k.Service) + "_" + string(k.Variant)
}

// ErrColumn is the submission-error column for this leg.
func (k LegKey) ErrColumn() string {
	return "err_" + string(k.Service) + "_" + string(k.Variant)
}

// AvailErrColumn is the availability-check error column. Only meaningful
// for Wayback legs.
func (k LegKey) AvailErrColumn() string {
	return "err_wayback_avail_" + string(k.Variant)
}

// LegState holds the persisted lifecycle state of one archival leg.
// OK is tri-state: nil means no verdict yet, false means checked and not
// confirmed, true means confirmed and never reset afterwards.
type LegState struct {
	Link           string
	SnapshotTS     string // TS14, Wayback only
	SnapshotStatus string // HTTP status of the snapshot, Wayback only
	SubmitTS       string // TS14 of the submission attempt, Wayback only
	OK             *bool
	CheckedAt      time.Time // zero when never checked
	SubmitErr      string
	AvailErr       string // Wayback availability-check error
}

// Verified reports whether the leg has been confirmed archived.
func (l LegState) Verified() bool {
	return l.OK != nil && *l.OK
}

// Post is one uniquely identified feed item together with its four
// archival legs.
type Post struct {
	RedditID   string
	Subreddit  string
	CreatedUTC *int64 // feed publish time, absent for some entries
	Title      string
	RedditURL  string // canonical permalink
	URLWWW     string
	URLOld     string
	InsertedAt time.Time
	Legs       map[LegKey]LegState
}

// VariantURL returns the post URL for the given variant.
func (p Post) VariantURL(v Variant) string {
	if v == VariantOld {
		return p.URLOld
	}
	return p.URLWWW
}

// Time returns the post's authoritative timestamp: the feed publish time
// when present, otherwise the local insertion time.
func (p Post) Time() time.Time {
	if p.CreatedUTC != nil {
		return time.Unix(*p.CreatedUTC, 0).UTC()
	}
	return p.InsertedAt
}
