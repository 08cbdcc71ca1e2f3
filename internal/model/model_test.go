package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTS14RoundTrip(t *testing.T) {
	in := time.Date(2024, 1, 1, 12, 0, 5, 0, time.UTC)
	ts := FormatTS14(in)
	assert.Equal(t, "20240101120005", ts)

	out, err := ParseTS14(ts)
	require.NoError(t, err)
	assert.True(t, in.Equal(out))

	// Non-UTC inputs normalize to UTC digits.
	est := time.FixedZone("EST", -5*3600)
	assert.Equal(t, "20240101170005", FormatTS14(in.In(est).Add(5*time.Hour)))

	_, err = ParseTS14("not-a-timestamp")
	assert.Error(t, err)
}

func TestLegKeyColumns(t *testing.T) {
	wb := LegKey{ServiceWayback, VariantWWW}
	assert.Equal(t, "wayback_www", wb.ColumnBase())
	assert.Equal(t, "err_wayback_www", wb.ErrColumn())
	assert.Equal(t, "err_wayback_avail_www", wb.AvailErrColumn())

	at := LegKey{ServiceArchiveToday, VariantOld}
	assert.Equal(t, "atoday_old", at.ColumnBase())
	assert.Equal(t, "err_atoday_old", at.ErrColumn())
}

func TestLegStateVerified(t *testing.T) {
	ok := true
	notOK := false
	assert.False(t, LegState{}.Verified())
	assert.False(t, LegState{OK: &notOK}.Verified())
	assert.True(t, LegState{OK: &ok}.Verified())
}

func TestPostTime(t *testing.T) {
	created := int64(1704110400) // 2024-01-01T12:00:00Z
	inserted := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	withFeedTime := Post{CreatedUTC: &created, InsertedAt: inserted}
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), withFeedTime.Time())

	withoutFeedTime := Post{InsertedAt: inserted}
	assert.Equal(t, inserted, withoutFeedTime.Time())
}
