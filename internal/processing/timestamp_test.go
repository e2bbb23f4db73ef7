package processing_test

import (
	"testing"
	"time"

	"github.com/DeafMist/econ-news-radar/backend/internal/processing"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	ts := processing.ParseTimestamp("2024-02-03T04:05:06Z")
	require.True(t, ts.OK)
	require.Equal(t, time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC), ts.Time)

	offset := processing.ParseTimestamp("2024-02-03T13:05:06+09:00")
	require.True(t, offset.OK)
	require.True(t, offset.Time.Equal(ts.Time))

	naive := processing.ParseTimestamp("2024-02-03T04:05:06.123456")
	require.True(t, naive.OK)
	require.Equal(t, 2024, naive.Time.Year())
	require.Equal(t, time.UTC, naive.Time.Location())

	legacy := processing.ParseTimestamp("2024-02-03 04:05:06")
	require.True(t, legacy.OK)

	require.False(t, processing.ParseTimestamp("invalid").OK)
	require.False(t, processing.ParseTimestamp("").OK)
}

func TestTimestampWithin(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	from := now.Add(-6 * time.Hour)

	require.True(t, processing.Parsed(now.Add(-time.Hour)).Within(from, now))
	require.True(t, processing.Parsed(from).Within(from, now))
	require.True(t, processing.Parsed(now).Within(from, now))
	require.False(t, processing.Parsed(now.Add(time.Minute)).Within(from, now))
	require.False(t, processing.Parsed(from.Add(-time.Second)).Within(from, now))
	require.False(t, processing.Unparseable.Within(from, now))
}

func TestFormatTimestampRoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	ts := processing.ParseTimestamp(processing.FormatTimestamp(now))
	require.True(t, ts.OK)
	require.True(t, ts.Time.Equal(now))
}
