package processing

import (
	"strings"
	"time"
)

// Timestamp is the outcome of a best-effort date parse.
// OK is false when the input was empty or unparseable.
type Timestamp struct {
	Time time.Time
	OK   bool
}

// Parsed wraps a known time.
func Parsed(t time.Time) Timestamp {
	return Timestamp{Time: t, OK: true}
}

// Unparseable is the zero Timestamp.
var Unparseable = Timestamp{}

var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses ISO-8601 style values written by this or earlier
// collectors. Values without a zone are read as UTC.
func ParseTimestamp(raw string) Timestamp {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Unparseable
	}

	for _, f := range timestampFormats {
		if ts, err := time.ParseInLocation(f, raw, time.UTC); err == nil {
			return Parsed(ts)
		}
	}

	return Unparseable
}

// FormatTimestamp renders t the way snapshots store it.
func FormatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339)
}

// Within reports whether ts falls inside [from, to].
func (ts Timestamp) Within(from, to time.Time) bool {
	if !ts.OK {
		return false
	}
	return !ts.Time.Before(from) && !ts.Time.After(to)
}
