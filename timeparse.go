package realtime

import "time"

// wireTimeLayout is the format used when writing timestamps to the wire.
const wireTimeLayout = "2006-01-02T15:04:05.000Z"

// wireTimeLayouts are the timestamp formats observed on the wire, tried
// in order. The backend emits 7-digit fractional seconds, other peers
// emit millisecond or whole-second variants, with a trailing Z, an
// explicit offset, or nothing at all (bare values are taken as UTC).
var wireTimeLayouts = []string{
	"2006-01-02T15:04:05.0000000Z",
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05.0000000-07:00",
	"2006-01-02T15:04:05.000-07:00",
	"2006-01-02T15:04:05-07:00",
	"2006-01-02T15:04:05.0000000",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
}

// parseWireTime tries each known layout in order and reports whether
// any matched. Layouts without zone information are interpreted as UTC.
func parseWireTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range wireTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseSendTime parses a message send timestamp. An unparseable value
// degrades to the current time so the message still sorts sensibly.
func parseSendTime(s string) time.Time {
	if t, ok := parseWireTime(s); ok {
		return t
	}
	return time.Now().UTC()
}

// parseDisplayTime parses a display-only timestamp such as last-seen.
// An unparseable value degrades to the zero time, which renders as
// "never" rather than "just now".
func parseDisplayTime(s string) time.Time {
	t, _ := parseWireTime(s)
	return t
}

// formatWireTime writes a timestamp in the canonical outgoing format.
func formatWireTime(t time.Time) string {
	return t.UTC().Format(wireTimeLayout)
}
