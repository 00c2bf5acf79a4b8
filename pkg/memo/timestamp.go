package memo

import "time"

// TimestampLayout is the storage representation of CreatedAt and UpdatedAt:
// UTC, fixed width, so stored values compare correctly as strings.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp reverses FormatTimestamp, yielding a UTC time.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}
