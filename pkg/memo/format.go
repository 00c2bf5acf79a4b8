package memo

import "time"

// DateLayout is the layout used by FormatDate.
const DateLayout = "02 Jan 2006, 15:04"

// FormatDate renders t in the local time zone for display.
func FormatDate(t time.Time) string {
	return t.Local().Format(DateLayout)
}

// Truncate shortens text to at most maxLength runes, appending "..." when
// anything was cut.
func Truncate(text string, maxLength int) string {
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}
	if maxLength < 0 {
		maxLength = 0
	}
	return string(runes[:maxLength]) + "..."
}
