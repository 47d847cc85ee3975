package util

import (
	"time"

	"github.com/dustin/go-humanize"
)

// FormatBytes renders a byte count for humans (e.g. "1.2 kB")
func FormatBytes(n int64) string {
	if n < 0 {
		return "0 B"
	}
	return humanize.Bytes(uint64(n))
}

// FormatAge renders how long ago t was (e.g. "3 minutes ago")
func FormatAge(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

// Plural returns singular when n is 1 and plural otherwise
func Plural(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
