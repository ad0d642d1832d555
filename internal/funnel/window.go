// backend/internal/funnel/window.go
package funnel

import (
	"strconv"
	"strings"
	"time"
)

const DefaultDays = 30

// Since resolves a reporting window to its start. One day means "today" and
// starts at midnight in now's location; any other value is a rolling window.
func Since(days int, now time.Time) time.Time {
	if days == 1 {
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	}
	return now.AddDate(0, 0, -days)
}

// ParseDays reads the days query parameter. Missing, malformed and
// non-positive values fall back to DefaultDays.
func ParseDays(raw string) int {
	days, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || days < 1 {
		return DefaultDays
	}
	return days
}
