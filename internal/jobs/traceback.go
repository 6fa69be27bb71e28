package jobs

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Layouts the collection stage has been observed to emit.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

var (
	relativeRe  = regexp.MustCompile(`(\d+)\s*(minute|minutes|hour|hours|day|days|week|weeks|month|months)\s*ago`)
	shorthandRe = regexp.MustCompile(`^(\d+)\s*([dhwm])$`)
)

// ParseScrapedAt interprets the free-form timestamps job boards attach to
// postings: absolute dates in several layouts, "today"/"yesterday", and
// relative forms like "3 days ago" or "2w". Returns false when nothing
// parses.
func ParseScrapedAt(raw string, now time.Time) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	s := strings.ToLower(raw)
	if s == "" {
		return time.Time{}, false
	}

	switch s {
	case "today":
		return startOfDay(now), true
	case "yesterday":
		return startOfDay(now.AddDate(0, 0, -1)), true
	}

	if m := relativeRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return now.Add(-relativeUnit(m[2]) * time.Duration(n)), true
	}

	if m := shorthandRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		switch m[2] {
		case "h":
			return now.Add(-time.Duration(n) * time.Hour), true
		case "d":
			return now.AddDate(0, 0, -n), true
		case "w":
			return now.AddDate(0, 0, -7*n), true
		case "m":
			return now.AddDate(0, 0, -30*n), true
		}
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

func relativeUnit(unit string) time.Duration {
	switch {
	case strings.HasPrefix(unit, "minute"):
		return time.Minute
	case strings.HasPrefix(unit, "hour"):
		return time.Hour
	case strings.HasPrefix(unit, "week"):
		return 7 * 24 * time.Hour
	case strings.HasPrefix(unit, "month"):
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
