package extraction

import (
	"regexp"
	"strings"
	"time"
)

// dateLayouts are tried in order. Day-first slash dates win over month-first
// ones; a month-first date still parses when the day is above 12.
var dateLayouts = []string{
	"2006-01-02",
	"2006/1/2",
	"2/1/2006",
	"1/2/2006",
	"2-1-2006",
	"2.1.2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	"2-Jan-2006",
}

var timeLayouts = []string{
	"15:04:05",
	"15:04",
	"3:04:05 PM",
	"3:04:05PM",
	"3:04 PM",
	"3:04PM",
}

var isoPrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// ParseDate coerces a date string into YYYY-MM-DD
func ParseDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	// timestamps like 2024-01-15T10:00:00Z
	if len(s) > 10 && isoPrefix.MatchString(s) {
		s = s[:10]
	}
	for _, layout := range dateLayouts {
		d, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if d.Year() < 1900 || d.Year() > 2100 {
			return "", false
		}
		return d.Format("2006-01-02"), true
	}
	return "", false
}

// ParseTime coerces a time string into HH:MM:SS
func ParseTime(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", false
	}
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return t.Format("15:04:05"), true
	}
	return "", false
}
