// Package render turns raw Slack messages into compact or structured
// tool results and normalizes user-supplied time filters.
package render

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const dateOnlyLayout = "2006-01-02"

// dateTimeLayouts are the accepted full date-time shapes; absent zone
// designators are interpreted as UTC.
var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

var canonicalTimestampPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)

// NormalizeTimestamp converts a user-supplied date or date-time string into
// the canonical fractional-second timestamp with microsecond precision.
//
// Empty input yields empty output. Input already in canonical form is
// returned unchanged. A bare calendar date maps to UTC midnight, or to the
// last microsecond of that day when endOfRange is set; endOfRange has no
// effect once a time component is present. Unparseable input yields empty
// output and the caller proceeds as if no filter were supplied.
func NormalizeTimestamp(input string, endOfRange bool) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	if canonicalTimestampPattern.MatchString(trimmed) {
		return trimmed
	}

	if parsed, err := time.Parse(dateOnlyLayout, trimmed); err == nil {
		if endOfRange {
			parsed = parsed.Add(24*time.Hour - time.Microsecond)
		}
		return formatTimestamp(parsed)
	}

	for _, layout := range dateTimeLayouts {
		parsed, err := time.Parse(layout, trimmed)
		if err != nil {
			continue
		}
		return formatTimestamp(parsed)
	}

	return ""
}

func formatTimestamp(t time.Time) string {
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/int(time.Microsecond))
}
