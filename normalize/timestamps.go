package normalize

import (
	"strings"
	"time"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime tries the permissive RFC3339 family plus bare dates. The result
// is always UTC.
func ParseTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseTimestamp returns fallback when raw cannot be parsed. Adapters pass
// their clock's now so unparsable provider dates never fail a request.
func ParseTimestamp(raw string, fallback time.Time) time.Time {
	if parsed, ok := ParseTime(raw); ok {
		return parsed
	}
	return fallback.UTC()
}

// FormatDate renders the YYYY-MM-DD form date-only provider APIs expect.
func FormatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
