package api

import (
	"strings"
	"time"
)

// ParseTime parses an ISO 8601 timestamp as sent by the API.
// Returns the zero time for empty or invalid input.
func ParseTime(iso string) time.Time {
	iso = strings.TrimSpace(iso)
	if iso == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339Nano, iso)
	if err != nil {
		// Try without timezone
		t, err = time.Parse("2006-01-02T15:04:05", iso)
		if err != nil {
			return time.Time{}
		}
	}

	return t.UTC()
}
