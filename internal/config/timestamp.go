package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ParseTimestamp accepts RFC3339, a bare date (2006-01-02) or Unix epoch
// seconds. An empty string is the zero time.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, eris.Errorf("config: unrecognized timestamp %q", s)
}
