package workflow

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var relativePattern = regexp.MustCompile(`^(?:in\s+|\+\s*)?(\d+)\s*([a-z]+)$`)

var relativeUnits = map[string]time.Duration{
	"minute":  time.Minute,
	"minutes": time.Minute,
	"min":     time.Minute,
	"mins":    time.Minute,
	"hour":    time.Hour,
	"hours":   time.Hour,
	"day":     24 * time.Hour,
	"days":    24 * time.Hour,
	"week":    7 * 24 * time.Hour,
	"weeks":   7 * 24 * time.Hour,
}

// ParseExpiry resolves an expires_at parameter to an absolute time.
// Accepted forms: RFC 3339 timestamps, Go durations ("90m", "+2h") and
// relative phrases ("+2 hours", "3 days", "in 1 week").
func ParseExpiry(value any, now time.Time) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v != nil {
			return *v, nil
		}
	case string:
		return parseExpiryString(v, now)
	}
	return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidExpiry, value)
}

func parseExpiryString(s string, now time.Time) (time.Time, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidExpiry)
	}

	if t, err := time.Parse(time.RFC3339, strings.ToUpper(s)); err == nil {
		return t, nil
	}

	if d, err := time.ParseDuration(strings.TrimPrefix(s, "+")); err == nil && d > 0 {
		return now.Add(d), nil
	}

	m := relativePattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidExpiry, s)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidExpiry, s)
	}
	unit, ok := relativeUnits[m[2]]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: unknown unit %q", ErrInvalidExpiry, m[2])
	}
	return now.Add(time.Duration(n) * unit), nil
}
