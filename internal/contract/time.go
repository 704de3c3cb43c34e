package contract

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// windowRe captures "N [units]", e.g. "90 days" or "6 months".
var windowRe = regexp.MustCompile(`^(\d+)\s+(year|month|week|day|hour|minute)s?$`)

// unitDurations approximates calendar units: a month is 30 days and a year is 365 days.
var unitDurations = map[string]time.Duration{
	"year":   365 * 24 * time.Hour,
	"month":  30 * 24 * time.Hour,
	"week":   7 * 24 * time.Hour,
	"day":    24 * time.Hour,
	"hour":   time.Hour,
	"minute": time.Minute,
}

// ParseLookbackDuration converts strings like "90 days" or "720h" into a time.Duration.
// Go duration syntax is tried first, then the human-readable "N units" form.
func ParseLookbackDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return 0, errors.New("window must be positive")
		}
		return d, nil
	}

	matches := windowRe.FindStringSubmatch(strings.ToLower(s))
	if len(matches) == 0 {
		return 0, fmt.Errorf("invalid lookback duration format: %q", s)
	}
	value, err := strconv.ParseInt(matches[1], 10, 64)
	unit := unitDurations[matches[2]]
	if err != nil || value > math.MaxInt64/int64(unit) {
		return 0, fmt.Errorf("window too large: %q", s)
	}
	if value == 0 {
		return 0, errors.New("window must be positive")
	}
	return time.Duration(value) * unit, nil
}
