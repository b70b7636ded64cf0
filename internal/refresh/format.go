package refresh

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FormatTemperature renders whole degrees with an explicit sign; zero has none.
func FormatTemperature(c int) string {
	switch {
	case c > 0:
		return "+" + strconv.Itoa(c)
	case c < 0:
		return strconv.Itoa(c)
	default:
		return "0"
	}
}

// RoundClock rounds t to the nearest step, by minute. Seconds are dropped.
// The half-way minute rounds down: with a 5m step, :x2 goes down and :x3 goes up.
func RoundClock(t time.Time, step time.Duration) time.Time {
	base := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
	sm := int(step / time.Minute)
	if sm <= 1 {
		return base
	}
	r := t.Minute() % sm
	base = base.Add(-time.Duration(r) * time.Minute)
	if 2*r > sm {
		base = base.Add(time.Duration(sm) * time.Minute)
	}
	return base
}

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

// ParseInterval reads an operator interval as plain minutes ("15"), HH:MM
// ("01:30") or a Go duration ("90m", "2h"). It returns whole minutes; range
// clamping is the state's job.
func ParseInterval(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("interval required")
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("interval must be > 0")
		}
		return n, nil
	}
	if m := reHHMM.FindStringSubmatch(s); len(m) == 3 {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return 0, fmt.Errorf("invalid minutes in %q", s)
		}
		total := hh*60 + mm
		if total <= 0 {
			return 0, fmt.Errorf("interval must be > 0")
		}
		return total, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q (use minutes like '15', HH:MM like '01:30', or duration like '90m')", raw)
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval must be > 0")
	}
	// Sub-minute durations count as one minute.
	return max(1, int(d/time.Minute)), nil
}
