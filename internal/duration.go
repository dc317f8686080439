package internal

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DurationMinutes returns whole minutes between sleep and wake, rounded half up.
func DurationMinutes(sleep, wake time.Time) (int, error) {
	d := wake.Sub(sleep)
	if d <= 0 {
		return 0, fmt.Errorf("%w: slept %s, woke %s", ErrInvalidInterval,
			sleep.Format(time.RFC3339), wake.Format(time.RFC3339))
	}
	return int((d + 30*time.Second) / time.Minute), nil
}

// IntervalMinutes converts a stored elapsed interval ("HH:MM:SS[.ffffff]",
// optionally prefixed by "N day(s)") to whole minutes, rounded half up.
func IntervalMinutes(interval string) (int, error) {
	s := strings.TrimSpace(interval)
	if s == "" {
		return 0, fmt.Errorf("empty interval")
	}

	var days int64
	if fields := strings.Fields(s); len(fields) == 3 && strings.HasPrefix(fields[1], "day") {
		n, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("interval %q: bad day count: %w", interval, err)
		}
		days = n
		s = fields[2]
	} else if len(fields) != 1 {
		return 0, fmt.Errorf("interval %q: unsupported format", interval)
	}

	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("interval %q: want HH:MM:SS", interval)
	}
	hours, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("interval %q: bad hours: %w", interval, err)
	}
	minutes, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("interval %q: bad minutes: %w", interval, err)
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, fmt.Errorf("interval %q: bad seconds: %w", interval, err)
	}

	d := time.Duration(days)*24*time.Hour +
		time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds*float64(time.Second))
	if negative {
		d = -d
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: interval %s", ErrInvalidInterval, interval)
	}
	return int((d + 30*time.Second) / time.Minute), nil
}
