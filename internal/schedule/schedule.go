// Package schedule computes when the next digest is due.
package schedule

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Clock is a time of day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "H:MM" or "HH:MM".
func ParseClock(s string) (Clock, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(m) != 2 {
		return Clock{}, fmt.Errorf("invalid clock time %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return Clock{}, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("invalid minute in %q", s)
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c Clock) on(day time.Time) time.Time {
	y, mo, d := day.Date()
	return time.Date(y, mo, d, c.Hour, c.Minute, 0, 0, day.Location())
}

// Schedule fires at fixed daily times, or every Interval when no times are set.
type Schedule struct {
	Times    []Clock
	Interval time.Duration
}

// New builds a schedule from clock strings and an interval.
func New(times []string, interval time.Duration) (*Schedule, error) {
	s := &Schedule{Interval: interval}
	for _, t := range times {
		c, err := ParseClock(t)
		if err != nil {
			return nil, err
		}
		s.Times = append(s.Times, c)
	}
	if len(s.Times) == 0 && interval <= 0 {
		return nil, fmt.Errorf("schedule needs at least one time or a positive interval")
	}

	sort.Slice(s.Times, func(i, j int) bool {
		a, b := s.Times[i], s.Times[j]
		return a.Hour*60+a.Minute < b.Hour*60+b.Minute
	})
	return s, nil
}

// Next returns the first firing strictly after the given instant, in its zone.
func (s *Schedule) Next(after time.Time) time.Time {
	if len(s.Times) == 0 {
		return after.Add(s.Interval)
	}

	for days := 0; days < 2; days++ {
		day := after.AddDate(0, 0, days)
		for _, c := range s.Times {
			if t := c.on(day); t.After(after) {
				return t
			}
		}
	}
	// Unreachable with at least one time; tomorrow's first slot always qualifies.
	return s.Times[0].on(after.AddDate(0, 0, 1))
}

// String describes the schedule for logs.
func (s *Schedule) String() string {
	if len(s.Times) == 0 {
		return "every " + s.Interval.String()
	}
	parts := make([]string, len(s.Times))
	for i, c := range s.Times {
		parts[i] = c.String()
	}
	return "daily at " + strings.Join(parts, ", ")
}

// Loop calls fn at every firing until ctx is done. now supplies the current
// time in the schedule's zone.
func Loop(ctx context.Context, s *Schedule, now func() time.Time, fn func(ctx context.Context)) {
	for {
		current := now()
		timer := time.NewTimer(s.Next(current).Sub(current))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			fn(ctx)
		}
	}
}
