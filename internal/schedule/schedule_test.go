package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{in: "08:30", want: Clock{8, 30}},
		{in: "8:05", want: Clock{8, 5}},
		{in: " 23:59 ", want: Clock{23, 59}},
		{in: "00:00", want: Clock{0, 0}},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "12:5", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseClock(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseClock(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	if _, err := New(nil, 0); err == nil {
		t.Error("expected error for empty schedule")
	}
	if _, err := New([]string{"bad"}, 0); err == nil {
		t.Error("expected error for invalid time")
	}

	s, err := New([]string{"18:00", "08:30"}, 0)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if s.String() != "daily at 08:30, 18:00" {
		t.Errorf("String() = %q", s.String())
	}
}

func TestNext(t *testing.T) {
	loc := time.FixedZone("CST", 8*3600)
	at := func(day, hour, minute int) time.Time {
		return time.Date(2024, 5, day, hour, minute, 0, 0, loc)
	}

	daily, err := New([]string{"08:30", "18:00"}, 0)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		after time.Time
		want  time.Time
	}{
		{name: "before first slot", after: at(1, 7, 0), want: at(1, 8, 30)},
		{name: "exactly on slot moves on", after: at(1, 8, 30), want: at(1, 18, 0)},
		{name: "between slots", after: at(1, 12, 0), want: at(1, 18, 0)},
		{name: "after last slot", after: at(1, 19, 0), want: at(2, 8, 30)},
		{name: "month end", after: time.Date(2024, 5, 31, 23, 0, 0, 0, loc), want: time.Date(2024, 6, 1, 8, 30, 0, 0, loc)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := daily.Next(tt.after); !got.Equal(tt.want) {
				t.Errorf("Next(%v) = %v, want %v", tt.after, got, tt.want)
			}
		})
	}

	interval, err := New(nil, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if got := interval.Next(at(1, 7, 15)); !got.Equal(at(1, 8, 15)) {
		t.Errorf("interval Next = %v", got)
	}
	if interval.String() != "every 1h0m0s" {
		t.Errorf("String() = %q", interval.String())
	}
}

func TestLoop(t *testing.T) {
	s, err := New(nil, 5*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var calls atomic.Int32
	Loop(ctx, s, time.Now, func(ctx context.Context) {
		if calls.Add(1) == 3 {
			cancel()
		}
	})

	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}
