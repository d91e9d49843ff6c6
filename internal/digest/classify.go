package digest

import (
	"time"

	"github.com/Jayphen/dida-digest/internal/tasksource"
)

// WeekHorizonDays is how far ahead the Next7Days bucket reaches, inclusive.
const WeekHorizonDays = 7

// Buckets holds the three mutually exclusive groupings of one run.
type Buckets struct {
	Today []EnrichedTask
	Week  []EnrichedTask
	NoDue []EnrichedTask
}

// Len returns the number of tasks across all buckets.
func (b Buckets) Len() int {
	return len(b.Today) + len(b.Week) + len(b.NoDue)
}

// Classify partitions tasks by due date relative to now's calendar day.
// now's location is the local zone used for every calendar comparison.
//
// Done tasks are skipped. Tasks without a usable due date go to NoDue only
// when they carry a priority. Tasks due before today or after the 7-day
// horizon are not placed in any bucket.
func Classify(tasks []EnrichedTask, now time.Time) Buckets {
	loc := now.Location()
	today := startOfDay(now)
	horizon := today.AddDate(0, 0, WeekHorizonDays)

	var b Buckets
	for _, task := range tasks {
		if task.Status != tasksource.StatusNotDone {
			continue
		}

		due, ok := ParseDueDate(task.DueDate, loc)
		if !ok {
			if task.Priority != tasksource.PriorityNone {
				b.NoDue = append(b.NoDue, task)
			}
			continue
		}

		day := startOfDay(due)
		switch {
		case day.Equal(today):
			b.Today = append(b.Today, task)
		case day.After(today) && !day.After(horizon):
			b.Week = append(b.Week, task)
		}
		// TODO: overdue tasks (day before today) are dropped; surface them once
		// there is a decision on how the digest should show them.
	}
	return b
}
