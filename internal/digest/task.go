// Package digest turns raw tasks into the time-bucketed text report that is
// pushed to the group chat. Everything here is pure: no network, no clock,
// no globals. The caller supplies the tasks and the reference time.
package digest

import (
	"strings"
	"time"

	"github.com/Jayphen/dida-digest/internal/tasksource"
)

// InboxLabel is the project name given to inbox tasks.
const InboxLabel = "📦 收集箱"

// priorityLabels is indexed by the raw priority value. Slots 2 and 4 are
// unused by the service and render as the empty string.
var priorityLabels = [6]string{"无", "低", "", "中", "", "高"}

// cjkWeekdays is indexed Monday=0 .. Sunday=6.
var cjkWeekdays = [7]string{"一", "二", "三", "四", "五", "六", "日"}

// EnrichedTask is a task with its resolved project display name.
type EnrichedTask struct {
	tasksource.Task
	ProjectName string
}

// Enrich tags a raw task with the name of the project it came from.
func Enrich(task tasksource.Task, projectName string) EnrichedTask {
	return EnrichedTask{Task: task, ProjectName: projectName}
}

// PriorityLabel returns the display label for a priority value.
// Values outside 0..5 have no label.
func PriorityLabel(p tasksource.TaskPriority) string {
	if p < 0 || int(p) >= len(priorityLabels) {
		return ""
	}
	return priorityLabels[p]
}

// CJKWeekday returns the single-character Chinese weekday name.
func CJKWeekday(d time.Weekday) string {
	return cjkWeekdays[(int(d)+6)%7]
}

// Zone-aware layouts, tried after a trailing "Z" has become "+00:00".
// Fractional seconds are accepted by time.Parse even when absent from the layout.
var zonedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700", // service wire form: 2024-05-01T01:00:00.000+0000
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04Z07:00",
}

// Zone-less layouts are read in the caller's location.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDueDate parses a due-date string and converts it to loc.
// It reports false for empty or unparseable input; callers treat both the same.
func ParseDueDate(raw string, loc *time.Location) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z") + "+00:00"
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(loc), true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// startOfDay truncates t to midnight in its own location.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
