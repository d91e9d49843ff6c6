package digest

import (
	"sort"
	"strings"
	"time"

	"github.com/Jayphen/dida-digest/internal/tasksource"
)

const (
	lineIndent   = "    "
	emptyBucket  = "  暂无未完成的任务"
	noDueMarker  = "📌 无截止"
	fallbackMark = "📌"
	todayPlain   = "⏰"
	starred      = "⭐"
	upcoming     = "🛎"
)

// Formatter renders buckets into text blocks. Now decides which tasks count
// as due today and supplies the local zone.
type Formatter struct {
	Now time.Time
}

// Format renders one bucket under label. The block always ends with a blank
// line. A single malformed task degrades to a fallback line.
func (f Formatter) Format(tasks []EnrichedTask, label string) string {
	if len(tasks) == 0 {
		return label + "：\n" + emptyBucket + "\n\n"
	}

	loc := f.Now.Location()
	today := startOfDay(f.Now)

	var b strings.Builder
	b.WriteString(label)
	b.WriteString("：\n")
	for _, task := range sortByDue(tasks, loc) {
		b.WriteString(formatLine(task, today, loc))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.String()
}

func formatLine(task EnrichedTask, today time.Time, loc *time.Location) string {
	hasPriority := task.Priority != tasksource.PriorityNone

	if task.DueDate == "" {
		star := ""
		if hasPriority {
			star = starred
		}
		return lineIndent + noDueMarker + " " + task.ProjectName + " " + star + task.Title + priorityText(task.Priority)
	}

	due, ok := ParseDueDate(task.DueDate, loc)
	if !ok {
		return lineIndent + fallbackMark + " " + task.Title + priorityText(task.Priority)
	}

	if startOfDay(due).Equal(today) {
		symbol := todayPlain
		if hasPriority {
			symbol = starred
		}
		return lineIndent + symbol + " " + due.Format("15:04") + " " + task.Title
	}

	return lineIndent + upcoming + " " + due.Format("01-02") + " (周" + CJKWeekday(due.Weekday()) + ") " +
		task.Title + priorityText(task.Priority)
}

// priorityText is the " (label)" suffix, empty for PriorityNone.
func priorityText(p tasksource.TaskPriority) string {
	if p == tasksource.PriorityNone {
		return ""
	}
	return " (" + PriorityLabel(p) + ")"
}

// sortByDue returns a copy of tasks stably ordered by due date ascending.
// Tasks without a parseable due date go last.
func sortByDue(tasks []EnrichedTask, loc *time.Location) []EnrichedTask {
	type keyed struct {
		task EnrichedTask
		due  time.Time
		ok   bool
	}

	items := make([]keyed, len(tasks))
	for i, task := range tasks {
		due, ok := ParseDueDate(task.DueDate, loc)
		items[i] = keyed{task: task, due: due, ok: ok}
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch {
		case a.ok && b.ok:
			return a.due.Before(b.due)
		case a.ok:
			return true
		default:
			return false
		}
	})

	sorted := make([]EnrichedTask, len(items))
	for i, it := range items {
		sorted[i] = it.task
	}
	return sorted
}
