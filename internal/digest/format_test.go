package digest

import (
	"strings"
	"testing"
	"time"

	"github.com/Jayphen/dida-digest/internal/tasksource"
)

func TestPriorityLabel(t *testing.T) {
	tests := []struct {
		p    tasksource.TaskPriority
		want string
	}{
		{0, "无"},
		{1, "低"},
		{2, ""},
		{3, "中"},
		{4, ""},
		{5, "高"},
		{6, ""},
		{-1, ""},
	}
	for _, tt := range tests {
		if got := PriorityLabel(tt.p); got != tt.want {
			t.Errorf("PriorityLabel(%d) = %q, want %q", tt.p, got, tt.want)
		}
	}
}

func TestCJKWeekday(t *testing.T) {
	want := map[time.Weekday]string{
		time.Monday:    "一",
		time.Tuesday:   "二",
		time.Wednesday: "三",
		time.Thursday:  "四",
		time.Friday:    "五",
		time.Saturday:  "六",
		time.Sunday:    "日",
	}
	for d, w := range want {
		if got := CJKWeekday(d); got != w {
			t.Errorf("CJKWeekday(%v) = %q, want %q", d, got, w)
		}
	}
}

func TestFormatEmptyBucket(t *testing.T) {
	got := Formatter{Now: testNow}.Format(nil, "未来七天")
	want := "未来七天：\n  暂无未完成的任务\n\n"
	if got != want {
		t.Errorf("Format(empty) = %q, want %q", got, want)
	}
}

func TestFormatLines(t *testing.T) {
	inbox := task("i1", "Someday", "", tasksource.PriorityHigh)
	inbox.ProjectName = InboxLabel

	tests := []struct {
		name string
		task EnrichedTask
		want string
	}{
		{
			name: "today without priority",
			task: task("t1", "Pay rent", "2024-05-01T09:00:00+08:00", tasksource.PriorityNone),
			want: "    ⏰ 09:00 Pay rent",
		},
		{
			name: "today with priority shows star and no label",
			task: task("t2", "Standup", "2024-05-01T01:30:00.000+0000", tasksource.PriorityMedium),
			want: "    ⭐ 09:30 Standup",
		},
		{
			name: "upcoming with priority",
			task: task("t3", "Review doc", "2024-05-04T10:00:00+08:00", tasksource.PriorityMedium),
			want: "    🛎 05-04 (周六) Review doc (中)",
		},
		{
			name: "upcoming without priority",
			task: task("t4", "Call mom", "2024-05-05T20:00:00+08:00", tasksource.PriorityNone),
			want: "    🛎 05-05 (周日) Call mom",
		},
		{
			name: "no due date with priority",
			task: task("t5", "Someday", "", tasksource.PriorityHigh),
			want: "    📌 无截止 Work ⭐Someday (高)",
		},
		{
			name: "no due date inbox",
			task: inbox,
			want: "    📌 无截止 📦 收集箱 ⭐Someday (高)",
		},
		{
			name: "no due date without priority",
			task: task("t6", "Plain", "", tasksource.PriorityNone),
			want: "    📌 无截止 Work Plain",
		},
		{
			name: "unparseable due date",
			task: task("t7", "Broken", "tomorrow-ish", tasksource.PriorityLow),
			want: "    📌 Broken (低)",
		},
		{
			name: "unused priority slot",
			task: task("t8", "Odd", "", 2),
			want: "    📌 无截止 Work ⭐Odd ()",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Formatter{Now: testNow}.Format([]EnrichedTask{tt.task}, "L")
			want := "L：\n" + tt.want + "\n\n"
			if got != want {
				t.Errorf("Format() = %q, want %q", got, want)
			}
		})
	}
}

func TestFormatSortsByDueDate(t *testing.T) {
	tasks := []EnrichedTask{
		task("nodue", "No date", "", tasksource.PriorityHigh),
		task("late", "Late", "2024-05-06T09:00:00+08:00", tasksource.PriorityNone),
		task("bad", "Bad", "??", tasksource.PriorityLow),
		task("early", "Early", "2024-05-02T09:00:00+08:00", tasksource.PriorityNone),
		task("same-a", "Same A", "2024-05-03T09:00:00+08:00", tasksource.PriorityNone),
		task("same-b", "Same B", "2024-05-03T01:00:00Z", tasksource.PriorityNone),
	}

	got := Formatter{Now: testNow}.Format(tasks, "未来七天")
	lines := strings.Split(strings.TrimSuffix(got, "\n\n"), "\n")[1:]

	wantOrder := []string{"Early", "Same A", "Same B", "Late", "No date", "Bad"}
	if len(lines) != len(wantOrder) {
		t.Fatalf("got %d lines, want %d: %q", len(lines), len(wantOrder), got)
	}
	for i, title := range wantOrder {
		if !strings.HasSuffix(strings.TrimSuffix(strings.TrimSuffix(lines[i], " (高)"), " (低)"), title) {
			t.Errorf("line %d = %q, want title %q", i, lines[i], title)
		}
	}

	// Input order must be untouched.
	if tasks[0].ID != "nodue" {
		t.Error("Format reordered the caller's slice")
	}
}

func TestFormatterUsesOwnClock(t *testing.T) {
	due := "2024-05-02T09:00:00+08:00"
	tasks := []EnrichedTask{task("t", "Tomorrow", due, tasksource.PriorityNone)}

	nextDay := Formatter{Now: testNow.AddDate(0, 0, 1)}.Format(tasks, "L")
	if !strings.Contains(nextDay, "⏰ 09:00 Tomorrow") {
		t.Errorf("expected today-style line when Now is the due day, got %q", nextDay)
	}
}

func TestFormatBlankDueDateUsesFallbackLine(t *testing.T) {
	blank := task("ws", "WS", " ", tasksource.PriorityLow)
	blank.ProjectName = "Work"

	got := Formatter{Now: testNow}.Format([]EnrichedTask{blank}, "无截止日期任务")
	want := "无截止日期任务：\n    📌 WS (低)\n\n"
	if got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}
