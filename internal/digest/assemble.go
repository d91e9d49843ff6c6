package digest

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Bucket labels as they appear in the digest.
const (
	LabelWeek  = "未来七天"
	LabelNoDue = "无截止日期任务"
)

// TodayLabel returns the Today bucket heading for now, e.g. "今日计划 (24-05-01)".
func TodayLabel(now time.Time) string {
	return fmt.Sprintf("今日计划 (%s)", now.Format("06-01-02"))
}

// Assemble concatenates the blocks whose buckets had tasks, in the fixed
// order Today, Week, NoDue, and trims trailing whitespace. Three empty
// buckets produce the empty string.
func Assemble(today, week, noDue string, hasToday, hasWeek, hasNoDue bool) string {
	var b strings.Builder
	if hasToday {
		b.WriteString(today)
	}
	if hasWeek {
		b.WriteString(week)
	}
	if hasNoDue {
		b.WriteString(noDue)
	}
	return strings.TrimRightFunc(b.String(), unicode.IsSpace)
}

// Digest is the result of one classification and rendering pass.
type Digest struct {
	Text    string
	Buckets Buckets

	// Rendered blocks, including placeholder text for empty buckets.
	TodayBlock string
	WeekBlock  string
	NoDueBlock string
}

// Empty reports whether no task qualified for any bucket.
func (d Digest) Empty() bool {
	return d.Text == ""
}

// Counts returns the number of tasks per bucket, keyed by bucket name.
func (d Digest) Counts() map[string]int {
	return map[string]int{
		"today": len(d.Buckets.Today),
		"week":  len(d.Buckets.Week),
		"nodue": len(d.Buckets.NoDue),
	}
}

// Build classifies tasks against now and renders the final digest.
func Build(tasks []EnrichedTask, now time.Time) Digest {
	buckets := Classify(tasks, now)
	f := Formatter{Now: now}

	d := Digest{
		Buckets:    buckets,
		TodayBlock: f.Format(buckets.Today, TodayLabel(now)),
		WeekBlock:  f.Format(buckets.Week, LabelWeek),
		NoDueBlock: f.Format(buckets.NoDue, LabelNoDue),
	}
	d.Text = Assemble(d.TodayBlock, d.WeekBlock, d.NoDueBlock,
		len(buckets.Today) > 0, len(buckets.Week) > 0, len(buckets.NoDue) > 0)
	return d
}
