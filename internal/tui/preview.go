package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Jayphen/dida-digest/internal/digest"
)

// PreviewInfo is the context shown above a digest preview.
type PreviewInfo struct {
	Source    string
	Generated time.Time
	Outcome   string // e.g. "dry run", "delivered"
	Width     int    // box width; 0 sizes to content
}

// RenderPreview renders the digest in a bordered box with a summary header.
func RenderPreview(d digest.Digest, info PreviewInfo) string {
	var b strings.Builder

	title := TitleStyle.Render("滴答清单任务摘要")
	if info.Outcome != "" {
		title += " " + SubtitleStyle.Render("("+info.Outcome+")")
	}
	b.WriteString(title)
	b.WriteString("\n")

	var meta []string
	if info.Source != "" {
		meta = append(meta, "source "+info.Source)
	}
	if !info.Generated.IsZero() {
		meta = append(meta, info.Generated.Format("2006-01-02 15:04 MST"))
	}
	if len(meta) > 0 {
		b.WriteString(DimStyle.Render(strings.Join(meta, " · ")))
		b.WriteString("\n")
	}

	b.WriteString(renderCounts(d))
	b.WriteString("\n\n")

	box := BoxStyle
	if info.Width > 0 {
		box = box.Width(info.Width)
	}
	b.WriteString(box.Render(styleDigest(d.Text)))
	b.WriteString("\n")

	return b.String()
}

func renderCounts(d digest.Digest) string {
	counts := d.Counts()
	parts := []string{
		GetBucketStyle("today").Render(fmt.Sprintf("今日 %d", counts["today"])),
		GetBucketStyle("week").Render(fmt.Sprintf("七天 %d", counts["week"])),
		GetBucketStyle("nodue").Render(fmt.Sprintf("无截止 %d", counts["nodue"])),
	}
	if d.Empty() {
		parts = append(parts, WarningStyle.Render(IndicatorSkipped+" 暂无未完成的任务"))
	}
	return strings.Join(parts, DimStyle.Render("  "))
}

// styleDigest colors bucket headers; task lines are left as they are sent.
func styleDigest(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if bucket, ok := headerBucket(line); ok {
			lines[i] = GetBucketStyle(bucket).Render(line)
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func headerBucket(line string) (string, bool) {
	if !strings.HasSuffix(line, "：") || strings.HasPrefix(line, " ") {
		return "", false
	}
	switch {
	case strings.HasPrefix(line, digest.LabelWeek):
		return "week", true
	case strings.HasPrefix(line, digest.LabelNoDue):
		return "nodue", true
	default:
		return "today", true
	}
}
