package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Desktop shows an OS-native notification:
// - macOS: osascript (native AppleScript)
// - Linux: notify-send (libnotify)
type Desktop struct {
	Title string

	// goos overrides runtime.GOOS in tests.
	goos string
}

// NewDesktop creates a desktop notifier with the given title.
func NewDesktop(title string) *Desktop {
	return &Desktop{Title: title}
}

// Deliver shows text as a desktop notification and waits for the
// notification command to exit.
func (d *Desktop) Deliver(ctx context.Context, text string) error {
	cmd, err := d.command(ctx, text)
	if err != nil {
		return err
	}
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", cmd.Path, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (d *Desktop) command(ctx context.Context, text string) (*exec.Cmd, error) {
	goos := d.goos
	if goos == "" {
		goos = runtime.GOOS
	}

	switch goos {
	case "darwin":
		script := fmt.Sprintf(`display notification "%s" with title "%s"`,
			escapeAppleScript(text), escapeAppleScript(d.Title))
		return exec.CommandContext(ctx, "osascript", "-e", script), nil
	case "linux":
		return exec.CommandContext(ctx, "notify-send", d.Title, text), nil
	default:
		return nil, ErrUnsupported
	}
}

// escapeAppleScript escapes text for use inside an AppleScript string literal.
func escapeAppleScript(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, ch := range s {
		switch ch {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(ch)
		}
	}
	return b.String()
}
