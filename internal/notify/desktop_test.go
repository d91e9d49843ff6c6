package notify

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestEscapeAppleScript(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{
			input:    `Hello World`,
			expected: `Hello World`,
		},
		{
			input:    `Hello "World"`,
			expected: `Hello \"World\"`,
		},
		{
			input:    "Line1\nLine2\tTabbed",
			expected: `Line1\nLine2\tTabbed`,
		},
		{
			input:    `C:\Users\test`,
			expected: `C:\\Users\\test`,
		},
		{
			input:    "📦 收集箱",
			expected: "📦 收集箱",
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := escapeAppleScript(tt.input)
			if result != tt.expected {
				t.Errorf("escapeAppleScript(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestDesktopCommand(t *testing.T) {
	ctx := context.Background()

	t.Run("darwin", func(t *testing.T) {
		d := &Desktop{Title: "滴答清单", goos: "darwin"}
		cmd, err := d.command(ctx, `say "hi"`)
		if err != nil {
			t.Fatalf("command() failed: %v", err)
		}
		if filepath.Base(cmd.Args[0]) != "osascript" {
			t.Errorf("command = %v, want osascript", cmd.Args)
		}
		script := cmd.Args[len(cmd.Args)-1]
		if !strings.Contains(script, `say \"hi\"`) || !strings.Contains(script, `with title "滴答清单"`) {
			t.Errorf("script = %q", script)
		}
	})

	t.Run("linux", func(t *testing.T) {
		d := &Desktop{Title: "滴答清单", goos: "linux"}
		cmd, err := d.command(ctx, "body")
		if err != nil {
			t.Fatalf("command() failed: %v", err)
		}
		want := []string{"notify-send", "滴答清单", "body"}
		if strings.Join(cmd.Args, "|") != strings.Join(want, "|") {
			t.Errorf("args = %v, want %v", cmd.Args, want)
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		d := &Desktop{Title: "x", goos: "plan9"}
		if err := d.Deliver(ctx, "body"); !errors.Is(err, ErrUnsupported) {
			t.Errorf("error = %v, want ErrUnsupported", err)
		}
	})
}
