package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Desktop shows a native notification via notify-send (Linux) or osascript
// (macOS).
type Desktop struct {
	goos     string
	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) error
}

func NewDesktop() *Desktop {
	return &Desktop{
		goos:     runtime.GOOS,
		lookPath: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

func (d *Desktop) Name() string {
	return "desktop"
}

func (d *Desktop) binary() string {
	switch d.goos {
	case "linux":
		return "notify-send"
	case "darwin":
		return "osascript"
	}
	return ""
}

func (d *Desktop) Available() bool {
	bin := d.binary()
	if bin == "" {
		return false
	}
	_, err := d.lookPath(bin)
	return err == nil
}

func (d *Desktop) Notify(ctx context.Context, note *Notification) error {
	if !d.Available() {
		return fmt.Errorf("desktop notifications not available; install notify-send (Linux) or ensure osascript is available (macOS)")
	}

	switch d.goos {
	case "linux":
		return d.run(ctx, "notify-send", "-u", "critical", "-a", "worldclock", note.Title, note.Message)
	case "darwin":
		script := fmt.Sprintf(`display notification %s with title %s`, appleQuote(note.Message), appleQuote(note.Title))
		return d.run(ctx, "osascript", "-e", script)
	default:
		return fmt.Errorf("unsupported platform: %s", d.goos)
	}
}

func appleQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

var _ Notifier = (*Desktop)(nil)
