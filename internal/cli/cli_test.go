package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"3", "12"})
	if err != nil || len(ids) != 2 || ids[0] != 3 || ids[1] != 12 {
		t.Fatalf("unexpected ids %v err=%v", ids, err)
	}
	for _, bad := range []string{"0", "-1", "x", "1.5"} {
		if _, err := parseIDs([]string{bad}); err == nil {
			t.Fatalf("%q should be rejected", bad)
		}
	}
}

func TestCommandTree(t *testing.T) {
	want := []string{"run", "alert", "rates", "offsets", "export", "show", "version", "simulate-alert"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("command %q not registered: %v", name, err)
		}
	}
	for _, sub := range []string{"add", "list", "cancel", "delete", "select"} {
		cmd, _, err := rootCmd.Find([]string{"alert", sub})
		if err != nil || cmd.Name() != sub {
			t.Fatalf("alert %s not registered: %v", sub, err)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	if !strings.Contains(out.String(), "version: ") {
		t.Fatalf("unexpected output %q", out.String())
	}
}
