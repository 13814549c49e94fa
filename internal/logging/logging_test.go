package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerToJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(NewLoggerTo(Config{Level: "warn", Format: "json"}, &buf), "ledger")

	logger.Info().Msg("dropped")
	logger.Warn().Int64("alert_id", 3).Msg("kept")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", buf.String(), err)
	}
	if entry["component"] != "ledger" || entry["message"] != "kept" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestNewLoggerToDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(Config{Level: "nonsense", Format: "json"}, &buf)
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("unparseable level should fall back to info, got %s", logger.GetLevel())
	}
}
