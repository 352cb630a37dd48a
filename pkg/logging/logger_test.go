package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestInitLoggerJSONWithComponent(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logger := initLogger(&buf, Config{Level: "debug", Format: "json"})
	NewComponentLogger(logger, "session").Debug("session_started", "session_id", "abc")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected json log line: %v (%q)", err, buf.String())
	}
	if rec["component"] != "session" || rec["msg"] != "session_started" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestInitLoggerTextRespectsLevel(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logger := initLogger(&buf, Config{Level: "warn", Format: "text"})
	logger.Info("hidden")
	logger.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestParseLevelDefault(t *testing.T) {
	if ParseLevel("nonsense") != slog.LevelInfo {
		t.Fatalf("expected info default")
	}
}
