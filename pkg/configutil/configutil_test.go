package configutil

import (
	"errors"
	"testing"
	"time"
)

type sample struct {
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Titles   []string      `mapstructure:"titles"`
	Interim  *bool         `mapstructure:"interim"`
	Attempts *int          `mapstructure:"attempts"`
}

var sampleSchema = Schema{
	Required: []string{"api_key"},
	Optional: []string{"timeout", "titles", "interim", "attempts"},
}

func TestValidateSettingsReportsAllProblems(t *testing.T) {
	err := ValidateSettings("vendors.tts.settings", map[string]any{"api_key": "  ", "voice": "x", "Timeout": "1s"}, sampleSchema)
	var serr *SettingsError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SettingsError, got %v", err)
	}
	if len(serr.Missing) != 1 || serr.Missing[0] != "api_key" {
		t.Fatalf("unexpected missing keys: %v", serr.Missing)
	}
	if len(serr.Unknown) != 1 || serr.Unknown[0] != "voice" {
		t.Fatalf("unexpected unknown keys: %v", serr.Unknown)
	}
	if got := err.Error(); got != "vendors.tts.settings: missing: api_key; unknown: voice" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestValidateSettingsNormalizesKeys(t *testing.T) {
	if err := ValidateSettings("", map[string]any{"API-KEY": "k"}, sampleSchema); err != nil {
		t.Fatalf("expected key match, got %v", err)
	}
	if err := ValidateSettings("", map[string]any{"anything": 1, "api_key": "k"}, Schema{Required: []string{"api_key"}, AllowUnknown: true}); err != nil {
		t.Fatalf("unknown keys must pass when allowed, got %v", err)
	}
}

func TestDecodeConvertsLooseValues(t *testing.T) {
	var out sample
	err := Decode("s", map[string]any{
		"api_key":  "k",
		"timeout":  "1500ms",
		"titles":   "a,b",
		"interim":  "false",
		"attempts": 4,
	}, sampleSchema, &out)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Timeout != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s, got %s", out.Timeout)
	}
	if len(out.Titles) != 2 || out.Titles[1] != "b" {
		t.Fatalf("unexpected titles %v", out.Titles)
	}
	if BoolValue(out.Interim, true) {
		t.Fatalf("explicit false must win over the fallback")
	}
	if IntValue(out.Attempts, 1) != 4 {
		t.Fatalf("unexpected attempts %v", out.Attempts)
	}
}

func TestFallbacks(t *testing.T) {
	if !BoolValue(nil, true) || IntValue(nil, 7) != 7 {
		t.Fatalf("nil values must use the fallback")
	}
	if err := RequireString(" ", "vendors.llm.provider"); err == nil {
		t.Fatalf("expected blank string to be rejected")
	}
}
