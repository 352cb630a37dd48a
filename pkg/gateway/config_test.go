package gateway

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bytegate.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	if cfg.Server.Addr != ":8000" || cfg.Server.Path != "/ws" {
		t.Fatalf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Pipeline.MaxHistory != 12 {
		t.Fatalf("expected max_history 12, got %d", cfg.Pipeline.MaxHistory)
	}
	if cfg.Pipeline.LLMTimeout != 30*time.Second {
		t.Fatalf("expected 30s llm timeout, got %s", cfg.Pipeline.LLMTimeout)
	}
	if cfg.Skills.WeatherCity != "Lucknow" {
		t.Fatalf("expected default city Lucknow, got %q", cfg.Skills.WeatherCity)
	}
	if cfg.Session.ForwardPartial {
		t.Fatalf("partials must be off by default")
	}
	if !cfg.Privacy.RedactPII {
		t.Fatalf("redaction must be on by default")
	}
	if cfg.Vendors.LLM.Provider != "gemini" || cfg.Vendors.STT.Provider != "assemblyai" || cfg.Vendors.TTS.Provider != "murf" {
		t.Fatalf("unexpected vendor defaults: %+v", cfg.Vendors)
	}
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("BYTEGATE_TEST_LLM_KEY", "llm-secret")
	t.Setenv("BYTEGATE_TEST_MODEL", "gemini-test")
	path := writeConfig(t, `
server:
  addr: "127.0.0.1:9100"
  ping_interval: 5s
pipeline:
  web_augmentation: true
  max_snippets: 2
vendors:
  llm:
    provider: gemini
    settings:
      model: ${BYTEGATE_TEST_MODEL}
fallback_keys:
  language_model: ${BYTEGATE_TEST_LLM_KEY}
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9100" || cfg.Server.PingInterval != 5*time.Second {
		t.Fatalf("server section not applied: %+v", cfg.Server)
	}
	if cfg.FallbackKeys.LanguageModel != "llm-secret" {
		t.Fatalf("expected expanded fallback key, got %q", cfg.FallbackKeys.LanguageModel)
	}
	if got := cfg.Vendors.LLM.Settings["model"]; got != "gemini-test" {
		t.Fatalf("expected expanded model setting, got %v", got)
	}
	if !cfg.Pipeline.WebAugmentation || cfg.Pipeline.MaxSnippets != 2 {
		t.Fatalf("pipeline section not applied: %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.MaxHistory != 12 {
		t.Fatalf("defaults must survive a partial file, got max_history %d", cfg.Pipeline.MaxHistory)
	}
	if got := cfg.FallbackKeys.Store().LanguageModel; got != "llm-secret" {
		t.Fatalf("expected fallback store to carry the key, got %q", got)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"snippets": "pipeline:\n  max_snippets: 9\n",
		"path":     "server:\n  path: ws\n",
		"format":   "logging:\n  format: xml\n",
		"news":     "skills:\n  news_count: 12\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, body)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestRegistryBuildsConfiguredVendors(t *testing.T) {
	reg := NewProviderRegistry()
	RegisterDefaults(reg)
	p, err := reg.Build(VendorsConfig{
		STT:     STTVendorConfig{Provider: "deepgram", Settings: map[string]any{"model": "nova-2", "encoding": "linear16"}, BatchProvider: "assemblyai"},
		LLM:     VendorConfig{Provider: "OpenAI", Settings: map[string]any{"model": "gpt-4o-mini", "retries": 0}},
		TTS:     VendorConfig{Provider: "elevenlabs"},
		Search:  VendorConfig{Provider: "tavily", Settings: map[string]any{"api_key": "tv"}},
		News:    VendorConfig{Provider: "newsapi"},
		Weather: VendorConfig{Provider: "none"},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if p.LLM.Name() != "openai" {
		t.Fatalf("expected bare openai adapter with retries off, got %s", p.LLM.Name())
	}
	if p.Streamer.Name() != "deepgram_streaming" || p.Transcriber.Name() != "assemblyai_batch" {
		t.Fatalf("unexpected stt vendors: %s %s", p.Streamer.Name(), p.Transcriber.Name())
	}
	if p.TTS.Name() != "elevenlabs_tts" || p.Search.Name() != "tavily" || p.News.Name() != "newsapi" {
		t.Fatalf("unexpected vendors: %+v", p)
	}
	if p.Weather != nil {
		t.Fatalf("weather should be disabled")
	}
}

func TestRegistryErrors(t *testing.T) {
	reg := NewProviderRegistry()
	RegisterDefaults(reg)
	cases := map[string]VendorsConfig{
		"unknown llm":       {LLM: VendorConfig{Provider: "nope"}},
		"unknown setting":   {LLM: VendorConfig{Provider: "gemini", Settings: map[string]any{"temperature": 1}}},
		"bad encoding":      {LLM: VendorConfig{Provider: "mock"}, STT: STTVendorConfig{Provider: "deepgram", Settings: map[string]any{"encoding": "opus"}}},
		"bad utterance end": {LLM: VendorConfig{Provider: "mock"}, STT: STTVendorConfig{Provider: "deepgram", Settings: map[string]any{"utterance_end_ms": 9000}}},
	}
	for name, v := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := reg.Build(v); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestSearchWithoutKeyIsDisabled(t *testing.T) {
	reg := NewProviderRegistry()
	RegisterDefaults(reg)
	p, err := reg.Build(VendorsConfig{
		LLM:    VendorConfig{Provider: "mock"},
		Search: VendorConfig{Provider: "tavily", Settings: map[string]any{"api_key": ""}},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if p.Search != nil {
		t.Fatalf("expected search to be disabled without a key")
	}
}

func TestExampleConfigLoads(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "configs", "bytegate.yaml"))
	if err != nil {
		t.Fatalf("load example config: %v", err)
	}
	reg := NewProviderRegistry()
	RegisterDefaults(reg)
	p, err := reg.Build(cfg.Vendors)
	if err != nil {
		t.Fatalf("build example vendors: %v", err)
	}
	if p.LLM.Name() != "gemini" || p.Streamer.Name() != "assemblyai" || p.TTS.Name() != "murf" {
		t.Fatalf("unexpected example vendors: %+v", p)
	}
}
