package observers

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/bytegate/pkg/metrics"
)

// UsageSummary is the provider consumption of one session.
type UsageSummary struct {
	SessionID        string `json:"session_id"`
	Turns            int    `json:"turns"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TTSBytes         int    `json:"tts_bytes"`
	ClosedAtUTC      string `json:"closed_at_utc"`
}

// UsageObserver accumulates token and audio usage per session. On close the
// summary is logged and, when dir is set, written to <dir>/<session>.usage.json.
type UsageObserver struct {
	dir   string
	log   *slog.Logger
	mu    sync.Mutex
	stats map[string]*UsageSummary
}

func NewUsageObserver(dir string, log *slog.Logger) *UsageObserver {
	if log == nil {
		log = slog.Default()
	}
	return &UsageObserver{dir: strings.TrimSpace(dir), log: log, stats: make(map[string]*UsageSummary)}
}

func (o *UsageObserver) RecordEvent(ev metrics.MetricsEvent) {
	id := ev.Tag(metrics.TagSessionID)
	if id == "" {
		return
	}
	o.mu.Lock()
	if ev.Name == metrics.EventSessionClosed {
		stat := o.stats[id]
		delete(o.stats, id)
		o.mu.Unlock()
		if stat != nil {
			o.report(stat)
		}
		return
	}
	defer o.mu.Unlock()
	stat := o.stats[id]
	if stat == nil {
		stat = &UsageSummary{SessionID: id}
		o.stats[id] = stat
	}
	switch ev.Name {
	case metrics.EventLLMUsage:
		stat.PromptTokens += intField(ev.Fields, "prompt_tokens")
		stat.CompletionTokens += intField(ev.Fields, "completion_tokens")
	case metrics.EventTTSLatency:
		stat.TTSBytes += intField(ev.Fields, "bytes")
	case metrics.EventTurnLatency:
		stat.Turns++
	}
}

// Snapshot returns the running totals of a session.
func (o *UsageObserver) Snapshot(sessionID string) (UsageSummary, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	stat := o.stats[sessionID]
	if stat == nil {
		return UsageSummary{}, false
	}
	return *stat, true
}

func (o *UsageObserver) report(stat *UsageSummary) {
	stat.ClosedAtUTC = time.Now().UTC().Format(time.RFC3339)
	o.log.Info("session_usage",
		"session_id", stat.SessionID,
		"turns", stat.Turns,
		"prompt_tokens", stat.PromptTokens,
		"completion_tokens", stat.CompletionTokens,
		"tts_bytes", stat.TTSBytes,
	)
	if o.dir == "" {
		return
	}
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		o.log.Warn("usage_write_failed", "error", err)
		return
	}
	b, err := json.MarshalIndent(stat, "", "  ")
	if err != nil {
		return
	}
	path := filepath.Join(o.dir, sanitizeID(stat.SessionID)+".usage.json")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		o.log.Warn("usage_write_failed", "error", err)
	}
}

func intField(fields map[string]any, key string) int {
	switch v := fields[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(id))
}

var _ metrics.Observer = (*UsageObserver)(nil)
