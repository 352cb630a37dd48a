package metrics

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestJSONLObserverWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	obs := NewJSONLObserver(&buf)
	Latency(obs, EventLLMLatency, 120*time.Millisecond, map[string]string{TagSessionID: "s1", TagTurnID: "t1"})
	Mark(obs, EventSessionClosed, map[string]string{TagSessionID: "s1"}, nil)
	if err := obs.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first["name"] != EventLLMLatency || first["value"] != float64(120) || first[TagTurnID] != "t1" {
		t.Fatalf("unexpected line: %v", first)
	}
}

func TestAsyncObserverDeliversBeforeClose(t *testing.T) {
	mem := NewMemoryObserver()
	async := NewAsyncObserver(mem, 8)
	for i := 0; i < 5; i++ {
		Mark(async, EventSTTPartial, nil, nil)
	}
	if err := async.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := len(mem.Named(EventSTTPartial)); got != 5 {
		t.Fatalf("expected 5 events, got %d", got)
	}
	Mark(async, EventSTTPartial, nil, nil)
	if got := len(mem.Events()); got != 5 {
		t.Fatalf("event recorded after close")
	}
}

func TestNilObserverIsIgnored(t *testing.T) {
	Latency(nil, EventTTSLatency, time.Second, nil)
	Mark(nil, EventSessionStarted, nil, nil)
}
