// Package metrics carries per-session measurement events to observers.
package metrics

import "time"

// Event names emitted by the gateway.
const (
	EventSessionStarted = "session_started"
	EventSessionClosed  = "session_closed"
	EventSTTPartial     = "stt_partial"
	EventSTTFinal       = "stt_final"
	EventSTTState       = "stt_state"
	EventLLMLatency     = "llm_latency"
	EventLLMUsage       = "llm_usage"
	EventTTSLatency     = "tts_latency"
	EventTurnLatency    = "turn_latency"
	EventSkillLatency   = "skill_latency"
)

// Tag keys.
const (
	TagSessionID = "session_id"
	TagTurnID    = "turn_id"
	TagProvider  = "provider"
	TagOutcome   = "outcome"
)

type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

// Tag returns the tag value or "".
func (ev MetricsEvent) Tag(key string) string {
	if ev.Tags == nil {
		return ""
	}
	return ev.Tags[key]
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type Flusher interface {
	Flush() error
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}

// Latency records a duration in milliseconds. A nil observer is ignored.
func Latency(obs Observer, name string, d time.Duration, tags map[string]string) {
	RecordLatency(obs, name, d, tags, nil)
}

// RecordLatency is Latency with extra fields.
func RecordLatency(obs Observer, name string, d time.Duration, tags map[string]string, fields map[string]any) {
	if obs == nil {
		return
	}
	obs.RecordEvent(MetricsEvent{
		Name:   name,
		Time:   time.Now(),
		Value:  float64(d.Milliseconds()),
		Tags:   tags,
		Fields: fields,
	})
}

// Mark records a point-in-time event.
func Mark(obs Observer, name string, tags map[string]string, fields map[string]any) {
	if obs == nil {
		return
	}
	obs.RecordEvent(MetricsEvent{Name: name, Time: time.Now(), Tags: tags, Fields: fields})
}
