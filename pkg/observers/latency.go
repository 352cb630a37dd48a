package observers

import (
	"log/slog"
	"sync"

	"github.com/harunnryd/bytegate/pkg/metrics"
)

// LatencyObserver aggregates stage latencies per session and logs a summary
// when the session closes.
type LatencyObserver struct {
	mu       sync.Mutex
	sessions map[string]*sessionLatency
	log      *slog.Logger
}

type stageStat struct {
	count int
	sum   float64
	max   float64
}

func (s *stageStat) add(v float64) {
	s.count++
	s.sum += v
	if v > s.max {
		s.max = v
	}
}

func (s stageStat) avg() float64 {
	if s.count == 0 {
		return -1
	}
	return s.sum / float64(s.count)
}

type sessionLatency struct {
	llm, tts, turn, skill stageStat
}

func NewLatencyObserver(log *slog.Logger) *LatencyObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LatencyObserver{
		sessions: make(map[string]*sessionLatency),
		log:      log,
	}
}

func (o *LatencyObserver) RecordEvent(ev metrics.MetricsEvent) {
	sessionID := ev.Tag(metrics.TagSessionID)
	if sessionID == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if ev.Name == metrics.EventSessionClosed {
		if s := o.sessions[sessionID]; s != nil {
			o.logSummaryLocked(sessionID, s)
			delete(o.sessions, sessionID)
		}
		return
	}
	var stat *stageStat
	s := o.sessions[sessionID]
	if s == nil {
		s = &sessionLatency{}
	}
	switch ev.Name {
	case metrics.EventLLMLatency:
		stat = &s.llm
	case metrics.EventTTSLatency:
		stat = &s.tts
	case metrics.EventTurnLatency:
		stat = &s.turn
	case metrics.EventSkillLatency:
		stat = &s.skill
	default:
		return
	}
	stat.add(ev.Value)
	o.sessions[sessionID] = s
}

// Open returns the number of sessions with unreported latencies.
func (o *LatencyObserver) Open() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sessions)
}

func (o *LatencyObserver) logSummaryLocked(sessionID string, s *sessionLatency) {
	o.log.Info("session_latency",
		"session_id", sessionID,
		"turns", s.turn.count,
		"turn_avg_ms", s.turn.avg(),
		"turn_max_ms", s.turn.max,
		"llm_avg_ms", s.llm.avg(),
		"llm_max_ms", s.llm.max,
		"tts_avg_ms", s.tts.avg(),
		"tts_max_ms", s.tts.max,
		"skills", s.skill.count,
	)
}
