package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/harunnryd/bytegate/pkg/adapters/stt"
	"github.com/harunnryd/bytegate/pkg/errorsx"
)

type STTConfig struct {
	Transcript        string
	InterimTranscript string
	// ChunksPerUtterance pushes produce one final event; earlier pushes produce partials.
	ChunksPerUtterance int
	// Manual disables scripted events; tests drive streams through Emit and Drop.
	Manual  bool
	OpenErr error
	// OpenGate, when set, holds every Open until it is closed or ctx ends.
	OpenGate chan struct{}
}

// StreamingSTT opens in-memory streams.
type StreamingSTT struct {
	cfg     STTConfig
	mu      sync.Mutex
	streams []*Stream
	opens   int
}

func NewSTT(cfg STTConfig) *StreamingSTT {
	if cfg.Transcript == "" {
		cfg.Transcript = "mock transcript"
	}
	if cfg.ChunksPerUtterance <= 0 {
		cfg.ChunksPerUtterance = 3
	}
	return &StreamingSTT{cfg: cfg}
}

func (s *StreamingSTT) Name() string { return "mock_stt" }

func (s *StreamingSTT) Open(ctx context.Context, credential string) (stt.Stream, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, errorsx.New(errorsx.ReasonMissingCredential, "mock stt: no key")
	}
	s.mu.Lock()
	s.opens++
	s.mu.Unlock()
	if s.cfg.OpenGate != nil {
		select {
		case <-s.cfg.OpenGate:
		case <-ctx.Done():
			return nil, errorsx.Wrap(ctx.Err(), errorsx.ReasonTransportFault)
		}
	}
	if s.cfg.OpenErr != nil {
		return nil, s.cfg.OpenErr
	}
	st := &Stream{cfg: s.cfg, events: make(chan stt.Event, 32)}
	s.mu.Lock()
	s.streams = append(s.streams, st)
	s.mu.Unlock()
	return st, nil
}

// Streams returns every stream opened so far.
func (s *StreamingSTT) Streams() []*Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Stream, len(s.streams))
	copy(out, s.streams)
	return out
}

// Opens counts open attempts that reached the provider, failed ones included.
func (s *StreamingSTT) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

type Stream struct {
	cfg    STTConfig
	mu     sync.Mutex
	events chan stt.Event
	closed bool
	// ended is set once events is closed, by Drop or Close.
	ended  bool
	pushed int
	bytes  int
	seq    int
}

func (s *Stream) Events() <-chan stt.Event { return s.events }

func (s *Stream) Push(ctx context.Context, chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return errorsx.New(errorsx.ReasonTransportFault, "mock stt: stream closed")
	}
	s.pushed++
	s.bytes += len(chunk)
	if s.cfg.Manual {
		return nil
	}
	if s.pushed%s.cfg.ChunksPerUtterance == 0 {
		s.emitLocked(stt.Event{Final: true, Text: s.cfg.Transcript})
	} else if s.cfg.InterimTranscript != "" {
		s.emitLocked(stt.Event{Text: s.cfg.InterimTranscript})
	}
	return nil
}

// Emit injects an event as if it came from upstream.
func (s *Stream) Emit(ev stt.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitLocked(ev)
}

func (s *Stream) emitLocked(ev stt.Event) {
	if s.ended {
		return
	}
	ev.Seq = s.seq
	s.seq++
	if ev.Final {
		s.seq = 0
	}
	select {
	case s.events <- ev:
	default:
	}
}

// Drop simulates the upstream connection dying: the feed ends but the
// stream still waits for Close.
func (s *Stream) Drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.end()
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.end()
	return nil
}

func (s *Stream) end() {
	if s.ended {
		return
	}
	s.ended = true
	close(s.events)
}

// Closed reports whether Close was called.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Received returns how many bytes were pushed.
func (s *Stream) Received() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes
}

// Transcriber is a batch transcriber with a fixed answer.
type Transcriber struct {
	Text string
	Err  error
}

func (t *Transcriber) Name() string { return "mock_batch_stt" }

func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, credential string) (string, error) {
	if strings.TrimSpace(credential) == "" {
		return "", errorsx.New(errorsx.ReasonMissingCredential, "mock stt: no key")
	}
	if t.Err != nil {
		return "", t.Err
	}
	return t.Text, nil
}
