package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/harunnryd/bytegate/pkg/adapters/tts"
	"github.com/harunnryd/bytegate/pkg/errorsx"
)

type TTSConfig struct {
	Audio []byte
	MIME  string
	Err   error
}

type Synthesizer struct {
	cfg   TTSConfig
	mu    sync.Mutex
	texts []string
}

func NewTTS(cfg TTSConfig) *Synthesizer {
	if len(cfg.Audio) == 0 {
		cfg.Audio = []byte("mock-audio")
	}
	if cfg.MIME == "" {
		cfg.MIME = "audio/mpeg"
	}
	return &Synthesizer{cfg: cfg}
}

func (s *Synthesizer) Name() string { return "mock_tts" }

func (s *Synthesizer) Synthesize(ctx context.Context, text, credential string) (tts.Audio, error) {
	if strings.TrimSpace(credential) == "" {
		return tts.Audio{}, errorsx.New(errorsx.ReasonMissingCredential, "mock tts: no key")
	}
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	if s.cfg.Err != nil {
		return tts.Audio{}, s.cfg.Err
	}
	return tts.Audio{Data: s.cfg.Audio, MIME: s.cfg.MIME}, nil
}

// Texts returns every text synthesized so far.
func (s *Synthesizer) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.texts))
	copy(out, s.texts)
	return out
}
