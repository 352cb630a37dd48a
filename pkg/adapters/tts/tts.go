package tts

import "context"

// Audio is a synthesized clip held in memory.
type Audio struct {
	Data []byte
	MIME string
}

// Synthesizer converts reply text to speech.
type Synthesizer interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	Synthesize(ctx context.Context, text, credential string) (Audio, error)
}
