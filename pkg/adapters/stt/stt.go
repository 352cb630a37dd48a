package stt

import "context"

// Event is one transcript update from a live stream.
// Partial events are superseded by later events of the same utterance;
// a final event closes the utterance.
type Event struct {
	Final bool
	Text  string
	// Seq orders events within one utterance and restarts after a final.
	Seq int
}

// StreamingSTT opens live recognition streams for a vendor.
type StreamingSTT interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Open dials the vendor with the caller's credential.
	Open(ctx context.Context, credential string) (Stream, error)
}

// Stream is one live recognition session. It is not restartable once closed.
type Stream interface {
	// Push forwards raw audio without waiting for transcripts.
	Push(ctx context.Context, chunk []byte) error
	// Events yields transcripts until the stream ends. The channel is closed
	// after Close or when the upstream connection drops.
	Events() <-chan Event
	// Close releases the upstream connection. It is safe to call more than once.
	Close() error
}

// Transcriber turns a complete recording into text in one request.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, audio []byte, credential string) (string, error)
}
