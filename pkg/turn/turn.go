// Package turn models one user-utterance-to-reply cycle and the per-session
// slot that keeps a single cycle in flight.
package turn

import (
	"strings"

	"github.com/google/uuid"
)

// Source says where a turn's input came from.
type Source int

const (
	SourceText Source = iota
	SourceVoice
	// SourceRecording is a whole recording still waiting for transcription.
	SourceRecording
)

func (s Source) String() string {
	switch s {
	case SourceText:
		return "text"
	case SourceVoice:
		return "voice"
	case SourceRecording:
		return "recording"
	default:
		return "unknown"
	}
}

type Turn struct {
	ID     string
	Source Source
	Input  string
	// Audio holds the recording for SourceRecording turns.
	Audio []byte
	Reply string
	// Speech is the synthesized reply; nil when no audio was produced.
	Speech []byte
}

func New(source Source, input string) Turn {
	return Turn{ID: uuid.NewString(), Source: source, Input: input}
}

func NewRecording(audio []byte) Turn {
	return Turn{ID: uuid.NewString(), Source: SourceRecording, Audio: audio}
}

// Blank reports whether the turn has nothing to process.
func (t Turn) Blank() bool {
	if t.Source == SourceRecording {
		return len(t.Audio) == 0
	}
	return strings.TrimSpace(t.Input) == ""
}
