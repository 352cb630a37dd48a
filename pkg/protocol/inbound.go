// Package protocol defines the JSON messages exchanged with a connected client.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Kind identifies an inbound message.
type Kind string

const (
	KindConfig     Kind = "config"
	KindSkill      Kind = "skill"
	KindFinal      Kind = "final"
	KindAudioChunk Kind = "audio_chunk"
	KindAudioInput Kind = "audio_input"
)

// Inbound is any decoded client message.
type Inbound interface {
	Kind() Kind
}

// Config merges provider keys into the session credentials.
type Config struct {
	Keys map[string]string
}

// Skill asks for a one-shot info lookup such as news or weather.
type Skill struct {
	Name string
}

// FinalText is a finished user utterance typed or recognised client-side.
type FinalText struct {
	Text string
}

// AudioChunk is a slice of a live microphone stream.
type AudioChunk struct {
	Data []byte
}

// AudioRecording is a complete recording to transcribe in one shot.
type AudioRecording struct {
	Data []byte
}

func (Config) Kind() Kind         { return KindConfig }
func (Skill) Kind() Kind          { return KindSkill }
func (FinalText) Kind() Kind      { return KindFinal }
func (AudioChunk) Kind() Kind     { return KindAudioChunk }
func (AudioRecording) Kind() Kind { return KindAudioInput }

// DecodeError describes a client message that could not be used.
// Fatal errors mean the frame was not JSON at all.
type DecodeError struct {
	Type    string
	Message string
	Fatal   bool
}

func (e *DecodeError) Error() string {
	if e.Type == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

type envelope struct {
	Type string          `json:"type"`
	Keys json.RawMessage `json:"keys"`
	Name string          `json:"name"`
	Text *string         `json:"text"`
	B64  string          `json:"b64"`
}

// DecodeClientMessage decodes one JSON text frame.
func DecodeClientMessage(raw []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &DecodeError{Message: "invalid json: " + err.Error(), Fatal: true}
	}
	kind := Kind(strings.TrimSpace(env.Type))
	switch kind {
	case KindConfig:
		return Config{Keys: decodeKeys(env.Keys)}, nil
	case KindSkill:
		name := strings.ToLower(strings.TrimSpace(env.Name))
		if name == "" {
			return nil, &DecodeError{Type: env.Type, Message: "name is required"}
		}
		return Skill{Name: name}, nil
	case KindFinal:
		if env.Text == nil {
			return nil, &DecodeError{Type: env.Type, Message: "text is required"}
		}
		return FinalText{Text: *env.Text}, nil
	case KindAudioChunk, KindAudioInput:
		data, err := base64.StdEncoding.DecodeString(env.B64)
		if err != nil {
			return nil, &DecodeError{Type: env.Type, Message: "b64 is not valid base64"}
		}
		if len(data) == 0 {
			return nil, &DecodeError{Type: env.Type, Message: "b64 is empty"}
		}
		if kind == KindAudioInput {
			return AudioRecording{Data: data}, nil
		}
		return AudioChunk{Data: data}, nil
	case "":
		return nil, &DecodeError{Message: "type is required"}
	default:
		return nil, &DecodeError{Type: env.Type, Message: "unsupported message type"}
	}
}

// DecodeBinary wraps a binary frame as an audio chunk.
func DecodeBinary(raw []byte) Inbound {
	data := make([]byte, len(raw))
	copy(data, raw)
	return AudioChunk{Data: data}
}

// keys may carry non-string values from loosely typed clients; anything that
// is not an object counts as no keys, so a config message is always accepted
func decodeKeys(raw json.RawMessage) map[string]string {
	var loose map[string]any
	if len(raw) == 0 || json.Unmarshal(raw, &loose) != nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(loose))
	for k, v := range loose {
		switch val := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = val
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}
