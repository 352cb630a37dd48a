package protocol

import (
	"encoding/base64"
	"encoding/json"
)

// OutboundType identifies an outbound event.
type OutboundType string

const (
	TypeSystem    OutboundType = "system"
	TypeUser      OutboundType = "user"
	TypeAssistant OutboundType = "assistant"
	TypeAudio     OutboundType = "audio"
	TypePartial   OutboundType = "partial"
)

// Outbound is one event delivered to the client.
type Outbound struct {
	Type OutboundType `json:"type"`
	Text string       `json:"text,omitempty"`
	B64  string       `json:"b64,omitempty"`
	MIME string       `json:"mime,omitempty"`
	// TurnID groups the events of one turn; empty for session-level events.
	TurnID string `json:"turn_id,omitempty"`
}

func SystemNotice(text string) Outbound {
	return Outbound{Type: TypeSystem, Text: text}
}

func UserEcho(turnID, text string) Outbound {
	return Outbound{Type: TypeUser, Text: text, TurnID: turnID}
}

func AssistantReply(turnID, text string) Outbound {
	return Outbound{Type: TypeAssistant, Text: text, TurnID: turnID}
}

// AudioPayload carries synthesized speech inline as base64.
func AudioPayload(turnID string, audio []byte, mime string) Outbound {
	return Outbound{
		Type:   TypeAudio,
		B64:    base64.StdEncoding.EncodeToString(audio),
		MIME:   mime,
		TurnID: turnID,
	}
}

func PartialTranscript(text string) Outbound {
	return Outbound{Type: TypePartial, Text: text}
}

// Encode renders the event as a JSON text frame.
func (o Outbound) Encode() ([]byte, error) {
	return json.Marshal(o)
}
