package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeClientMessageKinds(t *testing.T) {
	cases := []struct {
		raw  string
		want Kind
	}{
		{`{"type":"config","keys":{"gemini":"k"}}`, KindConfig},
		{`{"type":"skill","name":"Weather"}`, KindSkill},
		{`{"type":"final","text":"hello"}`, KindFinal},
		{`{"type":"audio_chunk","b64":"AAEC"}`, KindAudioChunk},
		{`{"type":"audio_input","b64":"AAEC"}`, KindAudioInput},
	}
	for _, tc := range cases {
		msg, err := DecodeClientMessage([]byte(tc.raw))
		if err != nil {
			t.Fatalf("decode %s: %v", tc.raw, err)
		}
		if msg.Kind() != tc.want {
			t.Fatalf("decode %s: expected %s, got %s", tc.raw, tc.want, msg.Kind())
		}
	}
}

func TestDecodeSkillNormalizesName(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"type":"skill","name":" News "}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.(Skill).Name != "news" {
		t.Fatalf("unexpected name %q", msg.(Skill).Name)
	}
}

func TestDecodeConfigLooseValues(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"type":"config","keys":{"news":null,"weather":42}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	keys := msg.(Config).Keys
	if keys["news"] != "" || keys["weather"] != "42" {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestDecodeConfigNonObjectKeys(t *testing.T) {
	for _, raw := range []string{`{"type":"config","keys":["gemini"]}`, `{"type":"config","keys":"k"}`, `{"type":"config"}`} {
		msg, err := DecodeClientMessage([]byte(raw))
		if err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
		if keys := msg.(Config).Keys; keys == nil || len(keys) != 0 {
			t.Fatalf("decode %s: expected empty keys, got %v", raw, keys)
		}
	}
}

func TestDecodeInvalidJSONIsFatal(t *testing.T) {
	_, err := DecodeClientMessage([]byte(`{not json`))
	var de *DecodeError
	if !errors.As(err, &de) || !de.Fatal {
		t.Fatalf("expected fatal decode error, got %v", err)
	}
}

func TestDecodeUnknownTypeIsNotFatal(t *testing.T) {
	_, err := DecodeClientMessage([]byte(`{"type":"dance"}`))
	var de *DecodeError
	if !errors.As(err, &de) || de.Fatal {
		t.Fatalf("expected non-fatal decode error, got %v", err)
	}
	_, err = DecodeClientMessage([]byte(`{"type":"final"}`))
	if !errors.As(err, &de) || de.Fatal {
		t.Fatalf("expected non-fatal error for missing text, got %v", err)
	}
}

func TestDecodeBinaryCopies(t *testing.T) {
	raw := []byte{1, 2, 3}
	msg := DecodeBinary(raw).(AudioChunk)
	raw[0] = 9
	if msg.Data[0] != 1 {
		t.Fatalf("expected chunk to own its bytes")
	}
}

func TestAudioPayloadEncodesBase64(t *testing.T) {
	raw, err := AudioPayload("t1", []byte("mp3"), "audio/mpeg").Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["type"] != "audio" || got["b64"] != "bXAz" || got["mime"] != "audio/mpeg" {
		t.Fatalf("unexpected payload %v", got)
	}
}

func TestSystemNoticeOmitsTurnID(t *testing.T) {
	raw, _ := SystemNotice("✅ Config saved.").Encode()
	if string(raw) != `{"type":"system","text":"✅ Config saved."}` {
		t.Fatalf("unexpected encoding %s", raw)
	}
}
