// Package credentials holds the caller-supplied provider keys of one connection.
package credentials

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/harunnryd/bytegate/pkg/redact"
)

// Key names one slot of the fixed credential set.
type Key string

const (
	SpeechToText  Key = "speech-to-text"
	LanguageModel Key = "language-model"
	TextToSpeech  Key = "text-to-speech"
	News          Key = "news"
	Weather       Key = "weather"
)

// Keys lists every recognized key in a stable order.
var Keys = []Key{SpeechToText, LanguageModel, TextToSpeech, News, Weather}

// wire names accepted in configuration messages
var aliases = map[string]Key{
	"speech-to-text": SpeechToText,
	"stt":            SpeechToText,
	"assembly":       SpeechToText,
	"language-model": LanguageModel,
	"llm":            LanguageModel,
	"gemini":         LanguageModel,
	"text-to-speech": TextToSpeech,
	"tts":            TextToSpeech,
	"murf":           TextToSpeech,
	"news":           News,
	"weather":        Weather,
}

// Lookup resolves a wire name to a Key.
func Lookup(name string) (Key, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "_", "-")
	k, ok := aliases[name]
	return k, ok
}

// Store is the credential map of one session. The zero value has every key unset.
// It is a value type; copies are independent snapshots.
type Store struct {
	SpeechToText  string
	LanguageModel string
	TextToSpeech  string
	News          string
	Weather       string
}

func (s *Store) slot(k Key) *string {
	switch k {
	case SpeechToText:
		return &s.SpeechToText
	case LanguageModel:
		return &s.LanguageModel
	case TextToSpeech:
		return &s.TextToSpeech
	case News:
		return &s.News
	case Weather:
		return &s.Weather
	}
	return nil
}

// Get returns the value stored for k, or "" for an unknown key.
func (s Store) Get(k Key) string {
	if p := s.slot(k); p != nil {
		return *p
	}
	return ""
}

// Set stores v under k. It reports false for an unknown key.
func (s *Store) Set(k Key, v string) bool {
	p := s.slot(k)
	if p == nil {
		return false
	}
	*p = strings.TrimSpace(v)
	return true
}

// Apply merges a configuration message. Entries are applied in sorted wire-name
// order so that two aliases of the same key resolve deterministically.
// Unknown names are returned and otherwise ignored.
func (s *Store) Apply(keys map[string]string) (applied []Key, ignored []string) {
	names := make([]string, 0, len(keys))
	for name := range keys {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		k, ok := Lookup(name)
		if !ok {
			ignored = append(ignored, name)
			continue
		}
		s.Set(k, keys[name])
		applied = append(applied, k)
	}
	return applied, ignored
}

// WithFallback fills unset keys from fallback. Caller-supplied values always win.
func (s Store) WithFallback(fallback Store) Store {
	out := s
	for _, k := range Keys {
		if out.Get(k) == "" {
			out.Set(k, fallback.Get(k))
		}
	}
	return out
}

// Has reports whether k carries a non-empty value.
func (s Store) Has(k Key) bool {
	return s.Get(k) != ""
}

// LogValue masks every secret so a Store can be logged safely.
func (s Store) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(Keys))
	for _, k := range Keys {
		attrs = append(attrs, slog.String(string(k), redact.Secret(s.Get(k))))
	}
	return slog.GroupValue(attrs...)
}
