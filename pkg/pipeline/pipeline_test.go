package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/harunnryd/bytegate/pkg/adapters/info"
	"github.com/harunnryd/bytegate/pkg/credentials"
	"github.com/harunnryd/bytegate/pkg/errorsx"
	"github.com/harunnryd/bytegate/pkg/llm"
	"github.com/harunnryd/bytegate/pkg/metrics"
	"github.com/harunnryd/bytegate/pkg/protocol"
	"github.com/harunnryd/bytegate/pkg/providers/mock"
	"github.com/harunnryd/bytegate/pkg/resilience"
	"github.com/harunnryd/bytegate/pkg/turn"
)

type recorder struct {
	mu     sync.Mutex
	events []protocol.Outbound
}

func (r *recorder) emit(ev protocol.Outbound) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = string(ev.Type)
	}
	return out
}

func newPipeline(t *testing.T, cfg Config, opts Options) *Pipeline {
	t.Helper()
	p, err := New(cfg, opts)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p
}

func llmOnly() credentials.Store {
	return credentials.Store{LanguageModel: "llm-key"}
}

func TestRunAppendsExchangeOnSuccess(t *testing.T) {
	p := newPipeline(t, Config{}, Options{LLM: mock.NewLLMAdapter(mock.LLMConfig{ResponseText: "Hi there."})})
	rec := &recorder{}
	res := p.Run(context.Background(), turn.New(turn.SourceText, "hello"), llmOnly(), nil, rec.emit)

	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(res.History) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(res.History))
	}
	if res.History[0] != (llm.Message{Role: llm.RoleUser, Text: "hello"}) || res.History[1].Text != "Hi there." {
		t.Fatalf("unexpected history: %+v", res.History)
	}
	if got := strings.Join(rec.types(), ","); got != "user,assistant" {
		t.Fatalf("unexpected events: %s", got)
	}
}

func TestRunBlankInputIsNoop(t *testing.T) {
	adapter := mock.NewLLMAdapter(mock.LLMConfig{})
	p := newPipeline(t, Config{}, Options{LLM: adapter})
	rec := &recorder{}
	history := History{{Role: llm.RoleUser, Text: "a"}, {Role: llm.RoleModel, Text: "b"}}
	res := p.Run(context.Background(), turn.New(turn.SourceText, "   \n\t"), llmOnly(), history, rec.emit)

	if len(rec.types()) != 0 {
		t.Fatalf("expected no events, got %v", rec.types())
	}
	if len(adapter.Calls()) != 0 {
		t.Fatalf("expected no llm call")
	}
	if len(res.History) != 2 {
		t.Fatalf("history changed")
	}
}

func TestRunFallbackLeavesHistoryUnchanged(t *testing.T) {
	cases := []struct {
		name  string
		creds credentials.Store
		err   error
		want  string
	}{
		{name: "missing key", creds: credentials.Store{}, want: ReplyMissingLLMKey},
		{name: "transport", creds: llmOnly(), err: errorsx.New(errorsx.ReasonTransportFault, "down"), want: "⚠️ LLM error (network fault)."},
		{name: "rejected", creds: llmOnly(), err: errorsx.New(errorsx.ReasonUpstreamRejected, "401"), want: "⚠️ LLM error (request rejected)."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newPipeline(t, Config{}, Options{LLM: mock.NewLLMAdapter(mock.LLMConfig{Err: tc.err})})
			rec := &recorder{}
			res := p.Run(context.Background(), turn.New(turn.SourceText, "hello"), tc.creds, History{}, rec.emit)
			if res.Err == nil {
				t.Fatalf("expected error")
			}
			if len(res.History) != 0 {
				t.Fatalf("history grew on failure")
			}
			if res.Turn.Reply != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, res.Turn.Reply)
			}
		})
	}
}

func TestRunEmitsReplyBeforeAudio(t *testing.T) {
	synth := mock.NewTTS(mock.TTSConfig{Audio: []byte("mp3"), MIME: "audio/mpeg"})
	obs := metrics.NewMemoryObserver()
	p := newPipeline(t, Config{}, Options{
		SessionID: "s1",
		LLM:       mock.NewLLMAdapter(mock.LLMConfig{ResponseText: "Sunny."}),
		TTS:       synth,
		Observer:  obs,
	})
	rec := &recorder{}
	creds := credentials.Store{LanguageModel: "k", TextToSpeech: "t"}
	res := p.Run(context.Background(), turn.New(turn.SourceVoice, "weather?"), creds, nil, rec.emit)

	if got := strings.Join(rec.types(), ","); got != "user,assistant,audio" {
		t.Fatalf("unexpected events: %s", got)
	}
	if audio := rec.events[2]; audio.B64 == "" || audio.MIME != "audio/mpeg" {
		t.Fatalf("unexpected audio payload: %+v", audio)
	}
	if string(res.Turn.Speech) != "mp3" {
		t.Fatalf("speech not recorded on turn")
	}
	if texts := synth.Texts(); len(texts) != 1 || texts[0] != "Sunny." {
		t.Fatalf("unexpected synthesized texts: %v", texts)
	}
	if len(obs.Named(metrics.EventTTSLatency)) != 1 || len(obs.Named(metrics.EventTurnLatency)) != 1 {
		t.Fatalf("missing stage metrics: %+v", obs.Events())
	}
}

func TestRunWithoutTTSKeySkipsAudio(t *testing.T) {
	synth := mock.NewTTS(mock.TTSConfig{})
	p := newPipeline(t, Config{}, Options{LLM: mock.NewLLMAdapter(mock.LLMConfig{}), TTS: synth})
	rec := &recorder{}
	p.Run(context.Background(), turn.New(turn.SourceText, "hello"), llmOnly(), nil, rec.emit)
	if got := strings.Join(rec.types(), ","); got != "user,assistant" {
		t.Fatalf("unexpected events: %s", got)
	}
	if len(synth.Texts()) != 0 {
		t.Fatalf("tts called without key")
	}
}

func TestRunTTSFailureIsLogOnly(t *testing.T) {
	synth := mock.NewTTS(mock.TTSConfig{Err: errorsx.New(errorsx.ReasonTransportFault, "down")})
	p := newPipeline(t, Config{}, Options{LLM: mock.NewLLMAdapter(mock.LLMConfig{}), TTS: synth})
	rec := &recorder{}
	res := p.Run(context.Background(), turn.New(turn.SourceText, "hello"), credentials.Store{LanguageModel: "k", TextToSpeech: "t"}, nil, rec.emit)
	if got := strings.Join(rec.types(), ","); got != "user,assistant" {
		t.Fatalf("unexpected events: %s", got)
	}
	if res.Err != nil || len(res.History) != 2 {
		t.Fatalf("tts failure leaked into result: %+v", res)
	}
}

func TestRunSkipsTTSWhileBreakerOpen(t *testing.T) {
	synth := mock.NewTTS(mock.TTSConfig{Err: resilience.RateLimitError{Provider: "mock"}})
	breaker := resilience.NewCircuitBreaker(1, 0)
	p := newPipeline(t, Config{}, Options{LLM: mock.NewLLMAdapter(mock.LLMConfig{}), TTS: synth, TTSBreaker: breaker})
	creds := credentials.Store{LanguageModel: "k", TextToSpeech: "t"}
	p.Run(context.Background(), turn.New(turn.SourceText, "one"), creds, nil, func(protocol.Outbound) {})
	p.Run(context.Background(), turn.New(turn.SourceText, "two"), creds, nil, func(protocol.Outbound) {})
	if got := len(synth.Texts()); got != 1 {
		t.Fatalf("expected one synth attempt, got %d", got)
	}
}

func TestRunSendsOnlyHistoryWindow(t *testing.T) {
	adapter := mock.NewLLMAdapter(mock.LLMConfig{})
	p := newPipeline(t, Config{MaxHistory: 4}, Options{LLM: adapter})
	var history History
	for i := 0; i < 5; i++ {
		history = history.Append(llm.Exchange("q", "a")...)
	}
	res := p.Run(context.Background(), turn.New(turn.SourceText, "next"), llmOnly(), history, func(protocol.Outbound) {})
	calls := adapter.Calls()
	if len(calls) != 1 || len(calls[0].History) != 4 {
		t.Fatalf("expected 4 messages in window, got %+v", calls)
	}
	if calls[0].System != DefaultSystemPrompt {
		t.Fatalf("persona not sent")
	}
	if len(res.History) != 12 {
		t.Fatalf("stored history trimmed: %d", len(res.History))
	}
}

func TestRunAugmentsWithCappedSnippets(t *testing.T) {
	var snippets []info.Snippet
	for i := 0; i < 8; i++ {
		snippets = append(snippets, info.Snippet{Text: "s" + string(rune('0'+i))})
	}
	search := &mock.Searcher{Snippets: snippets}
	adapter := mock.NewLLMAdapter(mock.LLMConfig{Classify: "Yes."})
	p := newPipeline(t, Config{WebAugmentation: true, MaxSnippets: 9}, Options{LLM: adapter, Search: search})
	res := p.Run(context.Background(), turn.New(turn.SourceText, "latest go release"), llmOnly(), nil, func(protocol.Outbound) {})

	calls := adapter.Calls()
	if len(calls) != 2 || !mock.IsClassification(calls[0].Prompt) {
		t.Fatalf("expected classification then answer, got %+v", calls)
	}
	want := "Use the search results below to answer concisely. Query: latest go release\n\nContext:\ns0\ns1\ns2\ns3\ns4"
	if calls[1].Prompt != want {
		t.Fatalf("unexpected prompt:\n%s", calls[1].Prompt)
	}
	if res.History[0].Text != "latest go release" {
		t.Fatalf("history should keep the raw input, got %q", res.History[0].Text)
	}
}

func TestRunClassificationFaultMeansNoAugmentation(t *testing.T) {
	search := &mock.Searcher{Snippets: []info.Snippet{{Text: "x"}}}
	adapter := mock.NewLLMAdapter(mock.LLMConfig{ClassifyErr: errorsx.New(errorsx.ReasonTransportFault, "timeout")})
	p := newPipeline(t, Config{WebAugmentation: true}, Options{LLM: adapter, Search: search})
	res := p.Run(context.Background(), turn.New(turn.SourceText, "hi"), llmOnly(), nil, func(protocol.Outbound) {})
	if len(search.Queries) != 0 {
		t.Fatalf("search ran after classification fault")
	}
	calls := adapter.Calls()
	if calls[len(calls)-1].Prompt != "hi" || res.Err != nil {
		t.Fatalf("expected raw prompt, got %+v", calls)
	}
}

func TestRunSearchFaultUsesRawInput(t *testing.T) {
	search := &mock.Searcher{Err: errorsx.New(errorsx.ReasonUpstreamRejected, "403")}
	adapter := mock.NewLLMAdapter(mock.LLMConfig{Classify: "yes"})
	p := newPipeline(t, Config{WebAugmentation: true}, Options{LLM: adapter, Search: search})
	p.Run(context.Background(), turn.New(turn.SourceText, "news today"), llmOnly(), nil, func(protocol.Outbound) {})
	calls := adapter.Calls()
	if calls[len(calls)-1].Prompt != "news today" {
		t.Fatalf("expected raw prompt, got %q", calls[len(calls)-1].Prompt)
	}
}

func TestRunRecordingTranscribesFirst(t *testing.T) {
	adapter := mock.NewLLMAdapter(mock.LLMConfig{Echo: true})
	p := newPipeline(t, Config{}, Options{LLM: adapter, Transcriber: &mock.Transcriber{Text: " what time is it "}})
	rec := &recorder{}
	creds := credentials.Store{LanguageModel: "k", SpeechToText: "s"}
	res := p.Run(context.Background(), turn.NewRecording([]byte{1, 2, 3}), creds, nil, rec.emit)

	if got := strings.Join(rec.types(), ","); got != "user,assistant" {
		t.Fatalf("unexpected events: %s", got)
	}
	if rec.events[0].Text != "what time is it" || rec.events[1].Text != "re: what time is it" {
		t.Fatalf("unexpected texts: %+v", rec.events)
	}
	if res.Turn.Audio != nil {
		t.Fatalf("recording audio kept after transcription")
	}
}

func TestRunRecordingFailureEmitsNotice(t *testing.T) {
	adapter := mock.NewLLMAdapter(mock.LLMConfig{})
	p := newPipeline(t, Config{}, Options{LLM: adapter, Transcriber: &mock.Transcriber{Err: errorsx.New(errorsx.ReasonTranscriptionFailure, "error status")}})
	rec := &recorder{}
	res := p.Run(context.Background(), turn.NewRecording([]byte{1}), credentials.Store{LanguageModel: "k", SpeechToText: "s"}, nil, rec.emit)
	if len(rec.events) != 1 || rec.events[0].Type != protocol.TypeSystem || rec.events[0].Text != NoticeTranscriptionFailed {
		t.Fatalf("unexpected events: %+v", rec.events)
	}
	if !errorsx.HasReason(res.Err, errorsx.ReasonTranscriptionFailure) || len(adapter.Calls()) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestHistoryWindowStartsOnUser(t *testing.T) {
	h := History{}.Append(llm.Exchange("a", "b")...).Append(llm.Exchange("c", "d")...)
	w := h.Window(3)
	if len(w) != 2 || w[0].Text != "c" {
		t.Fatalf("unexpected window: %+v", w)
	}
	if len(h.Window(0)) != 4 {
		t.Fatalf("zero window should return everything")
	}
}
