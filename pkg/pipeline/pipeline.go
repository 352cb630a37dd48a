// Package pipeline runs one turn from user input to an assistant reply and
// optional speech, and tracks the live sessions of the process.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/harunnryd/bytegate/pkg/adapters/info"
	"github.com/harunnryd/bytegate/pkg/adapters/stt"
	"github.com/harunnryd/bytegate/pkg/adapters/tts"
	"github.com/harunnryd/bytegate/pkg/credentials"
	"github.com/harunnryd/bytegate/pkg/errorsx"
	"github.com/harunnryd/bytegate/pkg/llm"
	"github.com/harunnryd/bytegate/pkg/logging"
	"github.com/harunnryd/bytegate/pkg/metrics"
	"github.com/harunnryd/bytegate/pkg/protocol"
	"github.com/harunnryd/bytegate/pkg/redact"
	"github.com/harunnryd/bytegate/pkg/resilience"
	"github.com/harunnryd/bytegate/pkg/turn"
)

type Config struct {
	SystemPrompt string
	// MaxHistory bounds the history sent to the model; stored history is not trimmed.
	MaxHistory      int
	WebAugmentation bool
	MaxSnippets     int
	// SpeechMaxChars caps the text handed to synthesis.
	SpeechMaxChars int

	LLMTimeout        time.Duration
	ClassifyTimeout   time.Duration
	TTSTimeout        time.Duration
	TranscribeTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.SystemPrompt) == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = 12
	}
	if c.MaxSnippets <= 0 || c.MaxSnippets > maxSnippets {
		c.MaxSnippets = maxSnippets
	}
	if c.SpeechMaxChars <= 0 {
		c.SpeechMaxChars = 3000
	}
	if c.LLMTimeout <= 0 {
		c.LLMTimeout = 30 * time.Second
	}
	if c.ClassifyTimeout <= 0 {
		c.ClassifyTimeout = 5 * time.Second
	}
	if c.TTSTimeout <= 0 {
		c.TTSTimeout = 30 * time.Second
	}
	if c.TranscribeTimeout <= 0 {
		c.TranscribeTimeout = 90 * time.Second
	}
	return c
}

// Options carries the collaborators of one session's pipeline. Only LLM is required.
type Options struct {
	SessionID   string
	LLM         llm.Adapter
	TTS         tts.Synthesizer
	Search      info.Searcher
	Transcriber stt.Transcriber
	Observer    metrics.Observer
	Logger      *slog.Logger
	// TTSBreaker skips synthesis after repeated rate limits. Nil uses a default breaker.
	TTSBreaker *resilience.CircuitBreaker
}

// Emitter receives outbound events in the order the turn produces them.
type Emitter func(protocol.Outbound)

// Result is what a finished turn hands back to the session loop.
type Result struct {
	Turn    turn.Turn
	History History
	// Err is the failure that shaped the reply, if any. The turn still completed.
	Err error
}

type Pipeline struct {
	cfg     Config
	opts    Options
	obs     metrics.Observer
	log     *slog.Logger
	breaker *resilience.CircuitBreaker
}

func New(cfg Config, opts Options) (*Pipeline, error) {
	if opts.LLM == nil {
		return nil, fmt.Errorf("pipeline: llm adapter is required")
	}
	base := opts.Logger
	if base == nil {
		base = slog.Default()
	}
	obs := opts.Observer
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	breaker := opts.TTSBreaker
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(3, 30*time.Second)
	}
	return &Pipeline{
		cfg:     cfg.withDefaults(),
		opts:    opts,
		obs:     obs,
		log:     logging.NewComponentLogger(base, "pipeline"),
		breaker: breaker,
	}, nil
}

// Run processes t against a snapshot of the session's credentials and history.
// Blank input produces no events and leaves history unchanged.
func (p *Pipeline) Run(ctx context.Context, t turn.Turn, creds credentials.Store, history History, emit Emitter) Result {
	res := Result{Turn: t, History: history}
	if t.Blank() {
		return res
	}
	started := time.Now()
	log := p.log.With("turn_id", t.ID, "source", t.Source.String())

	if t.Source == turn.SourceRecording {
		text, err := p.transcribe(ctx, t, creds)
		if err != nil {
			log.Warn("transcription_failed", "error", err)
			emit(protocol.SystemNotice(NoticeTranscriptionFailed))
			res.Err = err
			return res
		}
		t.Input = text
		t.Audio = nil
		res.Turn = t
	}

	input := strings.TrimSpace(t.Input)
	if input == "" {
		return res
	}
	log.Info("turn_started", "input", redact.Text(input))
	emit(protocol.UserEcho(t.ID, input))

	prompt := input
	if p.shouldSearch(ctx, input, creds.Get(credentials.LanguageModel)) {
		prompt = p.augment(ctx, log, input)
	}

	resp, err := p.generate(ctx, t.ID, prompt, creds.Get(credentials.LanguageModel), history)
	if err != nil {
		log.Warn("llm_failed", "reason", errorsx.Reason(err), "error", err)
		t.Reply = Fallback(err)
		res.Err = err
	} else {
		t.Reply = strings.TrimSpace(resp.Text)
		res.History = history.Append(llm.Exchange(input, t.Reply)...)
	}
	emit(protocol.AssistantReply(t.ID, t.Reply))

	if audio, ok := p.speak(ctx, log, t, creds); ok {
		t.Speech = audio.Data
		emit(protocol.AudioPayload(t.ID, audio.Data, audio.MIME))
	}

	res.Turn = t
	metrics.Latency(p.obs, metrics.EventTurnLatency, time.Since(started), p.tags(t.ID, ""))
	log.Info("turn_completed", "duration_ms", time.Since(started).Milliseconds(), "history", len(res.History))
	return res
}

func (p *Pipeline) transcribe(ctx context.Context, t turn.Turn, creds credentials.Store) (string, error) {
	if p.opts.Transcriber == nil {
		return "", errorsx.New(errorsx.ReasonTranscriptionFailure, "no batch transcriber configured")
	}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.TranscribeTimeout)
	defer cancel()
	text, err := p.opts.Transcriber.Transcribe(ctx, t.Audio, creds.Get(credentials.SpeechToText))
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errorsx.New(errorsx.ReasonTranscriptionFailure, "empty transcript")
	}
	metrics.Mark(p.obs, metrics.EventSTTFinal, p.tags(t.ID, p.opts.Transcriber.Name()), nil)
	return text, nil
}

// shouldSearch asks the model whether the query needs fresh web results.
// Any fault counts as "no".
func (p *Pipeline) shouldSearch(ctx context.Context, query, credential string) bool {
	if !p.cfg.WebAugmentation || p.opts.Search == nil || strings.TrimSpace(credential) == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ClassifyTimeout)
	defer cancel()
	resp, err := p.opts.LLM.Generate(ctx, llm.Request{Prompt: classificationPrompt(query), MaxTokens: 3}, credential)
	if err != nil {
		p.log.Debug("classification_failed", "error", err)
		return false
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(resp.Text)), "yes")
}

func (p *Pipeline) augment(ctx context.Context, log *slog.Logger, query string) string {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.LLMTimeout)
	defer cancel()
	snippets, err := p.opts.Search.Search(ctx, query, p.cfg.MaxSnippets)
	if err != nil {
		log.Warn("search_failed", "reason", errorsx.Reason(err), "error", err)
		return query
	}
	if len(snippets) > p.cfg.MaxSnippets {
		snippets = snippets[:p.cfg.MaxSnippets]
	}
	if len(snippets) == 0 {
		return query
	}
	log.Debug("search_augmented", "snippets", len(snippets))
	return augmentedPrompt(query, snippets)
}

func (p *Pipeline) generate(ctx context.Context, turnID, prompt, credential string, history History) (llm.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.LLMTimeout)
	defer cancel()
	started := time.Now()
	resp, err := p.opts.LLM.Generate(ctx, llm.Request{
		System:  p.cfg.SystemPrompt,
		Prompt:  prompt,
		History: history.Window(p.cfg.MaxHistory),
	}, credential)
	tags := p.tags(turnID, p.opts.LLM.Name())
	metrics.Latency(p.obs, metrics.EventLLMLatency, time.Since(started), tags)
	if err != nil {
		return llm.Response{}, err
	}
	if strings.TrimSpace(resp.Text) == "" {
		return llm.Response{}, errorsx.New(errorsx.ReasonMalformedResponse, "%s: empty reply", p.opts.LLM.Name())
	}
	metrics.Mark(p.obs, metrics.EventLLMUsage, tags, map[string]any{
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
	})
	return resp, nil
}

func (p *Pipeline) speak(ctx context.Context, log *slog.Logger, t turn.Turn, creds credentials.Store) (tts.Audio, bool) {
	if p.opts.TTS == nil || !creds.Has(credentials.TextToSpeech) || strings.TrimSpace(t.Reply) == "" {
		return tts.Audio{}, false
	}
	if !p.breaker.Allow() {
		log.Warn("tts_skipped", "reason", "rate_limited", "breaker", p.breaker.State().String())
		return tts.Audio{}, false
	}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.TTSTimeout)
	defer cancel()
	text := spokenText(t.Reply, p.cfg.SpeechMaxChars)
	if text == "" {
		return tts.Audio{}, false
	}
	started := time.Now()
	audio, err := p.opts.TTS.Synthesize(ctx, text, creds.Get(credentials.TextToSpeech))
	if err != nil {
		p.breaker.OnError(err)
		log.Warn("tts_failed", "reason", errorsx.Reason(err), "error", err)
		return tts.Audio{}, false
	}
	p.breaker.OnSuccess()
	if len(audio.Data) == 0 {
		log.Warn("tts_failed", "reason", errorsx.ReasonMalformedResponse)
		return tts.Audio{}, false
	}
	if audio.MIME == "" {
		audio.MIME = "audio/mpeg"
	}
	metrics.RecordLatency(p.obs, metrics.EventTTSLatency, time.Since(started), p.tags(t.ID, p.opts.TTS.Name()), map[string]any{"bytes": len(audio.Data), "chars": len(text)})
	return audio, true
}

func (p *Pipeline) tags(turnID, provider string) map[string]string {
	tags := map[string]string{metrics.TagSessionID: p.opts.SessionID, metrics.TagTurnID: turnID}
	if provider != "" {
		tags[metrics.TagProvider] = provider
	}
	return tags
}
