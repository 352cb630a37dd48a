// Package session runs one client connection: it decodes inbound messages,
// drives speech recognition, sequences turns and writes ordered replies.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/harunnryd/bytegate/pkg/adapters/stt"
	"github.com/harunnryd/bytegate/pkg/credentials"
	"github.com/harunnryd/bytegate/pkg/errorsx"
	"github.com/harunnryd/bytegate/pkg/logging"
	"github.com/harunnryd/bytegate/pkg/metrics"
	"github.com/harunnryd/bytegate/pkg/pipeline"
	"github.com/harunnryd/bytegate/pkg/protocol"
	"github.com/harunnryd/bytegate/pkg/redact"
	"github.com/harunnryd/bytegate/pkg/skills"
	"github.com/harunnryd/bytegate/pkg/transcription"
	"github.com/harunnryd/bytegate/pkg/transports"
	"github.com/harunnryd/bytegate/pkg/turn"
)

// System notices sent by the session itself.
const (
	NoticeConfigSaved   = "✅ Config saved."
	NoticeSTTMissingKey = "❗ No speech-to-text key provided."
	NoticeSTTFailed     = "⚠️ STT failed"
	NoticeSTTDropped    = "⚠️ Speech stream closed. Keep talking to reconnect."
	NoticeBusy          = "⚠️ Still working on earlier messages."
)

type Config struct {
	// ForwardPartial sends interim transcripts to the client as "partial" events.
	ForwardPartial bool
	// TurnQueue is how many turns may wait behind the active one.
	TurnQueue      int
	OutboundBuffer int
	WriteTimeout   time.Duration
	PingInterval   time.Duration
}

// TurnRunner executes one turn. *pipeline.Pipeline implements it.
type TurnRunner interface {
	Run(ctx context.Context, t turn.Turn, creds credentials.Store, history pipeline.History, emit pipeline.Emitter) pipeline.Result
}

// SkillInvoker serves skill messages. *skills.Dispatcher implements it.
type SkillInvoker interface {
	Invoke(ctx context.Context, req skills.Request) (string, bool)
}

type Deps struct {
	Pipeline TurnRunner
	Streamer stt.StreamingSTT
	Skills   SkillInvoker
	// Fallback fills credentials the client did not supply.
	Fallback  credentials.Store
	Registry  *pipeline.SessionRegistry
	Observer  metrics.Observer
	Logger    *slog.Logger
	OnPartial func(stt.Event)
}

// Session is the state of one connection. Everything below the mutex-free
// fields is owned by the event loop goroutine.
type Session struct {
	id   string
	conn transports.Conn
	cfg  Config
	deps Deps
	log  *slog.Logger
	obs  metrics.Observer

	ctx    context.Context
	cancel context.CancelFunc

	out         chan outboundFrame
	completions chan pipeline.Result
	workers     sync.WaitGroup

	creds       credentials.Store
	history     pipeline.History
	slot        *turn.Slot
	ctrl        *transcription.Controller
	sttNotified bool
}

func New(id string, conn transports.Conn, cfg Config, deps Deps) (*Session, error) {
	if deps.Pipeline == nil {
		return nil, errors.New("session: pipeline is required")
	}
	if cfg.OutboundBuffer <= 0 {
		cfg.OutboundBuffer = 64
	}
	base := deps.Logger
	if base == nil {
		base = slog.Default()
	}
	log := logging.NewComponentLogger(base, "session").With("session_id", id)
	obs := deps.Observer
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:          id,
		conn:        conn,
		cfg:         cfg,
		deps:        deps,
		log:         log,
		obs:         obs,
		ctx:         ctx,
		cancel:      cancel,
		out:         make(chan outboundFrame, cfg.OutboundBuffer),
		completions: make(chan pipeline.Result, 1),
		slot:        turn.NewSlot(cfg.TurnQueue),
	}
	s.ctrl = transcription.NewController(deps.Streamer, transcription.Options{
		OnPartial:     deps.OnPartial,
		OnStateChange: s.onSTTState,
		Logger:        log,
	})
	return s, nil
}

func (s *Session) ID() string { return s.id }

// Close ends the session. Run returns once the goroutines have stopped.
func (s *Session) Close() error {
	s.cancel()
	return nil
}

// Run serves the connection until the client leaves, parent ends or Close is
// called. A clean disconnect returns nil.
func (s *Session) Run(parent context.Context) error {
	stop := context.AfterFunc(parent, s.cancel)
	defer stop()
	defer s.cancel()

	if s.deps.Registry != nil {
		if err := s.deps.Registry.Register(s); err != nil {
			_ = s.conn.Close()
			return err
		}
		defer s.deps.Registry.Remove(s.id)
	}

	started := time.Now()
	s.log.Info("session_started")
	metrics.Mark(s.obs, metrics.EventSessionStarted, s.tags(), nil)

	inbound := make(chan protocol.Inbound, 32)
	writer := &outboundWriter{
		conn:         s.conn,
		frames:       s.out,
		pingInterval: s.cfg.PingInterval,
		writeTimeout: s.cfg.WriteTimeout,
	}
	g, ctx := errgroup.WithContext(s.ctx)
	g.Go(func() error { return s.readLoop(ctx, inbound) })
	g.Go(func() error {
		defer s.conn.Close()
		return writer.Run(ctx)
	})
	g.Go(func() error { return s.loop(ctx, inbound) })
	err := g.Wait()

	s.teardown()
	if errorsx.HasReason(err, errorsx.ReasonTransportClosed) {
		err = nil
	}
	if err != nil {
		s.log.Warn("session_failed", "reason", errorsx.Reason(err), "error", err)
	}
	s.log.Info("session_closed", "duration_ms", time.Since(started).Milliseconds(), "turns", len(s.history)/2)
	metrics.Mark(s.obs, metrics.EventSessionClosed, s.tags(), nil)
	return err
}

func (s *Session) teardown() {
	s.cancel()
	_ = s.ctrl.Close()
	s.slot.Reset()
	s.workers.Wait()
}

func (s *Session) readLoop(ctx context.Context, out chan<- protocol.Inbound) error {
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return errTransportClosed(err)
		}
		var msg protocol.Inbound
		switch messageType {
		case transports.TextMessage:
			msg, err = protocol.DecodeClientMessage(data)
			if err != nil {
				var de *protocol.DecodeError
				if errors.As(err, &de) && de.Fatal {
					s.log.Warn("protocol_violation", "error", err)
					return errorsx.Wrap(err, errorsx.ReasonProtocolViolation)
				}
				s.log.Warn("inbound_ignored", "error", err)
				continue
			}
		case transports.BinaryMessage:
			msg = protocol.DecodeBinary(data)
		default:
			continue
		}
		select {
		case out <- msg:
		case <-ctx.Done():
			return nil
		}
	}
}

// loop is the single dispatch goroutine. Only it touches creds, history, slot and ctrl.
func (s *Session) loop(ctx context.Context, inbound <-chan protocol.Inbound) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-inbound:
			s.safely("dispatch", func() { s.dispatch(ctx, msg) })
		case res := <-s.ctrl.Opened():
			s.safely("stt_open", func() { s.onSTTOpened(ctx, res) })
		case ev, ok := <-s.ctrl.Events():
			s.safely("transcript", func() { s.onTranscript(ctx, ev, ok) })
		case res := <-s.completions:
			s.safely("turn_done", func() { s.onTurnDone(ctx, res) })
		}
	}
}

func (s *Session) dispatch(ctx context.Context, msg protocol.Inbound) {
	switch m := msg.(type) {
	case protocol.Config:
		applied, ignored := s.creds.Apply(m.Keys)
		if len(ignored) > 0 {
			s.log.Debug("config_keys_ignored", "keys", ignored)
		}
		s.sttNotified = false
		s.ctrl.ResetBackoff()
		s.log.Info("config_applied", "keys", applied, "credentials", s.creds)
		s.emit(ctx, protocol.SystemNotice(NoticeConfigSaved))
	case protocol.Skill:
		s.runSkill(ctx, m.Name)
	case protocol.FinalText:
		if strings.TrimSpace(m.Text) == "" {
			return
		}
		s.enqueueTurn(ctx, turn.New(turn.SourceText, m.Text))
	case protocol.AudioChunk:
		s.pushAudio(ctx, m.Data)
	case protocol.AudioRecording:
		s.enqueueTurn(ctx, turn.NewRecording(m.Data))
	}
}

func (s *Session) runSkill(ctx context.Context, name string) {
	if s.deps.Skills == nil {
		s.log.Warn("skill_unavailable", "name", name)
		return
	}
	req := skills.Request{SessionID: s.id, Name: name, Creds: s.effectiveCreds()}
	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		defer s.recoverPanic("skill")
		if reply, ok := s.deps.Skills.Invoke(ctx, req); ok {
			s.emit(ctx, protocol.AssistantReply("", reply))
		}
	}()
}

func (s *Session) pushAudio(ctx context.Context, chunk []byte) {
	credential := s.effectiveCreds().Get(credentials.SpeechToText)
	err := s.ctrl.Push(ctx, credential, chunk)
	if errors.Is(err, transcription.ErrReconnectPending) {
		return
	}
	s.sttResult(ctx, err)
}

func (s *Session) onSTTOpened(ctx context.Context, res transcription.OpenResult) {
	s.sttResult(ctx, s.ctrl.Finish(ctx, res))
}

// sttResult sends one notice per failure streak; a config change or a working
// stream re-arms it.
func (s *Session) sttResult(ctx context.Context, err error) {
	if err == nil {
		if !s.ctrl.Opening() {
			s.sttNotified = false
		}
		return
	}
	if s.sttNotified {
		return
	}
	s.sttNotified = true
	notice := NoticeSTTFailed
	if errorsx.HasReason(err, errorsx.ReasonMissingCredential) {
		notice = NoticeSTTMissingKey
	}
	s.emit(ctx, protocol.SystemNotice(notice))
}

func (s *Session) onSTTState(ch transcription.StateChange) {
	s.log.Debug("stt_state", "from", ch.From.String(), "to", ch.To.String(), "reason", ch.Reason)
	metrics.Mark(s.obs, metrics.EventSTTState, s.tags(), map[string]any{
		"from":   ch.From.String(),
		"to":     ch.To.String(),
		"reason": ch.Reason,
	})
}

func (s *Session) onTranscript(ctx context.Context, ev stt.Event, ok bool) {
	out := s.ctrl.Handle(ev, ok)
	switch {
	case out.Dropped:
		s.sttNotified = false
		s.emit(ctx, protocol.SystemNotice(NoticeSTTDropped))
	case out.Final != "":
		s.log.Debug("stt_final", "text", redact.Text(out.Final))
		metrics.Mark(s.obs, metrics.EventSTTFinal, s.tags(), nil)
		s.enqueueTurn(ctx, turn.New(turn.SourceVoice, out.Final))
	case out.Partial != "":
		metrics.Mark(s.obs, metrics.EventSTTPartial, s.tags(), nil)
		if s.cfg.ForwardPartial {
			s.emit(ctx, protocol.PartialTranscript(out.Partial))
		}
	}
}

func (s *Session) enqueueTurn(ctx context.Context, t turn.Turn) {
	t, start, err := s.slot.Offer(t)
	if err != nil {
		s.log.Warn("turn_rejected", "error", err, "pending", s.slot.Pending())
		s.emit(ctx, protocol.SystemNotice(NoticeBusy))
		return
	}
	if start {
		s.startTurn(ctx, t)
	}
}

func (s *Session) startTurn(ctx context.Context, t turn.Turn) {
	creds := s.effectiveCreds()
	history := s.history.Clone()
	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		res := pipeline.Result{Turn: t, History: history}
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("turn_panic", "turn_id", t.ID, "panic", fmt.Sprint(r))
					res = pipeline.Result{Turn: t, History: history, Err: fmt.Errorf("turn panic: %v", r)}
				}
			}()
			res = s.deps.Pipeline.Run(ctx, t, creds, history, func(ev protocol.Outbound) { s.emit(ctx, ev) })
		}()
		select {
		case s.completions <- res:
		case <-ctx.Done():
		}
	}()
}

func (s *Session) onTurnDone(ctx context.Context, res pipeline.Result) {
	s.history = res.History
	if next, ok := s.slot.Complete(res.Turn.ID); ok {
		s.startTurn(ctx, next)
	}
}

// emit queues an event for the writer. It is called from the loop and from workers.
func (s *Session) emit(ctx context.Context, ev protocol.Outbound) {
	data, err := ev.Encode()
	if err != nil {
		s.log.Error("encode_failed", "type", ev.Type, "error", err)
		return
	}
	select {
	case s.out <- outboundFrame{messageType: transports.TextMessage, data: data}:
	case <-ctx.Done():
	}
}

func (s *Session) effectiveCreds() credentials.Store {
	return s.creds.WithFallback(s.deps.Fallback)
}

func (s *Session) safely(what string, fn func()) {
	defer s.recoverPanic(what)
	fn()
}

func (s *Session) recoverPanic(what string) {
	if r := recover(); r != nil {
		s.log.Error("session_panic", "where", what, "panic", fmt.Sprint(r))
	}
}

func (s *Session) tags() map[string]string {
	return map[string]string{metrics.TagSessionID: s.id}
}

func errTransportClosed(err error) error {
	return errorsx.Wrap(fmt.Errorf("connection: %w", err), errorsx.ReasonTransportClosed)
}
