// Package transcription drives the live speech-recognition stream of a session.
package transcription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/harunnryd/bytegate/pkg/adapters/stt"
	"github.com/harunnryd/bytegate/pkg/errorsx"
	"github.com/harunnryd/bytegate/pkg/logging"
	"github.com/harunnryd/bytegate/pkg/resilience"
)

// ErrReconnectPending is returned by Push while a failed open is backing off.
// The chunk is dropped.
var ErrReconnectPending = errors.New("transcription: reconnect pending")

// maxPendingBytes bounds audio held while a stream is opening: 8s of 16 kHz s16le.
const maxPendingBytes = 256 << 10

type Options struct {
	// OnPartial receives every partial transcript. It runs on the caller's goroutine.
	OnPartial func(stt.Event)
	// OnStateChange observes lifecycle transitions on the caller's goroutine.
	OnStateChange func(StateChange)
	// Reconnect spaces open attempts after failures. Backoff and MaxBackoff are used.
	Reconnect resilience.RetryPolicy
	Logger    *slog.Logger
	Now       func() time.Time
}

// Outcome is what one transcript event means for the session.
type Outcome struct {
	Partial string
	// Final is the finished utterance; empty when the event did not close one.
	Final string
	// Dropped reports that the upstream connection died without being closed by us.
	Dropped bool
}

// OpenResult carries a finished open attempt back to the caller's goroutine.
type OpenResult struct {
	stream stt.Stream
	err    error
}

type attempt struct {
	results chan OpenResult
	abort   chan struct{}
}

// Controller owns at most one live stream. It is not safe for concurrent use;
// the session event loop is its only caller. Opening runs on a worker so the
// loop keeps serving other messages while the upstream handshake is in flight.
type Controller struct {
	streamer stt.StreamingSTT
	sm       *stateMachine
	stream   stt.Stream
	opts     Options
	log      *slog.Logger
	now      func() time.Time

	opening      *attempt
	pending      [][]byte
	pendingBytes int
	failures     int
	retryAt      time.Time
}

func NewController(streamer stt.StreamingSTT, opts Options) *Controller {
	base := opts.Logger
	if base == nil {
		base = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Reconnect.Backoff <= 0 {
		opts.Reconnect.Backoff = 500 * time.Millisecond
	}
	if opts.Reconnect.MaxBackoff <= 0 {
		opts.Reconnect.MaxBackoff = 30 * time.Second
	}
	return &Controller{
		streamer: streamer,
		sm:       newStateMachine(opts.OnStateChange, opts.Now),
		opts:     opts,
		log:      logging.NewComponentLogger(base, "transcription"),
		now:      opts.Now,
	}
}

func (c *Controller) State() State { return c.sm.State() }

// Opening reports whether an open attempt is in flight.
func (c *Controller) Opening() bool { return c.opening != nil }

// Push forwards a chunk. Without a live stream it starts an open and holds the
// chunk until the open finishes. A returned error means the stream is Closed.
func (c *Controller) Push(ctx context.Context, credential string, chunk []byte) error {
	if c.stream != nil {
		return c.forward(ctx, chunk)
	}
	if c.opening != nil {
		c.hold(chunk)
		return nil
	}
	if c.failures > 0 && c.now().Before(c.retryAt) {
		return ErrReconnectPending
	}
	if c.sm.State() == StateClosed {
		if err := c.sm.Transition(StateIdle, "reopen"); err != nil {
			return err
		}
	}
	switch {
	case c.streamer == nil:
		return c.fail(errorsx.New(errorsx.ReasonTranscriptionFailure, "no streaming speech provider configured"), false)
	case strings.TrimSpace(credential) == "":
		return c.fail(errorsx.New(errorsx.ReasonMissingCredential, "speech-to-text key is not set"), false)
	}
	c.start(ctx, credential)
	c.hold(chunk)
	return nil
}

func (c *Controller) start(ctx context.Context, credential string) {
	a := &attempt{results: make(chan OpenResult), abort: make(chan struct{})}
	c.opening = a
	streamer := c.streamer
	go func() {
		st, err := streamer.Open(ctx, credential)
		select {
		case a.results <- OpenResult{stream: st, err: err}:
		case <-a.abort:
			if st != nil {
				_ = st.Close()
			}
		}
	}()
}

// Opened fires once with the result of the in-flight open, or is nil when none is.
func (c *Controller) Opened() <-chan OpenResult {
	if c.opening == nil {
		return nil
	}
	return c.opening.results
}

// Finish installs the result of an open attempt and flushes the held audio.
// A returned error means the attempt failed and the held audio was dropped.
func (c *Controller) Finish(ctx context.Context, res OpenResult) error {
	c.opening = nil
	pending := c.pending
	c.pending, c.pendingBytes = nil, 0
	if res.err != nil {
		return c.fail(res.err, true)
	}
	c.failures, c.retryAt = 0, time.Time{}
	c.stream = res.stream
	c.log.Info("stt_stream_opened", "provider", c.streamer.Name(), "held_chunks", len(pending))
	if err := c.sm.Transition(StateConnected, "opened"); err != nil {
		return err
	}
	for _, chunk := range pending {
		if err := c.forward(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

// ResetBackoff allows the next Push to open immediately, as after a new key.
func (c *Controller) ResetBackoff() {
	c.failures, c.retryAt = 0, time.Time{}
}

func (c *Controller) forward(ctx context.Context, chunk []byte) error {
	if err := c.stream.Push(ctx, chunk); err != nil {
		c.log.Warn("stt_push_failed", "error", err)
		c.release("push failed")
		return errorsx.Wrap(fmt.Errorf("stt push: %w", err), errorsx.ReasonTransportFault)
	}
	return nil
}

func (c *Controller) hold(chunk []byte) {
	if c.pendingBytes+len(chunk) > maxPendingBytes {
		c.log.Debug("stt_chunk_dropped", "held_bytes", c.pendingBytes)
		return
	}
	c.pending = append(c.pending, chunk)
	c.pendingBytes += len(chunk)
}

// fail closes the controller after an open that did not produce a stream.
// dialed failures back off before the next attempt.
func (c *Controller) fail(err error, dialed bool) error {
	if dialed {
		c.failures++
		c.retryAt = c.now().Add(c.opts.Reconnect.Delay(c.failures))
	}
	_ = c.sm.Transition(StateClosed, "open failed")
	c.log.Warn("stt_open_failed", "reason", errorsx.Reason(err), "error", err, "failures", c.failures)
	return err
}

// Events is the live stream's feed, or nil when no stream is open.
// A nil channel never fires in a select, which keeps the session loop simple.
func (c *Controller) Events() <-chan stt.Event {
	if c.stream == nil {
		return nil
	}
	return c.stream.Events()
}

// Handle interprets one receive from Events. ok is the second value of the receive.
func (c *Controller) Handle(ev stt.Event, ok bool) Outcome {
	if !ok {
		if c.stream == nil {
			return Outcome{}
		}
		c.log.Warn("stt_stream_dropped")
		c.release("upstream dropped")
		return Outcome{Dropped: true}
	}
	if c.sm.State() == StateConnected {
		_ = c.sm.Transition(StateReceiving, "transcript")
	}
	text := strings.TrimSpace(ev.Text)
	if !ev.Final {
		if c.opts.OnPartial != nil {
			c.opts.OnPartial(ev)
		}
		return Outcome{Partial: text}
	}
	_ = c.sm.Transition(StateConnected, "utterance complete")
	return Outcome{Final: text}
}

// Close releases the stream and abandons an in-flight open; a stream that
// opens afterwards is closed by the worker. Further events are not delivered.
func (c *Controller) Close() error {
	if c.opening != nil {
		close(c.opening.abort)
		c.opening = nil
		c.pending, c.pendingBytes = nil, 0
	}
	c.release("closed")
	return nil
}

func (c *Controller) release(reason string) {
	if c.stream != nil {
		if err := c.stream.Close(); err != nil {
			c.log.Debug("stt_close_error", "error", err)
		}
		c.stream = nil
	}
	if c.sm.State() != StateClosed {
		_ = c.sm.Transition(StateClosed, reason)
	}
}
