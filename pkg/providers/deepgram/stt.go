package deepgram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/harunnryd/bytegate/pkg/adapters/stt"
	"github.com/harunnryd/bytegate/pkg/errorsx"
	"github.com/harunnryd/bytegate/pkg/logging"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

type Config struct {
	Model          string
	Language       string
	SampleRate     int
	Encoding       string
	Interim        bool
	VADEvents      bool
	UtteranceEndMS int
}

// Streamer opens Deepgram live transcription streams.
type Streamer struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config) *Streamer {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "linear16"
	}
	return &Streamer{
		cfg:    cfg,
		logger: logging.NewComponentLogger(slog.Default(), "deepgram_stt"),
	}
}

func (s *Streamer) Name() string { return "deepgram_streaming" }

func (s *Streamer) Open(ctx context.Context, credential string) (stt.Stream, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, errorsx.New(errorsx.ReasonMissingCredential, "deepgram: api key is empty")
	}
	st := &stream{
		events: make(chan stt.Event, 64),
		logger: s.logger,
	}
	// the stream outlives the caller's context; Close cancels it
	st.ctx, st.cancel = context.WithCancel(context.WithoutCancel(ctx))
	st.pipeReader, st.pipeWriter = io.Pipe()

	clientOptions := &interfaces.ClientOptions{
		EnableKeepAlive: true,
	}
	transcriptOptions := &interfaces.LiveTranscriptionOptions{
		Model:          s.cfg.Model,
		Language:       s.cfg.Language,
		Encoding:       s.cfg.Encoding,
		SampleRate:     s.cfg.SampleRate,
		InterimResults: s.cfg.Interim,
		VadEvents:      s.cfg.VADEvents,
		SmartFormat:    true,
	}
	if s.cfg.UtteranceEndMS > 0 {
		transcriptOptions.UtteranceEndMs = fmt.Sprintf("%d", s.cfg.UtteranceEndMS)
	}

	dgClient, err := client.NewWSUsingCallback(st.ctx, credential, clientOptions, transcriptOptions, &callback{parent: st})
	if err != nil {
		st.cancel()
		return nil, errorsx.Wrap(fmt.Errorf("deepgram client: %w", err), errorsx.ReasonUpstreamRejected)
	}
	st.dgClient = dgClient
	if connected := dgClient.Connect(); !connected {
		st.cancel()
		return nil, errorsx.New(errorsx.ReasonTransportFault, "deepgram connection failed")
	}
	s.logger.Info("deepgram_connected", slog.String("model", s.cfg.Model), slog.Int("sample_rate", s.cfg.SampleRate))

	go func() {
		if err := dgClient.Stream(st.pipeReader); err != nil && st.ctx.Err() == nil {
			st.logger.Error("deepgram_stream_error", slog.String("error", err.Error()))
		}
		st.finish()
	}()
	return st, nil
}

type stream struct {
	dgClient   *client.WSCallback
	ctx        context.Context
	cancel     context.CancelFunc
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	logger     *slog.Logger

	mu        sync.Mutex
	events    chan stt.Event
	finished  bool
	segments  []string
	seq       int
	closeOnce sync.Once
}

func (s *stream) Events() <-chan stt.Event { return s.events }

func (s *stream) Push(ctx context.Context, chunk []byte) error {
	if err := ctx.Err(); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonTransportFault)
	}
	if _, err := s.pipeWriter.Write(chunk); err != nil {
		return errorsx.Wrap(fmt.Errorf("deepgram send: %w", err), errorsx.ReasonTransportFault)
	}
	return nil
}

func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.pipeWriter.Close()
		if s.dgClient != nil {
			s.dgClient.Stop()
		}
		s.finish()
	})
	return nil
}

// finish closes the event channel once, whoever notices the end first.
func (s *stream) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.finished = true
	close(s.events)
}

// transcript folds Deepgram segments into utterance events. is_final segments
// accumulate until speech_final or an utterance-end event closes the utterance.
func (s *stream) transcript(text string, isFinal, speechFinal bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	text = strings.TrimSpace(text)
	if isFinal && text != "" {
		s.segments = append(s.segments, text)
	}
	joined := strings.Join(s.segments, " ")
	if !isFinal && text != "" {
		joined = strings.TrimSpace(joined + " " + text)
	}
	if joined == "" {
		return
	}
	ev := stt.Event{Final: speechFinal, Text: joined, Seq: s.seq}
	s.seq++
	if speechFinal {
		s.segments = s.segments[:0]
		s.seq = 0
	}
	if !ev.Final {
		select {
		case s.events <- ev:
		default:
			s.logger.Debug("deepgram_partial_dropped", slog.Int("seq", ev.Seq))
		}
		return
	}
	// a final is the whole utterance; wait for room until the stream closes
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
		s.logger.Warn("deepgram_final_discarded", slog.String("reason", "stream closed"))
	}
}

// --- Callback Implementation ---

type callback struct {
	parent *stream
}

func (c *callback) Open(or *msginterfaces.OpenResponse) error {
	c.parent.logger.Info("deepgram_connection_opened")
	return nil
}

func (c *callback) Message(mr *msginterfaces.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	transcript := mr.Channel.Alternatives[0].Transcript
	c.parent.logger.Debug("transcript_received",
		slog.Bool("is_final", mr.IsFinal),
		slog.Bool("speech_final", mr.SpeechFinal))
	c.parent.transcript(transcript, mr.IsFinal || mr.SpeechFinal, mr.SpeechFinal)
	return nil
}

func (c *callback) Metadata(md *msginterfaces.MetadataResponse) error {
	c.parent.logger.Debug("deepgram_metadata_received", slog.String("request_id", md.RequestID))
	return nil
}

func (c *callback) SpeechStarted(ssr *msginterfaces.SpeechStartedResponse) error {
	c.parent.logger.Debug("speech_started_event")
	return nil
}

func (c *callback) UtteranceEnd(ur *msginterfaces.UtteranceEndResponse) error {
	c.parent.logger.Debug("utterance_end_event")
	c.parent.transcript("", true, true)
	return nil
}

func (c *callback) Close(cr *msginterfaces.CloseResponse) error {
	c.parent.logger.Info("deepgram_connection_closed")
	c.parent.finish()
	return nil
}

func (c *callback) Error(er *msginterfaces.ErrorResponse) error {
	c.parent.logger.Error("deepgram_error",
		slog.String("error_code", er.ErrCode),
		slog.String("error_message", er.ErrMsg))
	return nil
}

func (c *callback) UnhandledEvent(byData []byte) error {
	c.parent.logger.Debug("deepgram_unhandled_event", slog.Int("size_bytes", len(byData)))
	return nil
}

var _ stt.StreamingSTT = (*Streamer)(nil)
