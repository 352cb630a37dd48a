// Package assemblyai implements the AssemblyAI streaming and batch transcription facades.
package assemblyai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harunnryd/bytegate/pkg/adapters/stt"
	"github.com/harunnryd/bytegate/pkg/errorsx"
	"github.com/harunnryd/bytegate/pkg/logging"
)

const defaultStreamURL = "wss://streaming.assemblyai.com/v3/ws"

// minChunkBytes is 100ms of 16 kHz mono s16le; the service rejects sends shorter than 50ms.
const minChunkBytes = 3200

type StreamConfig struct {
	URL              string
	SampleRate       int
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	MinChunkBytes    int
}

// Streamer opens Universal Streaming sessions.
type Streamer struct {
	cfg    StreamConfig
	dialer *websocket.Dialer
	log    *slog.Logger
}

func NewStreamer(cfg StreamConfig) *Streamer {
	if cfg.URL == "" {
		cfg.URL = defaultStreamURL
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.MinChunkBytes <= 0 {
		cfg.MinChunkBytes = minChunkBytes
	}
	return &Streamer{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		log:    logging.NewComponentLogger(slog.Default(), "assemblyai_stt"),
	}
}

func (s *Streamer) Name() string { return "assemblyai" }

func (s *Streamer) Open(ctx context.Context, credential string) (stt.Stream, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, errorsx.New(errorsx.ReasonMissingCredential, "assemblyai: api key is empty")
	}
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonTransportFault)
	}
	q := u.Query()
	q.Set("sample_rate", strconv.Itoa(s.cfg.SampleRate))
	q.Set("format_turns", "false")
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", credential)
	conn, resp, err := s.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, errorsx.FromStatus("assemblyai", resp.StatusCode, "handshake rejected")
		}
		return nil, errorsx.Wrap(fmt.Errorf("assemblyai dial: %w", err), errorsx.ReasonTransportFault)
	}

	st := &stream{
		conn:         conn,
		events:       make(chan stt.Event, 64),
		done:         make(chan struct{}),
		writeTimeout: s.cfg.WriteTimeout,
		minChunk:     s.cfg.MinChunkBytes,
		log:          s.log,
	}
	go st.readLoop()
	return st, nil
}

type stream struct {
	conn         *websocket.Conn
	events       chan stt.Event
	done         chan struct{}
	writeTimeout time.Duration
	minChunk     int
	log          *slog.Logger

	writeMu   sync.Mutex
	buf       []byte
	closeOnce sync.Once
}

type turnMessage struct {
	Type       string `json:"type"`
	TurnOrder  int    `json:"turn_order"`
	Transcript string `json:"transcript"`
	EndOfTurn  bool   `json:"end_of_turn"`
	Error      string `json:"error"`
}

func (s *stream) Events() <-chan stt.Event { return s.events }

func (s *stream) Push(ctx context.Context, chunk []byte) error {
	select {
	case <-s.done:
		return errorsx.New(errorsx.ReasonTransportFault, "assemblyai: stream closed")
	default:
	}
	if err := ctx.Err(); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonTransportFault)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.buf = append(s.buf, chunk...)
	if len(s.buf) < s.minChunk {
		return nil
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	err := s.conn.WriteMessage(websocket.BinaryMessage, s.buf)
	s.buf = s.buf[:0]
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonTransportFault)
	}
	return nil
}

func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		if len(s.buf) > 0 {
			// the tail is padded with silence up to the shortest send the service accepts
			if pad := s.minChunk - len(s.buf); pad > 0 {
				s.buf = append(s.buf, make([]byte, pad)...)
			}
			_ = s.conn.WriteMessage(websocket.BinaryMessage, s.buf)
			s.buf = nil
		}
		_ = s.conn.WriteJSON(map[string]bool{"terminate_session": true})
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
	return nil
}

func (s *stream) readLoop() {
	defer close(s.events)
	seq := 0
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.log.Warn("stt_stream_dropped", "error", err)
			}
			return
		}
		var msg turnMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.log.Warn("stt_message_invalid", "error", err)
			continue
		}
		switch msg.Type {
		case "Begin", "SessionBegins":
			s.log.Debug("stt_session_started")
		case "Turn":
			text := strings.TrimSpace(msg.Transcript)
			if text == "" {
				continue
			}
			ev := stt.Event{Final: msg.EndOfTurn, Text: text, Seq: seq}
			seq++
			if msg.EndOfTurn {
				seq = 0
			}
			select {
			case s.events <- ev:
			case <-s.done:
				return
			}
		case "Termination", "SessionTerminated":
			s.log.Info("stt_session_terminated")
			return
		case "Error":
			s.log.Error("stt_upstream_error", "error", msg.Error)
		}
	}
}
