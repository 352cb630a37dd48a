package elevenlabs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harunnryd/bytegate/pkg/adapters/tts"
	"github.com/harunnryd/bytegate/pkg/errorsx"
	"github.com/harunnryd/bytegate/pkg/logging"
	"github.com/harunnryd/bytegate/pkg/resilience"
)

const defaultBaseURL = "wss://api.elevenlabs.io/v1"

type Config struct {
	BaseURL      string
	VoiceID      string
	ModelID      string
	OutputFormat string
	Timeout      time.Duration
}

// Synthesizer renders one reply per stream-input session and collects the clip.
type Synthesizer struct {
	cfg    Config
	dialer *websocket.Dialer
	logger *slog.Logger
}

func New(cfg Config) *Synthesizer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = "mp3_44100_128"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Synthesizer{
		cfg:    cfg,
		dialer: &websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: 10 * time.Second},
		logger: logging.NewComponentLogger(slog.Default(), "elevenlabs_tts"),
	}
}

func (s *Synthesizer) Name() string { return "elevenlabs_tts" }

func (s *Synthesizer) Synthesize(ctx context.Context, text, credential string) (tts.Audio, error) {
	if strings.TrimSpace(credential) == "" {
		return tts.Audio{}, errorsx.New(errorsx.ReasonMissingCredential, "elevenlabs: api key is empty")
	}
	if s.cfg.VoiceID == "" {
		return tts.Audio{}, errorsx.New(errorsx.ReasonUpstreamRejected, "elevenlabs: voice_id is not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	conn, resp, err := s.dialer.DialContext(ctx, s.buildURL(), http.Header{
		"xi-api-key": []string{credential},
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			return tts.Audio{}, errorsx.Wrap(resilience.RateLimitError{Provider: "elevenlabs", Message: resp.Status}, errorsx.ReasonUpstreamRejected)
		}
		if resp != nil && resp.StatusCode >= 400 {
			return tts.Audio{}, errorsx.FromStatus("elevenlabs", resp.StatusCode, resp.Status)
		}
		return tts.Audio{}, errorsx.Wrap(fmt.Errorf("elevenlabs dial: %w", err), errorsx.ReasonTransportFault)
	}
	defer conn.Close()

	// unblock the reader when the caller gives up
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	init := map[string]any{
		"text": " ",
		"voice_settings": map[string]any{
			"stability":        0.5,
			"similarity_boost": 0.8,
		},
	}
	for _, payload := range []map[string]any{init, {"text": strings.TrimSpace(text) + " ", "flush": true}, {"text": ""}} {
		if err := conn.WriteJSON(payload); err != nil {
			return tts.Audio{}, errorsx.Wrap(err, errorsx.ReasonTransportFault)
		}
	}

	var clip bytes.Buffer
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) && clip.Len() > 0 {
				break
			}
			if ctx.Err() != nil {
				return tts.Audio{}, errorsx.Wrap(ctx.Err(), errorsx.ReasonTransportFault)
			}
			return tts.Audio{}, errorsx.Wrap(err, errorsx.ReasonTransportFault)
		}
		chunk, final, err := decodeMessage(data)
		if err != nil {
			return tts.Audio{}, errorsx.Wrap(err, errorsx.ReasonMalformedResponse)
		}
		clip.Write(chunk)
		if final {
			break
		}
	}
	if clip.Len() == 0 {
		return tts.Audio{}, errorsx.New(errorsx.ReasonMalformedResponse, "elevenlabs: no audio received")
	}
	s.logger.Debug("tts_clip_ready", slog.Int("size_bytes", clip.Len()))
	return tts.Audio{Data: clip.Bytes(), MIME: mimeFor(s.cfg.OutputFormat)}, nil
}

func (s *Synthesizer) buildURL() string {
	base := strings.TrimRight(s.cfg.BaseURL, "/") + "/text-to-speech/" + url.PathEscape(s.cfg.VoiceID) + "/stream-input"
	q := url.Values{}
	if s.cfg.ModelID != "" {
		q.Set("model_id", s.cfg.ModelID)
	}
	q.Set("output_format", s.cfg.OutputFormat)
	return base + "?" + q.Encode()
}

type streamMessage struct {
	Audio   *string `json:"audio"`
	IsFinal bool    `json:"isFinal"`
	Message string  `json:"message"`
	Error   string  `json:"error"`
}

func decodeMessage(data []byte) ([]byte, bool, error) {
	var msg streamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, false, err
	}
	if msg.Error != "" {
		return nil, false, fmt.Errorf("elevenlabs: %s: %s", msg.Error, msg.Message)
	}
	if msg.Audio == nil || *msg.Audio == "" {
		return nil, msg.IsFinal, nil
	}
	raw, err := base64.StdEncoding.DecodeString(*msg.Audio)
	if err != nil {
		return nil, false, err
	}
	return raw, msg.IsFinal, nil
}

func mimeFor(format string) string {
	switch {
	case strings.HasPrefix(format, "mp3"):
		return "audio/mpeg"
	case strings.HasPrefix(format, "pcm"):
		return "audio/pcm"
	case strings.HasPrefix(format, "ulaw"):
		return "audio/basic"
	default:
		return "application/octet-stream"
	}
}

var _ tts.Synthesizer = (*Synthesizer)(nil)
