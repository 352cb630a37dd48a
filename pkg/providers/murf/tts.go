// Package murf synthesizes speech with the Murf generate API.
package murf

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/harunnryd/bytegate/pkg/adapters/tts"
	"github.com/harunnryd/bytegate/pkg/errorsx"
	"github.com/harunnryd/bytegate/pkg/resilience"
)

const defaultBaseURL = "https://api.murf.ai/v1"

// maxAudioBytes caps a downloaded clip.
const maxAudioBytes = 10 << 20

type Config struct {
	BaseURL string
	VoiceID string
	Format  string
	Timeout time.Duration
}

type Synthesizer struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Synthesizer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = "en-US-natalie"
	}
	if cfg.Format == "" {
		cfg.Format = "MP3"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Synthesizer{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (s *Synthesizer) Name() string { return "murf" }

type generateRequest struct {
	VoiceID string `json:"voiceId"`
	Text    string `json:"text"`
	Format  string `json:"format"`
}

type generateResponse struct {
	AudioFile string `json:"audioFile"`
	AudioURL  string `json:"audioUrl"`
}

func (s *Synthesizer) Synthesize(ctx context.Context, text, credential string) (tts.Audio, error) {
	if strings.TrimSpace(credential) == "" {
		return tts.Audio{}, errorsx.New(errorsx.ReasonMissingCredential, "murf: api key is empty")
	}
	body, err := json.Marshal(generateRequest{VoiceID: s.cfg.VoiceID, Text: text, Format: s.cfg.Format})
	if err != nil {
		return tts.Audio{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/speech/generate", bytes.NewReader(body))
	if err != nil {
		return tts.Audio{}, errorsx.Wrap(err, errorsx.ReasonTransportFault)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", credential)
	resp, err := s.client.Do(req)
	if err != nil {
		return tts.Audio{}, errorsx.FromTransport(err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return tts.Audio{}, err
	}

	// some plans answer with the clip itself
	if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "audio/") {
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
		if err != nil {
			return tts.Audio{}, errorsx.FromTransport(err)
		}
		return tts.Audio{Data: data, MIME: ct}, nil
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return tts.Audio{}, errorsx.Wrap(err, errorsx.ReasonMalformedResponse)
	}
	audioURL := out.AudioFile
	if audioURL == "" {
		audioURL = out.AudioURL
	}
	if audioURL == "" {
		return tts.Audio{}, errorsx.New(errorsx.ReasonMalformedResponse, "murf: no audio url in response")
	}
	return s.download(ctx, audioURL)
}

func (s *Synthesizer) download(ctx context.Context, url string) (tts.Audio, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return tts.Audio{}, errorsx.Wrap(err, errorsx.ReasonMalformedResponse)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return tts.Audio{}, errorsx.FromTransport(err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return tts.Audio{}, err
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return tts.Audio{}, errorsx.FromTransport(err)
	}
	if len(data) == 0 {
		return tts.Audio{}, errorsx.New(errorsx.ReasonMalformedResponse, "murf: empty audio")
	}
	mime := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(mime, "audio/") {
		mime = "audio/mpeg"
	}
	return tts.Audio{Data: data, MIME: mime}, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errorsx.Wrap(resilience.RateLimitError{Provider: "murf", Message: string(msg)}, errorsx.ReasonUpstreamRejected)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errorsx.FromStatus("murf", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
