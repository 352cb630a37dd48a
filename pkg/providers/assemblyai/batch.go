package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/harunnryd/bytegate/pkg/errorsx"
	"github.com/harunnryd/bytegate/pkg/resilience"
)

const defaultAPIURL = "https://api.assemblyai.com/v2"

type BatchConfig struct {
	BaseURL      string
	PollInterval time.Duration
	PollTimeout  time.Duration
	HTTPTimeout  time.Duration
}

// Transcriber uploads a full recording and polls until the transcript is ready.
type Transcriber struct {
	cfg    BatchConfig
	client *http.Client
}

func NewTranscriber(cfg BatchConfig) *Transcriber {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultAPIURL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 60 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Transcriber{cfg: cfg, client: &http.Client{Timeout: cfg.HTTPTimeout}}
}

func (t *Transcriber) Name() string { return "assemblyai_batch" }

type transcriptStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
}

func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, credential string) (string, error) {
	if strings.TrimSpace(credential) == "" {
		return "", errorsx.New(errorsx.ReasonMissingCredential, "assemblyai: api key is empty")
	}
	if len(audio) == 0 {
		return "", errorsx.New(errorsx.ReasonTranscriptionFailure, "assemblyai: empty recording")
	}

	var upload struct {
		UploadURL string `json:"upload_url"`
	}
	if err := t.do(ctx, http.MethodPost, "/upload", credential, "application/octet-stream", bytes.NewReader(audio), &upload); err != nil {
		return "", err
	}
	if upload.UploadURL == "" {
		return "", errorsx.New(errorsx.ReasonMalformedResponse, "assemblyai: upload_url missing")
	}

	body, _ := json.Marshal(map[string]string{"audio_url": upload.UploadURL})
	var job transcriptStatus
	if err := t.do(ctx, http.MethodPost, "/transcript", credential, "application/json", bytes.NewReader(body), &job); err != nil {
		return "", err
	}
	if job.ID == "" {
		return "", errorsx.New(errorsx.ReasonMalformedResponse, "assemblyai: transcript id missing")
	}

	var result transcriptStatus
	err := resilience.Poll(ctx, t.cfg.PollInterval, t.cfg.PollTimeout, func(ctx context.Context) (bool, error) {
		var st transcriptStatus
		if err := t.do(ctx, http.MethodGet, "/transcript/"+job.ID, credential, "", nil, &st); err != nil {
			return false, err
		}
		switch st.Status {
		case "completed":
			result = st
			return true, nil
		case "error":
			return false, errorsx.New(errorsx.ReasonTranscriptionFailure, "assemblyai: %s", st.Error)
		default:
			return false, nil
		}
	})
	if errors.Is(err, resilience.ErrPollTimeout) {
		return "", errorsx.Wrap(fmt.Errorf("assemblyai transcript %s: %w", job.ID, err), errorsx.ReasonTranscriptionFailure)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Text), nil
}

func (t *Transcriber) do(ctx context.Context, method, path, credential, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, t.cfg.BaseURL+path, body)
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonTransportFault)
	}
	req.Header.Set("Authorization", credential)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return errorsx.FromTransport(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errorsx.Wrap(resilience.RateLimitError{Provider: "assemblyai", Message: string(msg)}, errorsx.ReasonUpstreamRejected)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errorsx.FromStatus("assemblyai", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonMalformedResponse)
	}
	return nil
}
