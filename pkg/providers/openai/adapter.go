package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/harunnryd/bytegate/pkg/errorsx"
	"github.com/harunnryd/bytegate/pkg/llm"
	"github.com/harunnryd/bytegate/pkg/resilience"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Adapter talks to an OpenAI-compatible chat completions endpoint.
type Adapter struct {
	Model   string
	BaseURL string
	Client  *http.Client
}

func NewAdapter(model, baseURL string, timeout time.Duration) *Adapter {
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o-mini"
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Adapter{
		Model:   model,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

func (a *Adapter) Name() string { return "openai" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (a *Adapter) Generate(ctx context.Context, in llm.Request, credential string) (llm.Response, error) {
	if strings.TrimSpace(credential) == "" {
		return llm.Response{}, errorsx.New(errorsx.ReasonMissingCredential, "openai: api key is empty")
	}
	body, err := a.buildRequest(in)
	if err != nil {
		return llm.Response{}, errorsx.Wrap(err, errorsx.ReasonMalformedResponse)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/chat/completions", body)
	if err != nil {
		return llm.Response{}, errorsx.Wrap(err, errorsx.ReasonTransportFault)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+credential)
	resp, err := a.client().Do(req)
	if err != nil {
		return llm.Response{}, errorsx.FromTransport(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return llm.Response{}, errorsx.Wrap(resilience.RateLimitError{Provider: "openai", Message: string(msg)}, errorsx.ReasonUpstreamRejected)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return llm.Response{}, errorsx.FromStatus("openai", resp.StatusCode, string(msg))
	}
	var payload chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return llm.Response{}, errorsx.Wrap(err, errorsx.ReasonMalformedResponse)
	}
	if len(payload.Choices) == 0 {
		return llm.Response{}, errorsx.New(errorsx.ReasonMalformedResponse, "openai: no choices")
	}
	first := payload.Choices[0]
	text := strings.TrimSpace(first.Message.Content)
	if text == "" {
		return llm.Response{}, errorsx.New(errorsx.ReasonMalformedResponse, "openai: empty content")
	}
	return llm.Response{
		Text:         text,
		FinishReason: first.FinishReason,
		Usage: llm.Usage{
			PromptTokens:     payload.Usage.PromptTokens,
			CompletionTokens: payload.Usage.CompletionTokens,
			TotalTokens:      payload.Usage.TotalTokens,
		},
	}, nil
}

func (a *Adapter) buildRequest(in llm.Request) (*bytes.Buffer, error) {
	msgs := make([]chatMessage, 0, len(in.History)+2)
	if s := strings.TrimSpace(in.System); s != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: s})
	}
	for _, m := range in.History {
		role := "user"
		if m.Role == llm.RoleModel {
			role = "assistant"
		}
		msgs = append(msgs, chatMessage{Role: role, Content: m.Text})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: in.Prompt})
	b, err := json.Marshal(chatRequest{Model: a.Model, Messages: msgs, MaxTokens: in.MaxTokens})
	if err != nil {
		return nil, err
	}
	return bytes.NewBuffer(b), nil
}

func (a *Adapter) client() *http.Client {
	if a.Client != nil {
		return a.Client
	}
	return http.DefaultClient
}
