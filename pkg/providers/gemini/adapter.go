// Package gemini is the Google Gemini language-model facade.
package gemini

import (
	"context"
	"errors"
	"net"
	"strings"

	"google.golang.org/genai"

	"github.com/harunnryd/bytegate/pkg/errorsx"
	"github.com/harunnryd/bytegate/pkg/llm"
)

const defaultModel = "gemini-2.5-flash"

// Adapter builds a genai client per call because the API key belongs to the session.
type Adapter struct {
	Model   string
	BaseURL string
}

func NewAdapter(model, baseURL string) *Adapter {
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	return &Adapter{Model: model, BaseURL: strings.TrimSpace(baseURL)}
}

func (a *Adapter) Name() string { return "gemini" }

func (a *Adapter) Generate(ctx context.Context, req llm.Request, credential string) (llm.Response, error) {
	if strings.TrimSpace(credential) == "" {
		return llm.Response{}, errorsx.New(errorsx.ReasonMissingCredential, "gemini: api key is empty")
	}
	cfg := &genai.ClientConfig{APIKey: credential, Backend: genai.BackendGeminiAPI}
	if a.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: a.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return llm.Response{}, errorsx.Wrap(err, errorsx.ReasonUpstreamRejected)
	}

	contents, gcfg := convert(req)
	resp, err := client.Models.GenerateContent(ctx, a.Model, contents, gcfg)
	if err != nil {
		return llm.Response{}, classify(err)
	}
	return fromResponse(resp)
}

func convert(req llm.Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, m := range req.History {
		role := "user"
		if m.Role == llm.RoleModel {
			role = "model"
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: m.Text}}})
	}
	contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: req.Prompt}}})

	var cfg *genai.GenerateContentConfig
	if s := strings.TrimSpace(req.System); s != "" || req.MaxTokens > 0 {
		cfg = &genai.GenerateContentConfig{}
		if s != "" {
			cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(s)}}
		}
		if req.MaxTokens > 0 {
			// thinking tokens count against the cap, so a capped reply skips thinking
			cfg.MaxOutputTokens = int32(req.MaxTokens)
			cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](0)}
		}
	}
	return contents, cfg
}

func fromResponse(resp *genai.GenerateContentResponse) (llm.Response, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return llm.Response{}, errorsx.New(errorsx.ReasonMalformedResponse, "gemini: no candidates")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return llm.Response{}, errorsx.New(errorsx.ReasonMalformedResponse, "gemini: empty reply")
	}
	out := llm.Response{Text: text, FinishReason: string(resp.Candidates[0].FinishReason)}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = llm.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

func classify(err error) error {
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.As(err, &nerr) {
		return errorsx.Wrap(err, errorsx.ReasonTransportFault)
	}
	return errorsx.Wrap(err, errorsx.ReasonUpstreamRejected)
}
