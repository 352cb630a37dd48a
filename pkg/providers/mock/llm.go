package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/bytegate/pkg/errorsx"
	"github.com/harunnryd/bytegate/pkg/llm"
)

type LLMConfig struct {
	ResponseText string
	// Classify answers yes/no classification prompts; empty means "no".
	Classify string
	Err      error
	// ClassifyErr fails only classification prompts.
	ClassifyErr error
	Delay       time.Duration
	// Echo replies with the prompt itself, which makes ordering visible in tests.
	Echo bool
}

type LLMAdapter struct {
	cfg   LLMConfig
	mu    sync.Mutex
	calls []llm.Request
}

func NewLLMAdapter(cfg LLMConfig) *LLMAdapter {
	if cfg.ResponseText == "" {
		cfg.ResponseText = "mock response"
	}
	return &LLMAdapter{cfg: cfg}
}

func (a *LLMAdapter) Name() string { return "mock_llm" }

func (a *LLMAdapter) Generate(ctx context.Context, req llm.Request, credential string) (llm.Response, error) {
	a.mu.Lock()
	a.calls = append(a.calls, req)
	a.mu.Unlock()

	if strings.TrimSpace(credential) == "" {
		return llm.Response{}, errorsx.New(errorsx.ReasonMissingCredential, "mock llm: no key")
	}
	if a.cfg.Delay > 0 {
		select {
		case <-ctx.Done():
			return llm.Response{}, errorsx.Wrap(ctx.Err(), errorsx.ReasonTransportFault)
		case <-time.After(a.cfg.Delay):
		}
	}
	if IsClassification(req.Prompt) {
		if a.cfg.ClassifyErr != nil {
			return llm.Response{}, a.cfg.ClassifyErr
		}
		answer := a.cfg.Classify
		if answer == "" {
			answer = "no"
		}
		return llm.Response{Text: answer}, nil
	}
	if a.cfg.Err != nil {
		return llm.Response{}, a.cfg.Err
	}
	if a.cfg.Echo {
		return llm.Response{Text: "re: " + req.Prompt}, nil
	}
	return llm.Response{Text: a.cfg.ResponseText}, nil
}

// Calls returns every request seen so far.
func (a *LLMAdapter) Calls() []llm.Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]llm.Request, len(a.calls))
	copy(out, a.calls)
	return out
}

// IsClassification recognises the yes/no web-search question.
func IsClassification(prompt string) bool {
	return strings.HasPrefix(prompt, "Answer only 'yes' or 'no'")
}
