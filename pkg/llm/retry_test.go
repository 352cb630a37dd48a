package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harunnryd/bytegate/pkg/errorsx"
)

type flakyAdapter struct {
	errs  []error
	calls int
}

func (f *flakyAdapter) Name() string { return "flaky" }

func (f *flakyAdapter) Generate(ctx context.Context, req Request, credential string) (Response, error) {
	f.calls++
	if f.calls <= len(f.errs) {
		return Response{}, f.errs[f.calls-1]
	}
	return Response{Text: "ok"}, nil
}

func noWait(context.Context, time.Duration) bool { return true }

func TestRetryAdapterRetriesTransportFaults(t *testing.T) {
	inner := &flakyAdapter{errs: []error{errorsx.New(errorsx.ReasonTransportFault, "reset")}}
	a := NewRetryAdapter(inner, RetryConfig{MaxAttempts: 3, Wait: noWait})
	resp, err := a.Generate(context.Background(), Request{Prompt: "hi"}, "key")
	if err != nil || resp.Text != "ok" {
		t.Fatalf("expected recovery, got %q err=%v", resp.Text, err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", inner.calls)
	}
}

func TestRetryAdapterKeepsReasonOnPermanentFailure(t *testing.T) {
	inner := &flakyAdapter{errs: []error{
		errorsx.New(errorsx.ReasonMissingCredential, "no key"),
		errorsx.New(errorsx.ReasonMissingCredential, "no key"),
	}}
	a := NewRetryAdapter(inner, RetryConfig{MaxAttempts: 3, Wait: noWait})
	_, err := a.Generate(context.Background(), Request{Prompt: "hi"}, "")
	if !errorsx.HasReason(err, errorsx.ReasonMissingCredential) {
		t.Fatalf("expected missing credential reason, got %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected no retries, got %d calls", inner.calls)
	}
}

func TestRetryBackoffEndsWithContext(t *testing.T) {
	inner := &flakyAdapter{errs: []error{
		errorsx.New(errorsx.ReasonTransportFault, "reset"),
		errorsx.New(errorsx.ReasonTransportFault, "reset"),
	}}
	a := NewRetryAdapter(inner, RetryConfig{MaxAttempts: 3, BaseDelay: time.Minute, MaxDelay: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	started := time.Now()
	_, err := a.Generate(ctx, Request{Prompt: "hi"}, "key")
	if !errorsx.HasReason(err, errorsx.ReasonTransportFault) {
		t.Fatalf("expected the last attempt's error, got %v", err)
	}
	if time.Since(started) > 5*time.Second || inner.calls != 1 {
		t.Fatalf("backoff outlived the context: calls=%d", inner.calls)
	}
}

func TestDefaultIsRetryable(t *testing.T) {
	if DefaultIsRetryable(context.Canceled) {
		t.Fatalf("cancellation must not retry")
	}
	if DefaultIsRetryable(errors.New("plain")) {
		t.Fatalf("unclassified errors must not retry")
	}
}

func TestExchange(t *testing.T) {
	ex := Exchange("q", "a")
	if len(ex) != 2 || ex[0].Role != RoleUser || ex[1].Role != RoleModel {
		t.Fatalf("unexpected exchange %+v", ex)
	}
}
