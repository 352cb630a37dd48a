package errorsx

import (
	"context"
	"fmt"
	"testing"
)

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonUpstreamRejected)
	if Reason(err) != ReasonUpstreamRejected {
		t.Fatalf("expected reason %s, got %s", ReasonUpstreamRejected, Reason(err))
	}
	if !HasReason(err, ReasonUpstreamRejected) {
		t.Fatalf("expected HasReason true")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonMissingCredential)
	second := Wrap(fmt.Errorf("llm: %w", first), ReasonTransportFault)
	if Reason(second) != ReasonMissingCredential {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

func TestFromStatus(t *testing.T) {
	cases := map[int]ReasonCode{
		401: ReasonUpstreamRejected,
		404: ReasonUpstreamRejected,
		429: ReasonUpstreamRejected,
		500: ReasonTransportFault,
		503: ReasonTransportFault,
	}
	for status, want := range cases {
		if got := Reason(FromStatus("murf", status, "nope")); got != want {
			t.Fatalf("status %d: expected %s, got %s", status, want, got)
		}
	}
}

func TestFromTransportDeadline(t *testing.T) {
	err := FromTransport(fmt.Errorf("post: %w", context.DeadlineExceeded))
	if !HasReason(err, ReasonTransportFault) {
		t.Fatalf("expected transport fault, got %s", Reason(err))
	}
}

func TestDescribe(t *testing.T) {
	if Describe(ReasonMissingCredential) != "missing credential" {
		t.Fatalf("unexpected description %q", Describe(ReasonMissingCredential))
	}
	if Describe(ReasonCode("nope")) != "unknown error" {
		t.Fatalf("expected fallback description")
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
