package pipeline

import "testing"

func TestSpokenTextDropsMarkup(t *testing.T) {
	in := "## Goroutines\n\n**Goroutines** are cheap. Use `go f()` to start one.\n> quoted"
	want := "Goroutines\nGoroutines are cheap. Use go f() to start one.\nquoted"
	if got := spokenText(in, 0); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestSpokenTextCutsAtSentence(t *testing.T) {
	in := "First sentence. Second sentence is longer than the cap allows."
	if got := spokenText(in, 30); got != "First sentence." {
		t.Fatalf("expected cut at first sentence, got %q", got)
	}
	if got := spokenText("no punctuation at all here", 8); got != "no punct" {
		t.Fatalf("expected hard cut, got %q", got)
	}
}

func TestSpokenTextLeavesPlainRepliesAlone(t *testing.T) {
	if got := spokenText("Sunny.", 3000); got != "Sunny." {
		t.Fatalf("plain reply changed: %q", got)
	}
}
