package deepgram

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/harunnryd/bytegate/pkg/adapters/stt"
	"github.com/harunnryd/bytegate/pkg/errorsx"
)

func newTestStream() *stream {
	return newTestStreamSized(8)
}

func newTestStreamSized(n int) *stream {
	s := &stream{events: make(chan stt.Event, n), logger: slog.Default()}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

func TestOpenRequiresCredential(t *testing.T) {
	_, err := New(Config{}).Open(context.Background(), "")
	if !errorsx.HasReason(err, errorsx.ReasonMissingCredential) {
		t.Fatalf("expected missing credential, got %v", err)
	}
}

func TestSegmentsAccumulateUntilSpeechFinal(t *testing.T) {
	s := newTestStream()
	s.transcript("what is", false, false)
	s.transcript("what is the", true, false)
	s.transcript("weather", false, false)
	s.transcript("weather today", true, true)

	var got []stt.Event
	for i := 0; i < 4; i++ {
		got = append(got, <-s.events)
	}
	if got[0].Final || got[0].Text != "what is" {
		t.Fatalf("unexpected first event %+v", got[0])
	}
	if got[2].Text != "what is the weather" {
		t.Fatalf("expected interim folded into segments, got %q", got[2].Text)
	}
	last := got[3]
	if !last.Final || last.Text != "what is the weather today" || last.Seq != 3 {
		t.Fatalf("unexpected final %+v", last)
	}

	s.transcript("next", false, false)
	if ev := <-s.events; ev.Seq != 0 || ev.Text != "next" {
		t.Fatalf("expected fresh utterance, got %+v", ev)
	}
}

func TestUtteranceEndClosesPendingSegments(t *testing.T) {
	s := newTestStream()
	s.transcript("turn it off", true, false)
	<-s.events
	s.transcript("", true, true)
	ev := <-s.events
	if !ev.Final || ev.Text != "turn it off" {
		t.Fatalf("unexpected event %+v", ev)
	}
	s.transcript("", true, true)
	select {
	case ev := <-s.events:
		t.Fatalf("unexpected event for empty utterance %+v", ev)
	default:
	}
}

func TestFinishIsIdempotent(t *testing.T) {
	s := newTestStream()
	s.finish()
	s.finish()
	s.transcript("late", true, true)
	if _, ok := <-s.events; ok {
		t.Fatalf("expected closed channel")
	}
}

func TestFullBufferKeepsFinals(t *testing.T) {
	s := newTestStreamSized(2)
	defer s.cancel()
	s.transcript("hel", false, false)
	s.transcript("hello", false, false)
	s.transcript("hello w", false, false)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.transcript("hello world", true, true)
	}()

	var finals []stt.Event
	for i := 0; i < 3; i++ {
		select {
		case ev := <-s.events:
			if ev.Final {
				finals = append(finals, ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("final never delivered")
		}
	}
	<-done
	if len(finals) != 1 || finals[0].Text != "hello world" {
		t.Fatalf("unexpected finals %+v", finals)
	}
}

func TestBlockedFinalGivesUpOnClose(t *testing.T) {
	s := newTestStreamSized(1)
	s.transcript("partial", false, false)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.transcript("final", true, true)
	}()
	s.cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("final send did not give up after close")
	}
}
