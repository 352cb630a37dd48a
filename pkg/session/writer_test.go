package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harunnryd/bytegate/pkg/errorsx"
	connmock "github.com/harunnryd/bytegate/pkg/transports/mock"
)

func TestWriterKeepsOrderAndClosesOnShutdown(t *testing.T) {
	conn := connmock.NewConn()
	frames := make(chan outboundFrame, 4)
	for _, text := range []string{"a", "b", "c"} {
		frames <- outboundFrame{messageType: websocket.TextMessage, data: []byte(text)}
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &outboundWriter{conn: conn, frames: frames, pingInterval: time.Hour, writeTimeout: time.Second}
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for _, want := range []string{"a", "b", "c"} {
		f, ok := conn.Next(time.Second)
		if !ok || string(f.Data) != want {
			t.Fatalf("expected %q, got %q", want, f.Data)
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	written := conn.Written()
	if last := written[len(written)-1]; last.Type != websocket.CloseMessage {
		t.Fatalf("expected a close frame last, got type %d", last.Type)
	}
	if !conn.Closed() {
		t.Fatalf("connection not closed")
	}
}

func TestWriterFailureIsTransportClosed(t *testing.T) {
	conn := connmock.NewConn()
	conn.FailWrites(errors.New("broken pipe"))
	frames := make(chan outboundFrame, 1)
	frames <- outboundFrame{messageType: websocket.TextMessage, data: []byte("x")}
	w := &outboundWriter{conn: conn, frames: frames, pingInterval: time.Hour, writeTimeout: time.Second}
	err := w.Run(context.Background())
	if !errorsx.HasReason(err, errorsx.ReasonTransportClosed) {
		t.Fatalf("expected transport closed, got %v", err)
	}
}
