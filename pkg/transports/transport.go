// Package transports defines the duplex connection a session runs on.
package transports

import (
	"context"
	"time"
)

// Frame types, numerically equal to the websocket opcodes.
const (
	TextMessage   = 1
	BinaryMessage = 2
	CloseMessage  = 8
	PingMessage   = 9
	PongMessage   = 10
)

// Conn is one client connection. ReadMessage has a single caller and the write
// methods have a single caller; the two sides may run concurrently.
// *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// ConnInfo describes an accepted connection.
type ConnInfo struct {
	SessionID  string
	RemoteAddr string
	UserAgent  string
}

// Handler owns a connection until ServeConn returns.
type Handler interface {
	ServeConn(ctx context.Context, conn Conn, info ConnInfo) error
}

type HandlerFunc func(ctx context.Context, conn Conn, info ConnInfo) error

func (f HandlerFunc) ServeConn(ctx context.Context, conn Conn, info ConnInfo) error {
	return f(ctx, conn, info)
}

// ReadyReporter allows transports to expose readiness metadata (e.g., listen URLs).
// Implementations are optional and used for informational logging only.
type ReadyReporter interface {
	ReadyFields() map[string]any
}
