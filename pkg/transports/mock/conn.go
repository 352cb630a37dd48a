// Package mock provides an in-memory transports.Conn for tests.
package mock

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/harunnryd/bytegate/pkg/transports"
)

// Frame is one message written to or read from the connection.
type Frame struct {
	Type int
	Data []byte
}

// Conn plays the client side of a session. Tests push inbound frames with
// Send and inspect what the server wrote with Written or Next.
type Conn struct {
	inbound chan Frame
	written chan Frame

	mu       sync.Mutex
	frames   []Frame
	closed   bool
	done     chan struct{}
	writeErr error
}

func NewConn() *Conn {
	return &Conn{
		inbound: make(chan Frame, 256),
		written: make(chan Frame, 1024),
		done:    make(chan struct{}),
	}
}

// Send queues a client frame.
func (c *Conn) Send(messageType int, data []byte) {
	select {
	case c.inbound <- Frame{Type: messageType, Data: data}:
	case <-c.done:
	}
}

// SendJSON queues v as a text frame.
func (c *Conn) SendJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.Send(transports.TextMessage, b)
	return nil
}

// FailWrites makes every later write return err.
func (c *Conn) FailWrites(err error) {
	c.mu.Lock()
	c.writeErr = err
	c.mu.Unlock()
}

func (c *Conn) ReadMessage() (int, []byte, error) {
	select {
	case f := <-c.inbound:
		return f.Type, f.Data, nil
	case <-c.done:
		return 0, nil, io.EOF
	}
}

func (c *Conn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("mock conn: closed")
	}
	if c.writeErr != nil {
		return c.writeErr
	}
	f := Frame{Type: messageType, Data: append([]byte(nil), data...)}
	c.frames = append(c.frames, f)
	select {
	case c.written <- f:
	default:
	}
	return nil
}

func (c *Conn) WriteControl(messageType int, data []byte, _ time.Time) error {
	return c.WriteMessage(messageType, data)
}

func (c *Conn) SetWriteDeadline(time.Time) error { return nil }

// Close ends the connection from either side.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Written returns every frame written so far.
func (c *Conn) Written() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Frame(nil), c.frames...)
}

// Next waits for the next written text frame, skipping control frames.
func (c *Conn) Next(timeout time.Duration) (Frame, bool) {
	deadline := time.After(timeout)
	for {
		select {
		case f := <-c.written:
			if f.Type == transports.TextMessage || f.Type == transports.BinaryMessage {
				return f, true
			}
		case <-deadline:
			return Frame{}, false
		}
	}
}

var _ transports.Conn = (*Conn)(nil)
