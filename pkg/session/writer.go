package session

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harunnryd/bytegate/pkg/transports"
)

type outboundFrame struct {
	messageType int
	data        []byte
}

// outboundWriter is the only goroutine that writes to the connection, so the
// client sees frames in enqueue order.
type outboundWriter struct {
	conn         transports.Conn
	frames       <-chan outboundFrame
	pingInterval time.Duration
	writeTimeout time.Duration
}

func (w *outboundWriter) Run(ctx context.Context) error {
	pingInterval := w.pingInterval
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	writeTimeout := w.writeTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			w.flushOnShutdown(writeTimeout)
			_ = w.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
			_ = w.conn.Close()
			return nil
		case <-ping.C:
			if err := w.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeTimeout)); err != nil {
				return errTransportClosed(err)
			}
		case f := <-w.frames:
			if err := w.write(f, writeTimeout); err != nil {
				return errTransportClosed(err)
			}
		}
	}
}

// flushOnShutdown sends what is already queued, within a short budget.
func (w *outboundWriter) flushOnShutdown(writeTimeout time.Duration) {
	budget := 100 * time.Millisecond
	if writeTimeout < budget {
		budget = writeTimeout
	}
	deadline := time.Now().Add(budget)
	for time.Now().Before(deadline) {
		select {
		case f := <-w.frames:
			if err := w.write(f, writeTimeout); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (w *outboundWriter) write(f outboundFrame, writeTimeout time.Duration) error {
	if err := w.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return w.conn.WriteMessage(f.messageType, f.data)
}
