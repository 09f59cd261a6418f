// Package transport wraps a single WebSocket connection as a read/write
// byte-frame pair, the minimal surface the session layer needs, built on
// github.com/gorilla/websocket.
package transport

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// DefaultWriteTimeout bounds how long a single Write may block on a slow
// or wedged connection.
const DefaultWriteTimeout = 10 * time.Second

// WS is a single WebSocket connection. Connect must succeed before Listen
// or Write are called; a WS is not reusable once Close returns.
type WS struct {
	conn *websocket.Conn

	writeMu sync.Mutex
}

// Connect dials url and upgrades to a WebSocket connection.
func (ws *WS) Connect(ctx context.Context, url string) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return errors.Wrapf(err, "transport: dial %s", url)
	}
	ws.conn = conn
	return nil
}

// Listen reads frames until ctx is canceled or the connection errors, and
// sends each text/binary payload to ch. It returns nil on a clean
// cancellation, and a wrapped error otherwise. The caller owns ch and must
// keep draining it: a pending send is abandoned once ctx is canceled, but
// until then a consumer that stops draining ch blocks the read loop.
func (ws *WS) Listen(ctx context.Context, ch chan<- []byte) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			ws.conn.Close()
		case <-done:
		}
	}()

	for {
		_, msg, err := ws.conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return errors.Wrap(err, "transport: read")
		}

		select {
		case ch <- msg:
		case <-ctx.Done():
			return nil
		}
	}
}

// Write sends a single text frame, serializing concurrent writers (the
// gorilla/websocket connection itself permits only one writer at a time).
func (ws *WS) Write(ctx context.Context, msg []byte) error {
	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()

	deadline := time.Now().Add(DefaultWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := ws.conn.SetWriteDeadline(deadline); err != nil {
		return errors.Wrap(err, "transport: set write deadline")
	}
	if err := ws.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return errors.Wrap(err, "transport: write")
	}
	return nil
}

// Close sends a close frame (best effort) and tears down the connection.
func (ws *WS) Close() error {
	_ = ws.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return ws.conn.Close()
}
