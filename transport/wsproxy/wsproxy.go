// Package wsproxy implements the proxy transport: command and
// notification bytes relayed through a WebSocket endpoint that holds
// the actual BLE link to the device. Each binary WebSocket message
// carries exactly one protocol packet in either direction.
package wsproxy

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/visionair/internal/logging"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second

	// maxMessageSize bounds relay messages; the largest protocol packet
	// is 182 bytes, anything beyond this is a misbehaving relay.
	maxMessageSize = 1024
)

// Transport is a session.Transport over a WebSocket relay.
type Transport struct {
	conn   *websocket.Conn
	notify func([]byte)

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to the relay at url (ws:// or wss://) and starts the
// read pump. notify receives every binary message from the relay; wire
// it to Session.HandleNotify.
func Dial(ctx context.Context, url string, header http.Header, notify func([]byte)) (*Transport, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial relay %s: %w (HTTP %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial relay %s: %w", url, err)
	}
	conn.SetReadLimit(maxMessageSize)
	logging.LogConnection(url, "relay connected")

	t := &Transport{
		conn:   conn,
		notify: notify,
		done:   make(chan struct{}),
	}
	go t.readPump()
	return t, nil
}

// Write sends one command packet as a binary message. The context
// deadline, if any, bounds the write.
func (t *Transport) Write(ctx context.Context, data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := t.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("relay write: %w", err)
	}
	logging.LogWebSocketMessage(t.conn.RemoteAddr().String(), "tx", websocket.BinaryMessage, data)
	return nil
}

func (t *Transport) readPump() {
	defer close(t.done)
	for {
		msgType, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Warn("Relay read failed", zap.Error(err))
			} else {
				logging.LogConnection(t.conn.RemoteAddr().String(), "relay closed")
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			logging.Debug("Ignoring non-binary relay message", zap.Int("type", msgType))
			continue
		}
		logging.LogWebSocketMessage(t.conn.RemoteAddr().String(), "rx", msgType, data)
		t.notify(data)
	}
}

// Done is closed when the read pump exits, i.e. the relay link is gone.
// Callers watch it to drive reconnects.
func (t *Transport) Done() <-chan struct{} {
	return t.done
}

// Close sends a close frame and tears the connection down.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.writeMu.Lock()
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		t.writeMu.Unlock()
		err = t.conn.Close()
	})
	return err
}
