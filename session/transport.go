package session

import "context"

// Transport is a byte pipe to the device's command characteristic.
// Implementations push notification bytes back through
// Session.HandleNotify; the session never reads from the transport
// directly.
//
// The two real implementations are a direct BLE link and a
// WebSocket-relayed proxy link. Both deliver each notification as one
// complete packet.
type Transport interface {
	// Write sends one complete command packet.
	Write(ctx context.Context, data []byte) error

	// Close releases the underlying link.
	Close() error
}
