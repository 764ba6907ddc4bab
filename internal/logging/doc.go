// Package logging provides structured logging for the VisionAir tools.
//
// This package wraps zap logger with convenience functions for common logging
// patterns used throughout the module. It provides both general logging
// functions and specialized functions for protocol-specific logging needs.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (hex dumps, packet decoding)
//   - Info: Normal operations (connections, messages, state changes)
//   - Warn: Non-fatal issues (connection drops, retries, stale reads)
//   - Error: Fatal issues (startup failures, critical errors)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Device connected",
//	    zap.String("relay", "wss://relay.example/ws"),
//	    zap.Uint32("device_id", 12345),
//	)
//
// # Specialized Logging
//
// Connection Logging:
//
//	logging.LogConnection(relayURL, "relay connected")
//	logging.LogConnection(relayURL, "relay closed")
//
// Packet Logging:
//
//	logging.LogPacket("tx", "Request", frame.Raw)
//	logging.LogRawBytes("notification", data)
//
// # Configuration
//
// Logging is silent by default. Set VISIONAIR_LOG_LEVEL (debug, info,
// warn, error) or call Initialize explicitly:
//
//	if err := logging.InitializeFromEnv(); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap logger
// handles synchronization automatically.
package logging
