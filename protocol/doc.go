// Package protocol implements the reverse-engineered VisionAir BLE
// command/response protocol spoken by Ventilairsec Vision'R range
// ventilation devices (Purevent, Urban, Cube).
//
// The wire format is a simple binary envelope: a fixed 2-byte magic
// (0xa5 0xb6), a 1-byte packet type, a variable payload, and a trailing
// XOR checksum computed over the type byte and payload. The device
// exposes one write characteristic for commands and one notify
// characteristic that streams every response; there is no request
// identifier on the wire.
//
// The package is split the same way the protocol is:
//
//   - frame.go: the envelope codec (Encode / Decode / Checksum)
//   - parser.go: per-response-type decoders producing typed records
//   - constructor.go: per-operation command builders
//
// Field offsets come from capture analysis. Offsets whose meaning is not
// confirmed by evidence are decoded but explicitly tagged unverified in
// the record types; they are never interpreted as if they were confirmed.
// Every record keeps the complete raw packet so undecoded regions remain
// available to consumers as the protocol understanding grows.
package protocol
