package protocol

import (
	"errors"
	"fmt"
)

// ErrMalformedFrame reports input that is not a protocol packet at all:
// too short to hold the envelope, or not starting with the magic bytes.
var ErrMalformedFrame = errors.New("malformed frame")

// ChecksumError reports a packet whose trailing XOR checksum disagrees
// with the checksum recomputed over its type and payload. Single-byte
// corruption anywhere in the envelope is always detected by the XOR
// scheme.
type ChecksumError struct {
	Want byte // checksum carried by the packet
	Got  byte // checksum recomputed from the packet contents
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: packet carries 0x%02x, computed 0x%02x", e.Want, e.Got)
}

// TruncatedPayloadError reports a packet too short to hold a required
// field. A truncated payload indicates a transport-level defect; the
// decoders never zero-fill missing fields.
type TruncatedPayloadError struct {
	Kind   string // packet kind being decoded
	Length int    // actual packet length
	Need   int    // minimum length required
}

func (e *TruncatedPayloadError) Error() string {
	return fmt.Sprintf("truncated %s payload: %d bytes, need at least %d", e.Kind, e.Length, e.Need)
}

// InvalidArgumentError reports a builder argument rejected before any
// bytes were produced. Validation is always local and synchronous, never
// deferred to the device.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// WrongTypeError reports a decoder invoked on a frame of a different
// packet type.
type WrongTypeError struct {
	Want byte
	Got  byte
}

func (e *WrongTypeError) Error() string {
	return fmt.Sprintf("wrong packet type: want %s, got %s", PacketTypeName(e.Want), PacketTypeName(e.Got))
}

// IsDecodeError reports whether err is any decode-time failure
// (malformed frame, checksum mismatch, truncation, wrong type).
func IsDecodeError(err error) bool {
	var ck *ChecksumError
	var tr *TruncatedPayloadError
	var wt *WrongTypeError
	return errors.Is(err, ErrMalformedFrame) || errors.As(err, &ck) || errors.As(err, &tr) || errors.As(err, &wt)
}
