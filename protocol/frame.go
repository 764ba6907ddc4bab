package protocol

import (
	"encoding/hex"
	"fmt"
)

// Frame is the decoded wire envelope: magic + type + payload + checksum.
// Frames are immutable value objects; Raw holds the complete packet bytes
// so undecoded regions stay available alongside the typed view.
type Frame struct {
	Type    byte
	Payload []byte // bytes between the type byte and the trailing checksum
	Raw     []byte // complete packet including magic and checksum
}

// Checksum computes the XOR checksum over data. On the wire the checksum
// covers everything between the magic bytes and the trailing checksum
// byte, i.e. the type byte plus the payload.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum ^= b
	}
	return sum
}

// Encode builds a complete packet for the given type and payload:
// magic, type, payload, XOR checksum.
func Encode(typ byte, payload []byte) *Frame {
	raw := make([]byte, 0, 4+len(payload))
	raw = append(raw, MagicByte0, MagicByte1, typ)
	raw = append(raw, payload...)
	raw = append(raw, Checksum(raw[2:]))

	return &Frame{
		Type:    typ,
		Payload: raw[3 : len(raw)-1],
		Raw:     raw,
	}
}

// Decode parses a complete packet. The input must start with the magic
// bytes and be at least MinPacketSize long (ErrMalformedFrame otherwise),
// and its trailing checksum must match the recomputed one (ChecksumError
// otherwise). An unrecognized type byte still decodes successfully with
// an uninterpreted payload, so callers can pass through or log packet
// types they do not yet understand.
func Decode(data []byte) (*Frame, error) {
	if len(data) < MinPacketSize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrMalformedFrame, len(data), MinPacketSize)
	}
	if data[0] != MagicByte0 || data[1] != MagicByte1 {
		return nil, fmt.Errorf("%w: bad magic 0x%02x%02x", ErrMalformedFrame, data[0], data[1])
	}

	want := data[len(data)-1]
	got := Checksum(data[2 : len(data)-1])
	if want != got {
		return nil, &ChecksumError{Want: want, Got: got}
	}

	raw := make([]byte, len(data))
	copy(raw, data)

	return &Frame{
		Type:    raw[2],
		Payload: raw[3 : len(raw)-1],
		Raw:     raw,
	}, nil
}

// String returns a debug representation of the frame.
func (f *Frame) String() string {
	return fmt.Sprintf("Frame{type=%s, len=%d, hex=%s}",
		PacketTypeName(f.Type), len(f.Raw), hex.EncodeToString(f.Raw))
}
