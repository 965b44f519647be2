// Package binaryproto implements the gateway's length-prefixed binary
// framing: a 4-byte big-endian header carrying the total frame length,
// followed by the payload.
package binaryproto

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the size in bytes of the length prefix.
const HeaderSize = 4

// MaxFrameSize is the default ceiling on total frame size (header + payload)
// the gateway will allocate for. Callers that need a different ceiling
// should check length themselves before calling Decode.
const MaxFrameSize = 16 * 1024 * 1024

// ErrFrameTooLarge is returned by DecodeLimit when a frame's declared total
// length exceeds the supplied limit.
var ErrFrameTooLarge = errors.New("binaryproto: frame exceeds max size")

// Encode wraps payload in a length-prefixed frame: a 4-byte big-endian
// header holding HeaderSize+len(payload), followed by payload itself.
func Encode(payload []byte) []byte {
	total := HeaderSize + len(payload)
	buf := make([]byte, total)
	binary.BigEndian.PutUint32(buf, uint32(total))
	copy(buf[HeaderSize:], payload)
	return buf
}

// Decode extracts a single complete frame from the front of buf.
//
// It returns the frame's payload and the number of bytes consumed. If buf
// does not yet hold a complete frame — fewer than HeaderSize bytes, or a
// declared total length greater than len(buf) — it returns (nil, 0) and the
// caller should wait for more data. Decode never returns a partial frame.
//
// The caller is expected to loop: call Decode, process the returned
// payload, advance its buffer by consumed bytes, and call Decode again until
// it returns 0.
func Decode(buf []byte) (payload []byte, consumed int) {
	if len(buf) < HeaderSize {
		return nil, 0
	}
	total := int(binary.BigEndian.Uint32(buf))
	if total < HeaderSize {
		return nil, 0
	}
	if len(buf) < total {
		return nil, 0
	}
	return buf[HeaderSize:total], total
}

// DecodeLimit behaves like Decode but rejects frames whose declared total
// length exceeds maxSize, returning ErrFrameTooLarge instead of waiting for
// more data that the caller should never allocate for.
func DecodeLimit(buf []byte, maxSize int) (payload []byte, consumed int, err error) {
	if len(buf) < HeaderSize {
		return nil, 0, nil
	}
	total := int(binary.BigEndian.Uint32(buf))
	if total < HeaderSize {
		return nil, 0, fmt.Errorf("binaryproto: total_length %d below header size", total)
	}
	if total > maxSize {
		return nil, 0, ErrFrameTooLarge
	}
	if len(buf) < total {
		return nil, 0, nil
	}
	return buf[HeaderSize:total], total, nil
}
