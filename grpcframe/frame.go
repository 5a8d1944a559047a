// Package grpcframe implements the gRPC length-prefix framing codec: a
// pull-based decoder that tolerates payloads split across arbitrary
// network reads, plus gRPC trailer status parsing.
package grpcframe

import (
	"encoding/binary"
	"fmt"

	"google.golang.org/grpc/codes"

	"github.com/hkrutzer/spear/rpcerr"
)

// HeaderLength is the 5-byte gRPC frame header: 1 compression-flag byte
// followed by 4 big-endian length bytes.
const HeaderLength = 5

// DefaultMaxMessageSize is the default ceiling on a single frame's payload
// length.
const DefaultMaxMessageSize = 16 * 1024 * 1024

// Encode produces a single gRPC frame for payload. The compression flag is
// always 0 in this design.
func Encode(payload []byte) []byte {
	frame := make([]byte, HeaderLength+len(payload))
	frame[0] = 0
	binary.BigEndian.PutUint32(frame[1:HeaderLength], uint32(len(payload))) //nolint:gosec // bounded by MaxMessageSize
	copy(frame[HeaderLength:], payload)
	return frame
}

// Decoder incrementally parses gRPC frames out of arbitrarily chunked
// byte slices, emitting complete payloads and retaining a residual partial
// frame between calls.
type Decoder struct {
	maxMessageSize int

	buf        []byte // accumulator: partial header and/or partial payload
	wantLength int     // payload length once the header is known; -1 if unknown
}

// NewDecoder creates a Decoder with the given payload size ceiling. A
// ceiling of 0 selects DefaultMaxMessageSize.
func NewDecoder(maxMessageSize int) *Decoder {
	if maxMessageSize <= 0 {
		maxMessageSize = DefaultMaxMessageSize
	}
	return &Decoder{maxMessageSize: maxMessageSize, wantLength: -1}
}

// Feed appends chunk to the accumulator and returns every payload that
// became complete as a result, in wire order. It never returns a partial
// payload; the residual stays buffered for the next call.
func (d *Decoder) Feed(chunk []byte) ([][]byte, error) {
	d.buf = append(d.buf, chunk...)

	var out [][]byte
	for {
		if d.wantLength < 0 {
			if len(d.buf) < HeaderLength {
				return out, nil
			}
			flag := d.buf[0]
			if flag == 1 {
				return out, &rpcerr.Grpc{Code: codes.Internal, Message: "compressed frame received with no negotiated encoding"}
			}
			if flag != 0 {
				return out, &rpcerr.DecodeError{Cause: fmt.Errorf("invalid compression flag %d", flag)}
			}
			length := int(binary.BigEndian.Uint32(d.buf[1:HeaderLength]))
			if length > d.maxMessageSize {
				return out, &rpcerr.Grpc{
					Code:    codes.ResourceExhausted,
					Message: fmt.Sprintf("frame length %d exceeds ceiling %d", length, d.maxMessageSize),
				}
			}
			d.wantLength = length
			d.buf = d.buf[HeaderLength:]
		}

		if len(d.buf) < d.wantLength {
			return out, nil
		}

		payload := make([]byte, d.wantLength)
		copy(payload, d.buf[:d.wantLength])
		d.buf = d.buf[d.wantLength:]
		d.wantLength = -1
		out = append(out, payload)
	}
}

// Pending reports the number of bytes currently buffered awaiting
// completion of the in-progress frame.
func (d *Decoder) Pending() int {
	return len(d.buf)
}
