// Package spear implements the EventStore 20+ streaming protocol client
// core: a single long-lived HTTP/2 connection multiplexing unary,
// server-streaming, client-streaming, and push-subscription requests,
// built from the grpcframe/reqdesc/reqstate/transport/readstream/
// subscription packages.
package spear

import "github.com/hkrutzer/spear/reqdesc"

// Event is the high-level domain object a read/stream/subscribe call
// hands back once decoded. The concrete EventStore message schema is an
// external collaborator (spec.md §1): this package never parses Raw
// itself, it only threads it through Codec.FromReadResponse, which the
// caller supplies.
type Event struct {
	StreamID  string
	Revision  uint64
	EventType string
	Data      []byte
	Metadata  []byte
	Raw       []byte // the undecoded response payload: set directly in raw mode, otherwise as Codec.FromReadResponse sets it
}

// EventMarker distinguishes a subscription push notification from any
// other message a subscriber endpoint might receive, per spec.md §6.
type EventMarker struct{}

// Notification is the envelope a Subscribe delivery callback receives:
// Event is either the converted domain Event or, when SubscribeOptions.Raw
// is set, nil with Payload holding the raw response bytes instead.
type Notification struct {
	Marker  EventMarker
	Event   *Event
	Payload []byte
}

// AppendEvent is one event a caller wants appended to a stream; EventType
// and Metadata are passed through to Codec.EncodeAppendEvent verbatim.
type AppendEvent struct {
	EventType string
	Data      []byte
	Metadata  []byte
}

// Codec is the opaque encode/decode surface the EventStore RPC message
// schemas must provide (spec.md §1: "treated as opaque encode/decode
// functions"). Every field is required; Connect panics if one is nil,
// matching the teacher's fail-fast construction style
// (rpc/service.go's method registration rejects malformed input eagerly
// rather than deferring the failure to first use).
type Codec struct {
	// EncodeReadRequest builds the opaque Streams.Read request payload for
	// one chunk from a stream name (or "" for $all) and the current
	// options.
	EncodeReadRequest func(stream string, opts reqdesc.ReadOptions) []byte

	// NextCursor derives the cursor that seeds the following chunk from
	// the last message the current chunk delivered.
	NextCursor func(lastPayload []byte) reqdesc.Cursor

	// EncodeSubscribeRequest builds the opaque Streams.Read request payload
	// for a live subscription: same option fields as EncodeReadRequest, but
	// with the subscription-mode flag set so the server keeps the stream
	// open past catch-up instead of closing at end-of-stream.
	EncodeSubscribeRequest func(stream string, opts reqdesc.ReadOptions) []byte

	// FromReadResponse converts one decoded Streams.Read response message
	// into the domain Event. Only called when the caller did not set
	// Raw: true.
	FromReadResponse func(raw []byte) (Event, error)

	// EncodeAppendOptions builds the first client-streaming message of an
	// Append request (the options frame).
	EncodeAppendOptions func(stream string, opts reqdesc.AppendOptions) []byte

	// EncodeAppendEvent builds one subsequent Append client-streaming
	// message (an event frame).
	EncodeAppendEvent func(event AppendEvent) []byte

	// DecodeAppendResult interprets the single Append response message.
	// ok indicates the success variant; expected/current are populated
	// only when ok is false (wrong_expected_version).
	DecodeAppendResult func(raw []byte) (ok bool, expected string, current string, err error)

	// EncodeDeleteRequest builds the unary Streams.Delete/Streams.Tombstone
	// request payload.
	EncodeDeleteRequest func(stream string, opts reqdesc.DeleteOptions) []byte
}

func (c Codec) validate() {
	switch {
	case c.EncodeReadRequest == nil,
		c.NextCursor == nil,
		c.EncodeSubscribeRequest == nil,
		c.FromReadResponse == nil,
		c.EncodeAppendOptions == nil,
		c.EncodeAppendEvent == nil,
		c.DecodeAppendResult == nil,
		c.EncodeDeleteRequest == nil:
		panic("spear: Codec is missing a required encode/decode function")
	}
}
