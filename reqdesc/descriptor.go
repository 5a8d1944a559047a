// Package reqdesc defines the immutable Request Descriptor and the
// options bags the public operations build them from. Message bodies are
// opaque []byte: the concrete EventStore RPC schemas are an external
// collaborator, so this package never encodes or decodes a payload itself.
package reqdesc

import "time"

// Disposition selects how a Request State delivers its
// decoded messages.
type Disposition int

const (
	// Aggregate collects every decoded message and replies once.
	Aggregate Disposition = iota
	// Iterator hands back a pull-based consumer.
	Iterator
	// Push invokes a delivery callback per decoded message.
	Push
)

func (d Disposition) String() string {
	switch d {
	case Aggregate:
		return "aggregate"
	case Iterator:
		return "iterator"
	case Push:
		return "push"
	default:
		return "unknown"
	}
}

// BodyProducer supplies the raw (unframed) request-body messages for a
// Request Descriptor; the Connection Actor applies the gRPC length-prefix
// framing itself as each message is written to the wire. Next returns the
// next message payload and true, or (nil, false) once the producer is
// exhausted (client- and bidi-streaming request bodies are finite or
// infinite lazy sequences). A unary/server-streaming body is represented
// as a producer that yields exactly one message.
type BodyProducer interface {
	Next() ([]byte, bool)
}

// SingleMessage is a BodyProducer that yields exactly one message, used
// for unary and server-streaming request bodies.
type SingleMessage struct {
	payload []byte
	done    bool
}

// NewSingleMessage wraps a single pre-encoded message as a BodyProducer.
func NewSingleMessage(payload []byte) *SingleMessage {
	return &SingleMessage{payload: payload}
}

func (s *SingleMessage) Next() ([]byte, bool) {
	if s.done {
		return nil, false
	}
	s.done = true
	return s.payload, true
}

// FuncProducer adapts a plain function into a BodyProducer, for
// client-streaming and bidi bodies supplied as a lazy sequence (e.g. the
// append body producer walking the caller's event slice).
type FuncProducer func() ([]byte, bool)

func (f FuncProducer) Next() ([]byte, bool) { return f() }

// PushDelivery is the callback a Push-disposition Request Descriptor
// invokes per decoded message. It must not block on the
// same Connection Actor that is calling it: it should do a
// non-blocking send to whatever sink the caller owns.
type PushDelivery func(payload []byte) error

// Descriptor is the immutable value describing one RPC invocation.
type Descriptor struct {
	Path         string            // "/<service>/<rpc>"
	Headers      map[string]string // lowercased header names
	Body         BodyProducer
	Disposition  Disposition
	Delivery     PushDelivery // non-nil iff Disposition == Push
	Deadline     time.Duration
}

// New builds a Descriptor with the required gRPC headers
// merged in; extra carries additional headers such as authorization.
func New(path string, body BodyProducer, disposition Disposition, deadline time.Duration, extra map[string]string) *Descriptor {
	headers := map[string]string{
		"content-type": "application/grpc+proto",
		"te":           "trailers",
	}
	for k, v := range extra {
		headers[k] = v
	}
	return &Descriptor{
		Path:        path,
		Headers:     headers,
		Body:        body,
		Disposition: disposition,
		Deadline:    deadline,
	}
}
