package spear

import (
	"context"

	"github.com/hkrutzer/spear/reqdesc"
	"github.com/hkrutzer/spear/readstream"
)

// StreamIterator is a lazy, pull-based sequence of Events: the public
// façade over readstream.Iterator. Consuming it is destructive, but a
// fresh StreamIterator over the same stream yields the same sequence
// modulo new appends (spec.md §4.4).
type StreamIterator struct {
	it       *readstream.Iterator
	raw      bool
	fromRead func([]byte) (Event, error)
}

// Next pulls the next Event, or (Event{}, true, nil) once the stream is
// exhausted, or (Event{}, true, err) if a chunk request failed partway
// through.
func (s *StreamIterator) Next(ctx context.Context) (Event, bool, error) {
	payload, done, err := s.it.Next(ctx)
	if done {
		return Event{}, true, err
	}
	if s.raw {
		return Event{Raw: payload}, false, nil
	}
	ev, err := s.fromRead(payload)
	if err != nil {
		return Event{}, true, err
	}
	return ev, false, nil
}

// Close abandons any in-flight chunk request.
func (s *StreamIterator) Close() { s.it.Close() }

func (c *Client) newIterator(stream string, opts reqdesc.ReadOptions) *StreamIterator {
	encode := func(o reqdesc.ReadOptions) []byte { return c.codec.EncodeReadRequest(stream, o) }
	it := readstream.New(c.conn, pathRead, opts, c.authHeader, encode, c.codec.NextCursor)
	return &StreamIterator{it: it, raw: opts.Raw, fromRead: c.codec.FromReadResponse}
}

// Stream reads an EventStore stream lazily, issuing one server-streaming
// read-chunk RPC per chunk of opts.MaxCount events (spec.md §4.4). Pass
// stream == "" to read $all.
func (c *Client) Stream(stream string, opts reqdesc.ReadOptions) *StreamIterator {
	return c.newIterator(stream, opts)
}

// ReadChunkResult is the bounded, aggregated result of ReadChunk.
type ReadChunkResult struct {
	Events []Event
	Err    error
}

// ReadChunk issues exactly one server-streaming Streams.Read RPC bounded
// by opts.MaxCount and aggregates every event into one result (spec.md
// §4.4, §6). opts.MaxCount must not be "infinity" for this operation.
// Unlike Stream, it never opens a second chunk: the server is trusted to
// stop at max_count, and an early server-side end-of-stream is reported
// as a short result rather than refilled.
func (c *Client) ReadChunk(ctx context.Context, stream string, opts reqdesc.ReadOptions) ReadChunkResult {
	body := reqdesc.NewSingleMessage(c.codec.EncodeReadRequest(stream, opts))
	desc := reqdesc.New(pathRead, body, reqdesc.Iterator, opts.Timeout, c.authHeader)

	state, id, err := c.conn.SubmitStreaming(ctx, desc)
	if err != nil {
		return ReadChunkResult{Err: err}
	}
	defer c.conn.Cancel(id)

	var events []Event
	for {
		payload, done, err := state.Next()
		if done {
			if err != nil {
				return ReadChunkResult{Events: events, Err: err}
			}
			return ReadChunkResult{Events: events}
		}
		if opts.Raw {
			events = append(events, Event{Raw: payload})
			continue
		}
		ev, convErr := c.codec.FromReadResponse(payload)
		if convErr != nil {
			return ReadChunkResult{Events: events, Err: convErr}
		}
		events = append(events, ev)
	}
}
