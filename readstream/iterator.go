// Package readstream implements the pull-based chunked reader that backs
// read_chunk and stream: each call to Next either returns a message
// already buffered from the current chunk, or lazily opens the next
// read-chunk RPC when the buffer runs dry, recursing once that RPC's
// first message (or clean end) is available.
package readstream

import (
	"context"

	"github.com/hkrutzer/spear/reqdesc"
	"github.com/hkrutzer/spear/transport"
)

// EncodeChunkRequest builds the opaque request payload for one
// server-streaming read-chunk RPC from the current read options; the
// concrete message schema is a collaborator outside this package.
type EncodeChunkRequest func(opts reqdesc.ReadOptions) []byte

// NextCursor derives the cursor that should seed the following chunk from
// the last message this chunk delivered.
type NextCursor func(lastPayload []byte) reqdesc.Cursor

// stateHandle is the minimal slice of *reqstate.State the iterator needs;
// kept as an interface so tests can stub it without a live connection.
type stateHandle interface {
	Next() ([]byte, bool, error)
}

// chunkOpener issues one read-chunk RPC and returns its live state plus a
// canceller for it.
type chunkOpener func(ctx context.Context, opts reqdesc.ReadOptions) (stateHandle, func(), error)

// Iterator is a lazily-opened, chunk-at-a-time forward or backward reader
// over a stream. It is not safe for concurrent use by multiple goroutines.
type Iterator struct {
	opts    reqdesc.ReadOptions
	advance NextCursor
	open    chunkOpener

	state      stateHandle
	cancel     func()
	exhausted  bool
	chunkCount int
	err        error
}

// New builds an Iterator that will issue its first read-chunk RPC lazily,
// on the first call to Next.
func New(conn *transport.Conn, path string, opts reqdesc.ReadOptions, headers map[string]string, encode EncodeChunkRequest, advance NextCursor) *Iterator {
	opener := func(ctx context.Context, opts reqdesc.ReadOptions) (stateHandle, func(), error) {
		body := reqdesc.NewSingleMessage(encode(opts))
		desc := reqdesc.New(path, body, reqdesc.Iterator, opts.Timeout, headers)
		state, id, err := conn.SubmitStreaming(ctx, desc)
		if err != nil {
			return nil, nil, err
		}
		return state, func() { conn.Cancel(id) }, nil
	}
	return newWithOpener(opts, advance, opener)
}

func newWithOpener(opts reqdesc.ReadOptions, advance NextCursor, open chunkOpener) *Iterator {
	return &Iterator{opts: opts, advance: advance, open: open}
}

// Next returns the next message, or (nil, true, nil) once the stream is
// exhausted, or (nil, true, err) if a chunk request failed.
func (it *Iterator) Next(ctx context.Context) ([]byte, bool, error) {
	if it.err != nil {
		return nil, true, it.err
	}
	if it.exhausted {
		return nil, true, nil
	}
	if it.state == nil {
		if err := it.openChunk(ctx); err != nil {
			it.err = err
			return nil, true, err
		}
	}

	payload, done, err := it.state.Next()
	if err != nil {
		it.err = err
		return nil, true, err
	}
	if done {
		it.state = nil
		if it.chunkCount == 0 || uint64(it.chunkCount) < it.opts.MaxCount {
			// A short chunk means the server hit end-of-stream before
			// filling it: no probe RPC needed, this is terminal.
			it.exhausted = true
			return nil, true, nil
		}
		return it.Next(ctx) // refill: open the next chunk and continue from there
	}

	it.chunkCount++
	if it.advance != nil {
		it.opts.From = it.advance(payload)
	}
	return payload, false, nil
}

func (it *Iterator) openChunk(ctx context.Context) error {
	it.chunkCount = 0
	state, cancel, err := it.open(ctx, it.opts)
	if err != nil {
		return err
	}
	it.state = state
	it.cancel = cancel
	return nil
}

// Close abandons any in-flight chunk request. Safe to call even if no
// request is currently open.
func (it *Iterator) Close() {
	if it.cancel != nil && !it.exhausted {
		it.cancel()
	}
	it.exhausted = true
}
