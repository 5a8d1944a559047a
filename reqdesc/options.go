package reqdesc

import (
	"fmt"
	"time"
)

// Direction selects forward or backward traversal for a read/stream/
// subscribe operation.
type Direction int

const (
	Forwards Direction = iota
	Backwards
)

// Cursor is the `from` option: Start/End are inclusive on the first chunk
// only; a Revision cursor is exclusive, so the next chunk's first event is
// strictly after it.
type Cursor struct {
	Start    bool
	End      bool
	Revision uint64 // meaningful only when !Start && !End
}

// StartCursor is the `:start` option.
func StartCursor() Cursor { return Cursor{Start: true} }

// EndCursor is the `:end` option.
func EndCursor() Cursor { return Cursor{End: true} }

// RevisionCursor is an exclusive numeric-revision `from` option.
func RevisionCursor(revision uint64) Cursor { return Cursor{Revision: revision} }

// ReadOptions configures read_chunk, stream, and subscribe.
type ReadOptions struct {
	From         Cursor
	Direction    Direction
	MaxCount     uint64 // chunk_size / max_count; must be positive
	Filter       []byte // opaque server-side filter descriptor, pass-through
	ResolveLinks bool   // default true
	Timeout      time.Duration
	Raw          bool
}

// DefaultReadOptions returns defaults (resolve_links: true).
func DefaultReadOptions() ReadOptions {
	return ReadOptions{ResolveLinks: true, MaxCount: 100}
}

// Expectation is the append/delete precondition.
type Expectation struct {
	Any      bool
	Exists   bool
	NoStream bool
	Revision uint64
	hasRev   bool
}

func ExpectAny() Expectation      { return Expectation{Any: true} }
func ExpectExists() Expectation   { return Expectation{Exists: true} }
func ExpectNoStream() Expectation { return Expectation{NoStream: true} }
func ExpectRevision(rev uint64) Expectation {
	return Expectation{Revision: rev, hasRev: true}
}

func (e Expectation) IsRevision() bool { return e.hasRev }

func (e Expectation) String() string {
	switch {
	case e.Any:
		return "any"
	case e.Exists:
		return "exists"
	case e.NoStream:
		return "empty"
	default:
		return fmt.Sprintf("revision %d", e.Revision)
	}
}

// AppendOptions configures append.
type AppendOptions struct {
	Expect  Expectation
	Timeout time.Duration
	Raw     bool
}

// DeleteOptions configures delete.
type DeleteOptions struct {
	Expect    Expectation
	Timeout   time.Duration
	Tombstone bool
}

// SubscribeOptions configures subscribe; it reuses ReadOptions unchanged.
// The subscription-mode flag is not an option here: the Codec's
// EncodeSubscribeRequest sets it when building the request.
type SubscribeOptions struct {
	ReadOptions
}
