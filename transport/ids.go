package transport

// RequestID is the Connection Actor's own logical request identifier,
// kept monotonically increasing and odd, mirroring the client-initiated
// HTTP/2 stream id convention. golang.org/x/net/http2.ClientConn assigns
// the real wire-level stream id internally and does not expose it, so
// this is the routing-table key instead.
type RequestID uint64

// idAllocator hands out the client-initiated odd sequence 1, 3, 5, ...
type idAllocator struct {
	next uint64
}

func newIDAllocator() *idAllocator {
	return &idAllocator{next: 1}
}

func (a *idAllocator) allocate() RequestID {
	id := a.next
	a.next += 2
	return RequestID(id)
}
