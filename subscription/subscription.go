// Package subscription implements Subscription Delivery: the Push
// disposition wrapper handed back to a subscribe caller. Delivery happens
// inline on the Connection Actor's per-request worker goroutine, so the
// callback supplied to Subscribe must never block on anything that in
// turn waits on the same connection (doing so would deadlock the actor
// that is trying to deliver to it).
package subscription

import (
	"context"

	"github.com/hkrutzer/spear/reqdesc"
	"github.com/hkrutzer/spear/transport"
)

// EncodeRequest builds the opaque subscribe request payload; the concrete
// message schema is a collaborator outside this package.
type EncodeRequest func(opts reqdesc.SubscribeOptions) []byte

// state is the minimal slice of *reqstate.State a Handle needs.
type state interface {
	Done() <-chan struct{}
}

// canceller is the minimal slice of *transport.Conn a Handle needs; kept
// as an interface so tests can stub it without a live connection.
type canceller interface {
	Cancel(transport.RequestID)
}

// Handle is a live subscription: the pairing of a connection and the
// request id routing table entry backing it.
type Handle struct {
	conn  canceller
	id    transport.RequestID
	state state
}

// Subscribe opens a Push-disposition server-streaming RPC: onEvent is
// invoked once per decoded message, synchronously, in wire order, until
// the subscription ends or onEvent itself returns an error (which cancels
// the subscription). Subscribe itself returns once the server acknowledges
// the stream open, not once the subscription ends.
func Subscribe(ctx context.Context, conn *transport.Conn, path string, opts reqdesc.SubscribeOptions, headers map[string]string, encode EncodeRequest, onEvent reqdesc.PushDelivery) (*Handle, error) {
	desc := reqdesc.New(path, reqdesc.NewSingleMessage(encode(opts)), reqdesc.Push, opts.Timeout, headers)
	desc.Delivery = onEvent

	st, id, err := conn.SubmitStreaming(ctx, desc)
	if err != nil {
		return nil, err
	}
	return &Handle{conn: conn, id: id, state: st}, nil
}

// Cancel ends the subscription. Idempotent: cancelling an already-ended
// subscription, or one whose handle is stale, is a no-op.
func (h *Handle) Cancel() {
	h.conn.Cancel(h.id)
}

// Done returns a channel closed once the subscription has ended, whether
// by cancellation, delivery failure, or a server-sent terminal status.
func (h *Handle) Done() <-chan struct{} {
	return h.state.Done()
}
