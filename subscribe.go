package spear

import (
	"context"

	"github.com/hkrutzer/spear/reqdesc"
	"github.com/hkrutzer/spear/subscription"
)

// Subscriber receives one Notification per delivered message, synchronously
// and in wire order, until the subscription ends. It must not block on
// anything that in turn waits on this Client (spec.md §5 reentrancy
// restriction) — do a non-blocking send to whatever sink you own.
type Subscriber func(Notification) error

// SubscribeOptions is re-exported from reqdesc for call-site convenience.
type SubscribeOptions = reqdesc.SubscribeOptions

// Handle is the opaque Subscription Handle (spec.md §3): an ordered pair
// of connection identity and request-state key. It is a pure key — it
// does not back-reference the Client beyond what Cancel needs.
type Handle struct {
	h *subscription.Handle
}

func (h *Handle) cancel() {
	if h == nil || h.h == nil {
		return
	}
	h.h.Cancel()
}

// Done returns a channel closed once the subscription has ended, whether
// by cancellation, delivery failure, or a server-sent terminal status. No
// synthetic "end" notification is ever delivered (spec.md §4.3); a dead
// handle is discovered by Done closing or Cancel becoming a no-op.
func (h *Handle) Done() <-chan struct{} {
	return h.h.Done()
}

// Subscribe opens a Push-disposition server-streaming Streams.Read RPC
// with the subscription-mode flag set by Codec.EncodeSubscribeRequest (spec.md
// §4.5, §6). It returns once the server acknowledges the stream open;
// subscriber is then invoked once per decoded message until the
// subscription ends.
func (c *Client) Subscribe(ctx context.Context, stream string, subscriber Subscriber, opts SubscribeOptions) (*Handle, error) {
	encode := func(o reqdesc.SubscribeOptions) []byte {
		return c.codec.EncodeSubscribeRequest(stream, o.ReadOptions)
	}
	deliver := func(payload []byte) error {
		if opts.Raw {
			return subscriber(Notification{Payload: payload})
		}
		ev, err := c.codec.FromReadResponse(payload)
		if err != nil {
			return err
		}
		return subscriber(Notification{Event: &ev})
	}

	h, err := subscription.Subscribe(ctx, c.conn, pathRead, opts, c.authHeader, encode, deliver)
	if err != nil {
		return nil, err
	}
	return &Handle{h: h}, nil
}
