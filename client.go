package spear

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/hkrutzer/spear/transport"
)

// RPC paths consumed, per spec.md §6.
const (
	pathRead      = "/event_store.client.streams.Streams/Read"
	pathAppend    = "/event_store.client.streams.Streams/Append"
	pathDelete    = "/event_store.client.streams.Streams/Delete"
	pathTombstone = "/event_store.client.streams.Streams/Tombstone"
)

// Options configures Connect: everything past the initial dial is the
// Connection Actor's concern (transport.Options).
type Options struct {
	Scheme            string // "http" or "https"
	Authority         string // host[:port], becomes the :authority header
	Codec             Codec
	KeepaliveInterval time.Duration
	MaxMessageSize    int
	Authorization     string // optional, becomes the authorization header
	Clock             clockwork.Clock
	Logger            *zap.Logger
}

// Client is the public handle for one connection: the thin façade
// assembling Request Descriptors from the public operation surface and
// submitting them to the Connection Actor, mirroring the teacher's
// rpc.Service top-level facade composed from its sub-packages.
type Client struct {
	conn       *transport.Conn
	codec      Codec
	authHeader map[string]string
	log        *zap.Logger
}

// Connect dials with dial, wraps the resulting net.Conn in a Connection
// Actor, and returns a ready-to-use Client. TLS negotiation and DNS
// resolution are the caller's concern (spec.md §1 scopes them out as
// external collaborators); dial only needs to hand back an
// already-negotiated net.Conn.
func Connect(ctx context.Context, dial func(context.Context) (net.Conn, error), opts Options) (*Client, error) {
	opts.Codec.validate()

	conn, err := dial(ctx)
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	topts := transport.Options{
		Scheme:            opts.Scheme,
		Authority:         opts.Authority,
		KeepaliveInterval: opts.KeepaliveInterval,
		MaxMessageSize:    opts.MaxMessageSize,
		Clock:             opts.Clock,
		Logger:            log,
	}
	actor, err := transport.Connect(conn, topts)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{}
	if opts.Authorization != "" {
		headers["authorization"] = opts.Authorization
	}

	return &Client{conn: actor, codec: opts.Codec, authHeader: headers, log: log}, nil
}

// Close tears down the underlying connection and every in-flight request.
func (c *Client) Close() {
	c.log.Debug("client closing, tearing down connection")
	c.conn.Shutdown(errors.New("client closed"))
}

// Cancel implements the {cancel, handle} command (spec.md §4.3): always
// idempotent, always Ok.
func (c *Client) Cancel(h *Handle) {
	if h == nil {
		return
	}
	h.cancel()
}
