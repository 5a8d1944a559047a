package spear

import (
	"context"

	"github.com/hkrutzer/spear/reqdesc"
)

// DeleteOptions is re-exported from reqdesc for call-site convenience.
type DeleteOptions = reqdesc.DeleteOptions

// Delete issues a unary Streams.Delete (or, with Tombstone: true,
// Streams.Tombstone) request carrying the stream name and expectation
// (spec.md §4.5). Success returns nil; any gRPC error surfaces verbatim.
func (c *Client) Delete(ctx context.Context, stream string, opts DeleteOptions) error {
	path := pathDelete
	if opts.Tombstone {
		path = pathTombstone
	}
	body := reqdesc.NewSingleMessage(c.codec.EncodeDeleteRequest(stream, opts))
	desc := reqdesc.New(path, body, reqdesc.Aggregate, opts.Timeout, c.authHeader)

	result, err := c.conn.SubmitAggregate(ctx, desc)
	if err != nil {
		return err
	}
	return result.Err
}
