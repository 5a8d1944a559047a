package spear

import (
	"context"

	"google.golang.org/grpc/codes"

	"github.com/hkrutzer/spear/reqdesc"
	"github.com/hkrutzer/spear/rpcerr"
)

// AppendResult is the successful outcome of Append: Raw is only populated
// when AppendOptions.Raw is set.
type AppendResult struct {
	Raw []byte
}

// Append builds a client-streaming Streams.Append request whose body is
// [options-frame, event-frame, event-frame, ...] terminated by
// HalfClosedLocal (spec.md §4.5). A wrong_expected_version response is
// reshaped into *rpcerr.ExpectationViolation.
func (c *Client) Append(ctx context.Context, stream string, events []AppendEvent, opts AppendOptions) (AppendResult, error) {
	body := appendBodyProducer(c.codec.EncodeAppendOptions(stream, opts), events, c.codec.EncodeAppendEvent)
	desc := reqdesc.New(pathAppend, body, reqdesc.Aggregate, opts.Timeout, c.authHeader)
	result, err := c.conn.SubmitAggregate(ctx, desc)
	if err != nil {
		return AppendResult{}, err
	}
	if result.Err != nil {
		return AppendResult{}, result.Err
	}
	if len(result.Messages) == 0 {
		return AppendResult{}, &rpcerr.Grpc{Code: codes.Unknown, Message: "append response contained no message"}
	}

	ok, expected, current, decodeErr := c.codec.DecodeAppendResult(result.Messages[0])
	if decodeErr != nil {
		return AppendResult{}, &rpcerr.DecodeError{Cause: decodeErr}
	}
	if !ok {
		return AppendResult{}, &rpcerr.ExpectationViolation{Expected: expected, Current: current}
	}
	if opts.Raw {
		return AppendResult{Raw: result.Messages[0]}, nil
	}
	return AppendResult{}, nil
}

// AppendOptions is re-exported from reqdesc for call-site convenience.
type AppendOptions = reqdesc.AppendOptions

// appendBodyProducer builds the [options-frame, event-frame, ...]
// client-streaming sequence Append's Request Descriptor drains: the
// pre-encoded options frame first, then one encoded frame per event, in
// order, until events is exhausted.
func appendBodyProducer(optionsFrame []byte, events []AppendEvent, encodeEvent func(AppendEvent) []byte) reqdesc.FuncProducer {
	first := true
	i := 0
	return func() ([]byte, bool) {
		if first {
			first = false
			return optionsFrame, true
		}
		if i >= len(events) {
			return nil, false
		}
		payload := encodeEvent(events[i])
		i++
		return payload, true
	}
}
