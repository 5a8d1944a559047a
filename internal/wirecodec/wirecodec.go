// Package wirecodec provides a minimal concrete instantiation of the
// spear.Codec contract, built on google.golang.org/protobuf/types/known/
// structpb. spec.md §1 scopes the real EventStore RPC message schemas out
// as an opaque external collaborator, so this package does not claim
// wire-compatibility with a real EventStore server; it exists so
// cmd/spear has a working default Codec to exercise the public operation
// surface end-to-end, the way a caller with their own generated protobuf
// stubs would supply one.
package wirecodec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hkrutzer/spear"
	"github.com/hkrutzer/spear/reqdesc"
)

// New builds a spear.Codec backed by structpb-encoded envelopes.
func New() spear.Codec {
	return spear.Codec{
		EncodeReadRequest:      encodeReadRequest,
		NextCursor:             nextCursor,
		EncodeSubscribeRequest: encodeSubscribeRequest,
		FromReadResponse:       fromReadResponse,
		EncodeAppendOptions:    encodeAppendOptions,
		EncodeAppendEvent:      encodeAppendEvent,
		DecodeAppendResult:     decodeAppendResult,
		EncodeDeleteRequest:    encodeDeleteRequest,
	}
}

func cursorFields(c reqdesc.Cursor) map[string]any {
	switch {
	case c.Start:
		return map[string]any{"from": "start"}
	case c.End:
		return map[string]any{"from": "end"}
	default:
		return map[string]any{"from": "revision", "revision": float64(c.Revision)}
	}
}

func direction(d reqdesc.Direction) string {
	if d == reqdesc.Backwards {
		return "backwards"
	}
	return "forwards"
}

func marshalStruct(fields map[string]any) []byte {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		panic(fmt.Sprintf("wirecodec: building struct: %v", err))
	}
	b, err := proto.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("wirecodec: marshaling struct: %v", err))
	}
	return b
}

func unmarshalStruct(raw []byte) (map[string]any, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return s.AsMap(), nil
}

func encodeReadRequest(stream string, opts reqdesc.ReadOptions) []byte {
	fields := map[string]any{
		"stream":        stream,
		"direction":     direction(opts.Direction),
		"max_count":     float64(opts.MaxCount),
		"resolve_links": opts.ResolveLinks,
	}
	for k, v := range cursorFields(opts.From) {
		fields[k] = v
	}
	if len(opts.Filter) > 0 {
		fields["filter"] = string(opts.Filter)
	}
	return marshalStruct(fields)
}

// encodeSubscribeRequest builds the same fields as encodeReadRequest plus
// subscribe: true, so a real server can tell a catch-up read from a live
// subscription that stays open past end-of-stream.
func encodeSubscribeRequest(stream string, opts reqdesc.ReadOptions) []byte {
	fields := map[string]any{
		"stream":        stream,
		"direction":     direction(opts.Direction),
		"max_count":     float64(opts.MaxCount),
		"resolve_links": opts.ResolveLinks,
		"subscribe":     true,
	}
	for k, v := range cursorFields(opts.From) {
		fields[k] = v
	}
	if len(opts.Filter) > 0 {
		fields["filter"] = string(opts.Filter)
	}
	return marshalStruct(fields)
}

func nextCursor(lastPayload []byte) reqdesc.Cursor {
	m, err := unmarshalStruct(lastPayload)
	if err != nil {
		return reqdesc.Cursor{}
	}
	rev, _ := m["revision"].(float64)
	return reqdesc.RevisionCursor(uint64(rev))
}

func fromReadResponse(raw []byte) (spear.Event, error) {
	m, err := unmarshalStruct(raw)
	if err != nil {
		return spear.Event{}, err
	}
	streamID, _ := m["stream"].(string)
	eventType, _ := m["event_type"].(string)
	data, _ := m["data"].(string)
	metadata, _ := m["metadata"].(string)
	revision, _ := m["revision"].(float64)
	return spear.Event{
		StreamID:  streamID,
		Revision:  uint64(revision),
		EventType: eventType,
		Data:      []byte(data),
		Metadata:  []byte(metadata),
		Raw:       raw,
	}, nil
}

func encodeAppendOptions(stream string, opts reqdesc.AppendOptions) []byte {
	fields := map[string]any{
		"stream": stream,
		"expect": opts.Expect.String(),
	}
	if opts.Expect.IsRevision() {
		fields["expect_revision"] = float64(opts.Expect.Revision)
	}
	return marshalStruct(fields)
}

func encodeAppendEvent(event spear.AppendEvent) []byte {
	return marshalStruct(map[string]any{
		"event_type": event.EventType,
		"data":       string(event.Data),
		"metadata":   string(event.Metadata),
	})
}

func decodeAppendResult(raw []byte) (ok bool, expected string, current string, err error) {
	m, uerr := unmarshalStruct(raw)
	if uerr != nil {
		return false, "", "", uerr
	}
	if success, _ := m["success"].(bool); success {
		return true, "", "", nil
	}
	expected, _ = m["expected"].(string)
	current, _ = m["current"].(string)
	return false, expected, current, nil
}

func encodeDeleteRequest(stream string, opts reqdesc.DeleteOptions) []byte {
	return marshalStruct(map[string]any{
		"stream": stream,
		"expect": opts.Expect.String(),
	})
}
