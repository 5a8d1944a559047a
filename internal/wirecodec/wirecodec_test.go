package wirecodec

import (
	"testing"

	"github.com/hkrutzer/spear"
	"github.com/hkrutzer/spear/reqdesc"
)

func TestReadRequestRoundTripsCursorAndRevision(t *testing.T) {
	codec := New()

	payload := codec.EncodeReadRequest("my-stream", reqdesc.ReadOptions{
		From:      reqdesc.RevisionCursor(4),
		MaxCount:  10,
		Direction: reqdesc.Forwards,
	})
	if len(payload) == 0 {
		t.Fatal("expected a non-empty encoded request")
	}

	next := codec.NextCursor(payload)
	if next.Revision != 4 {
		t.Fatalf("expected cursor to round-trip revision 4, got %+v", next)
	}
}

func TestFromReadResponseDecodesEventFields(t *testing.T) {
	codec := New()
	raw := marshalStruct(map[string]any{
		"stream":     "s1",
		"revision":   float64(7),
		"event_type": "Deposited",
		"data":       "{\"amount\":5}",
	})

	ev, err := codec.FromReadResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.StreamID != "s1" || ev.Revision != 7 || ev.EventType != "Deposited" {
		t.Fatalf("got %+v", ev)
	}
}

func TestAppendRoundTrip(t *testing.T) {
	codec := New()
	opts := codec.EncodeAppendOptions("s1", reqdesc.AppendOptions{Expect: reqdesc.ExpectNoStream()})
	if len(opts) == 0 {
		t.Fatal("expected a non-empty options frame")
	}
	ev := codec.EncodeAppendEvent(spear.AppendEvent{EventType: "Created", Data: []byte("x")})
	if len(ev) == 0 {
		t.Fatal("expected a non-empty event frame")
	}

	success := marshalStruct(map[string]any{"success": true})
	ok, _, _, err := codec.DecodeAppendResult(success)
	if err != nil || !ok {
		t.Fatalf("expected success, got ok=%v err=%v", ok, err)
	}

	conflict := marshalStruct(map[string]any{"success": false, "expected": "empty", "current": "0"})
	ok, expected, current, err := codec.DecodeAppendResult(conflict)
	if err != nil || ok || expected != "empty" || current != "0" {
		t.Fatalf("expected wrong_expected_version shape, got ok=%v expected=%q current=%q err=%v", ok, expected, current, err)
	}
}
