package spear

import (
	"testing"

	"github.com/hkrutzer/spear/reqdesc"
)

func fullCodec() Codec {
	return Codec{
		EncodeReadRequest:      func(string, reqdesc.ReadOptions) []byte { return nil },
		NextCursor:             func([]byte) reqdesc.Cursor { return reqdesc.Cursor{} },
		EncodeSubscribeRequest: func(string, reqdesc.ReadOptions) []byte { return nil },
		FromReadResponse:       func(raw []byte) (Event, error) { return Event{Raw: raw}, nil },
		EncodeAppendOptions: func(string, reqdesc.AppendOptions) []byte { return nil },
		EncodeAppendEvent:   func(AppendEvent) []byte { return nil },
		DecodeAppendResult:  func([]byte) (bool, string, string, error) { return true, "", "", nil },
		EncodeDeleteRequest: func(string, reqdesc.DeleteOptions) []byte { return nil },
	}
}

func TestCodecValidate_PanicsOnMissingFunc(t *testing.T) {
	c := fullCodec()
	c.FromReadResponse = nil

	defer func() {
		if recover() == nil {
			t.Fatal("expected validate to panic on a missing Codec function")
		}
	}()
	c.validate()
}

func TestCodecValidate_OkWhenComplete(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("unexpected panic: %v", r)
		}
	}()
	fullCodec().validate()
}

func TestAppendBodyProducer_OptionsFrameFirstThenEventsInOrder(t *testing.T) {
	events := []AppendEvent{
		{EventType: "a", Data: []byte("1")},
		{EventType: "b", Data: []byte("2")},
	}
	encode := func(e AppendEvent) []byte { return e.Data }

	body := appendBodyProducer([]byte("opts"), events, encode)

	var got [][]byte
	for {
		payload, ok := body()
		if !ok {
			break
		}
		got = append(got, payload)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 frames (options + 2 events), got %d", len(got))
	}
	if string(got[0]) != "opts" {
		t.Fatalf("expected options frame first, got %q", got[0])
	}
	if string(got[1]) != "1" || string(got[2]) != "2" {
		t.Fatalf("expected events in order, got %q, %q", got[1], got[2])
	}
}

func TestAppendBodyProducer_EmptyEventsYieldsOnlyOptions(t *testing.T) {
	body := appendBodyProducer([]byte("opts"), nil, func(AppendEvent) []byte { return nil })

	payload, ok := body()
	if !ok || string(payload) != "opts" {
		t.Fatalf("expected options frame, got %q, %v", payload, ok)
	}
	if _, ok := body(); ok {
		t.Fatal("expected producer exhausted after options frame with no events")
	}
}
