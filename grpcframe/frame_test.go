package grpcframe_test

import (
	"bytes"
	"testing"

	"google.golang.org/grpc/codes"

	"github.com/hkrutzer/spear/grpcframe"
	"github.com/hkrutzer/spear/rpcerr"
)

func TestDecoder_WholeFrame(t *testing.T) {
	payload := []byte("hello world")
	frame := grpcframe.Encode(payload)

	d := grpcframe.NewDecoder(0)
	got, err := d.Feed(frame)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(got) != 1 || !bytes.Equal(got[0], payload) {
		t.Fatalf("got %v, want [%q]", got, payload)
	}
}

func TestDecoder_SplitAcrossReads(t *testing.T) {
	payload := []byte("a slightly longer payload to split across chunks")
	frame := grpcframe.Encode(payload)

	for splitWidth := 1; splitWidth <= len(frame); splitWidth++ {
		d := grpcframe.NewDecoder(0)
		var all [][]byte
		for i := 0; i < len(frame); i += splitWidth {
			end := i + splitWidth
			if end > len(frame) {
				end = len(frame)
			}
			got, err := d.Feed(frame[i:end])
			if err != nil {
				t.Fatalf("splitWidth=%d: Feed: %v", splitWidth, err)
			}
			all = append(all, got...)
		}
		if len(all) != 1 || !bytes.Equal(all[0], payload) {
			t.Fatalf("splitWidth=%d: got %v, want [%q]", splitWidth, all, payload)
		}
	}
}

func TestDecoder_MultipleFramesInOneChunk(t *testing.T) {
	a, b := []byte("first"), []byte("second")
	chunk := append(grpcframe.Encode(a), grpcframe.Encode(b)...)

	d := grpcframe.NewDecoder(0)
	got, err := d.Feed(chunk)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(got) != 2 || !bytes.Equal(got[0], a) || !bytes.Equal(got[1], b) {
		t.Fatalf("got %v", got)
	}
}

func TestDecoder_CompressedFlagWithoutEncoding(t *testing.T) {
	frame := grpcframe.Encode([]byte("x"))
	frame[0] = 1 // claim compression with nothing negotiated

	d := grpcframe.NewDecoder(0)
	_, err := d.Feed(frame)
	var grpcErr *rpcerr.Grpc
	if !asGrpc(err, &grpcErr) {
		t.Fatalf("expected *rpcerr.Grpc, got %v (%T)", err, err)
	}
	if grpcErr.Code != codes.Internal {
		t.Fatalf("expected Internal, got %v", grpcErr.Code)
	}
}

func TestDecoder_OversizedFrame(t *testing.T) {
	d := grpcframe.NewDecoder(4)
	header := []byte{0, 0, 0, 0, 10} // claims a 10-byte payload against a 4-byte ceiling
	_, err := d.Feed(header)

	var grpcErr *rpcerr.Grpc
	if !asGrpc(err, &grpcErr) {
		t.Fatalf("expected *rpcerr.Grpc, got %v (%T)", err, err)
	}
	if grpcErr.Code != codes.ResourceExhausted {
		t.Fatalf("expected ResourceExhausted, got %v", grpcErr.Code)
	}
}

func asGrpc(err error, target **rpcerr.Grpc) bool {
	g, ok := err.(*rpcerr.Grpc)
	if !ok {
		return false
	}
	*target = g
	return true
}
