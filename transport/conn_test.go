package transport

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/hkrutzer/spear/grpcframe"
	"github.com/hkrutzer/spear/reqdesc"
)

// serveHTTP2 starts a real golang.org/x/net/http2 server on one end of an
// in-memory net.Pipe and returns the other end for Connect to drive: this
// exercises buildRequest/RoundTrip against an actual HTTP/2 frame layer
// instead of a stub, the way a bug in header construction would otherwise
// only surface against a live server.
func serveHTTP2(t *testing.T, handler http.HandlerFunc) net.Conn {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	go (&http2.Server{}).ServeConn(serverConn, &http2.ServeConnOpts{Handler: handler})
	t.Cleanup(func() { _ = clientConn.Close() })
	return clientConn
}

// echoOneFrameHandler decodes exactly one gRPC frame from the request body
// and echoes it back as the single response message with a success trailer.
func echoOneFrameHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.Header().Set(http.TrailerPrefix+"Grpc-Status", "13")
		w.Header().Set(http.TrailerPrefix+"Grpc-Message", "reading body")
		w.WriteHeader(http.StatusOK)
		return
	}
	msgs, decErr := grpcframe.NewDecoder(0).Feed(body)
	if decErr != nil || len(msgs) == 0 {
		w.Header().Set(http.TrailerPrefix+"Grpc-Status", "13")
		w.Header().Set(http.TrailerPrefix+"Grpc-Message", "no frame decoded")
		w.WriteHeader(http.StatusOK)
		return
	}

	w.Header().Set("Content-Type", "application/grpc+proto")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(grpcframe.Encode(msgs[0]))
	w.Header().Set(http.TrailerPrefix+"Grpc-Status", "0")
}

func TestConnect_SubmitAggregate_RoundTripsOverRealHTTP2(t *testing.T) {
	conn := serveHTTP2(t, echoOneFrameHandler)

	c, err := Connect(conn, Options{Scheme: "http", Authority: "test.local", Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Shutdown(nil)

	body := reqdesc.NewSingleMessage([]byte("ping"))
	desc := reqdesc.New("/test.Service/Echo", body, reqdesc.Aggregate, 5*time.Second, nil)

	result, err := c.SubmitAggregate(context.Background(), desc)
	if err != nil {
		t.Fatalf("SubmitAggregate: %v", err)
	}
	if result.Err != nil {
		t.Fatalf("unexpected result error: %v", result.Err)
	}
	if len(result.Messages) != 1 || string(result.Messages[0]) != "ping" {
		t.Fatalf("got %+v", result.Messages)
	}
}

func TestConnect_SubmitStreaming_DeliversThenEnds(t *testing.T) {
	conn := serveHTTP2(t, echoOneFrameHandler)

	c, err := Connect(conn, Options{Scheme: "http", Authority: "test.local", Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Shutdown(nil)

	body := reqdesc.NewSingleMessage([]byte("chunk"))
	desc := reqdesc.New("/test.Service/Read", body, reqdesc.Iterator, 5*time.Second, nil)

	state, id, err := c.SubmitStreaming(context.Background(), desc)
	if err != nil {
		t.Fatalf("SubmitStreaming: %v", err)
	}
	defer c.Cancel(id)

	payload, done, err := state.Next()
	if err != nil || done {
		t.Fatalf("expected one message, got done=%v err=%v", done, err)
	}
	if string(payload) != "chunk" {
		t.Fatalf("got %q", payload)
	}

	_, done, err = state.Next()
	if !done || err != nil {
		t.Fatalf("expected clean end, got done=%v err=%v", done, err)
	}
}

func TestConnect_Cancel_UnknownHandleIsIdempotent(t *testing.T) {
	conn := serveHTTP2(t, echoOneFrameHandler)

	c, err := Connect(conn, Options{Scheme: "http", Authority: "test.local", Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Shutdown(nil)

	before := c.UnknownFrameCount()
	c.Cancel(RequestID(99999))
	if c.UnknownFrameCount() != before+1 {
		t.Fatalf("expected unknown-frame count to increment on a stale handle")
	}
}
