package reqstate_test

import (
	"testing"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/hkrutzer/spear/grpcframe"
	"github.com/hkrutzer/spear/reqdesc"
	"github.com/hkrutzer/spear/reqstate"
)

func aggregateDescriptor() *reqdesc.Descriptor {
	return reqdesc.New("/Streams/Read", reqdesc.NewSingleMessage([]byte("req")), reqdesc.Aggregate, time.Second, nil)
}

func TestState_AggregateOk(t *testing.T) {
	s := reqstate.New(aggregateDescriptor(), 0, nil)

	s.FeedData(grpcframe.Encode([]byte("one")), false)
	s.FeedData(grpcframe.Encode([]byte("two")), false)
	s.MarkLocalDone()
	s.FeedTrailer(grpcframe.Status{Code: codes.OK})

	result := s.Wait()
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if len(result.Messages) != 2 || string(result.Messages[0]) != "one" || string(result.Messages[1]) != "two" {
		t.Fatalf("got %v", result.Messages)
	}
}

func TestState_AggregateGrpcError(t *testing.T) {
	s := reqstate.New(aggregateDescriptor(), 0, nil)

	s.MarkLocalDone()
	s.FeedTrailer(grpcframe.Status{Code: codes.FailedPrecondition, Message: "stream deleted"})

	result := s.Wait()
	if result.Err == nil {
		t.Fatal("expected error")
	}
	if result.Status.Code != codes.FailedPrecondition {
		t.Fatalf("got code %v", result.Status.Code)
	}
}

func TestState_CancelIdempotent(t *testing.T) {
	s := reqstate.New(aggregateDescriptor(), 0, nil)
	s.Cancel()
	s.Cancel() // must not panic or re-close a closed channel

	result := s.Wait()
	if result.Err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestState_Iterator(t *testing.T) {
	desc := reqdesc.New("/Streams/Read", reqdesc.NewSingleMessage([]byte("req")), reqdesc.Iterator, time.Second, nil)
	s := reqstate.New(desc, 0, nil)

	s.FeedData(grpcframe.Encode([]byte("only")), false)
	s.MarkLocalDone()
	s.FeedTrailer(grpcframe.Status{Code: codes.OK})

	payload, done, err := s.Next()
	if done || err != nil {
		t.Fatalf("unexpected done=%v err=%v", done, err)
	}
	if string(payload) != "only" {
		t.Fatalf("got %q", payload)
	}

	_, done, err = s.Next()
	if !done || err != nil {
		t.Fatalf("expected clean end, got done=%v err=%v", done, err)
	}
}

func TestState_PushDeliversInOrder(t *testing.T) {
	var delivered []string
	desc := reqdesc.New("/Streams/Read", reqdesc.NewSingleMessage(nil), reqdesc.Push, time.Second, nil)
	desc.Delivery = func(payload []byte) error {
		delivered = append(delivered, string(payload))
		return nil
	}
	s := reqstate.New(desc, 0, nil)

	s.FeedData(grpcframe.Encode([]byte("1")), false)
	s.FeedData(grpcframe.Encode([]byte("2")), false)
	s.FeedData(grpcframe.Encode([]byte("3")), false)

	if len(delivered) != 3 || delivered[0] != "1" || delivered[1] != "2" || delivered[2] != "3" {
		t.Fatalf("got %v", delivered)
	}
}

func TestState_PushDeliveryFailureCancels(t *testing.T) {
	desc := reqdesc.New("/Streams/Read", reqdesc.NewSingleMessage(nil), reqdesc.Push, time.Second, nil)
	calls := 0
	desc.Delivery = func(payload []byte) error {
		calls++
		return errBoom
	}
	s := reqstate.New(desc, 0, nil)

	s.FeedData(grpcframe.Encode([]byte("1")), false)
	s.FeedData(grpcframe.Encode([]byte("2")), false)

	if calls != 1 {
		t.Fatalf("expected delivery to stop after first failure, got %d calls", calls)
	}
	if s.Phase() != reqstate.Closed {
		t.Fatalf("expected Closed, got %v", s.Phase())
	}
}

var errBoom = errTest("boom")

type errTest string

func (e errTest) Error() string { return string(e) }
