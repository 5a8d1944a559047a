package subscription

import (
	"testing"

	"github.com/hkrutzer/spear/transport"
)

type fakeCanceller struct {
	cancelled []transport.RequestID
}

func (f *fakeCanceller) Cancel(id transport.RequestID) {
	f.cancelled = append(f.cancelled, id)
}

type fakeState struct {
	done chan struct{}
}

func (f *fakeState) Done() <-chan struct{} { return f.done }

func TestHandle_CancelForwardsID(t *testing.T) {
	fc := &fakeCanceller{}
	h := &Handle{conn: fc, id: 7, state: &fakeState{done: make(chan struct{})}}

	h.Cancel()
	h.Cancel() // idempotent at the Connection Actor layer; Handle just forwards

	if len(fc.cancelled) != 2 || fc.cancelled[0] != 7 {
		t.Fatalf("expected both cancels forwarded with id 7, got %v", fc.cancelled)
	}
}

func TestHandle_DoneForwardsState(t *testing.T) {
	done := make(chan struct{})
	h := &Handle{conn: &fakeCanceller{}, state: &fakeState{done: done}}

	select {
	case <-h.Done():
		t.Fatal("expected not done yet")
	default:
	}

	close(done)
	select {
	case <-h.Done():
	default:
		t.Fatal("expected done after underlying state closed")
	}
}
