// Package reqstate implements the per-in-flight-request state machine:
// Open → HalfClosedRemote/HalfClosedLocal → Closed(ok|error), feeding
// decoded gRPC frames to one of three delivery dispositions (Aggregate,
// Iterator, Push).
package reqstate

import (
	"sync"

	"go.uber.org/zap"

	"github.com/hkrutzer/spear/grpcframe"
	"github.com/hkrutzer/spear/reqdesc"
	"github.com/hkrutzer/spear/rpcerr"
)

// Phase is the half-open/half-closed lifecycle position of a Request
// State.
type Phase int

const (
	Open Phase = iota
	HalfClosedLocal
	HalfClosedRemote
	Closed
)

func (p Phase) String() string {
	switch p {
	case Open:
		return "open"
	case HalfClosedLocal:
		return "half_closed_local"
	case HalfClosedRemote:
		return "half_closed_remote"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Result is what an Aggregate-disposition caller receives on completion.
type Result struct {
	Messages [][]byte
	Status   grpcframe.Status
	Err      error // non-nil iff Status.Code != codes.OK or a terminal error occurred
}

// State is the mutable, Connection-Actor-owned state for one in-flight
// request. Mutating methods are called from the Connection Actor's
// per-request goroutines (response pump, body pump) and from submitting
// callers enforcing a deadline; every method takes mu, and
// Aggregate/Iterator consumers only ever read via the synchronized
// accessor methods below.
type State struct {
	mu  sync.Mutex
	cv  *sync.Cond
	log *zap.Logger

	desc    *reqdesc.Descriptor
	decoder *grpcframe.Decoder

	phase Phase

	// Aggregate/Iterator buffering.
	queue [][]byte

	// terminal bookkeeping
	status    grpcframe.Status
	err       error
	localDone bool // request body producer exhausted and terminator written

	// Aggregate completion.
	doneCh chan struct{}

	maxMessageSize int
}

// New creates a Request State for desc. maxMessageSize of 0 selects
// grpcframe.DefaultMaxMessageSize.
func New(desc *reqdesc.Descriptor, maxMessageSize int, log *zap.Logger) *State {
	if log == nil {
		log = zap.NewNop()
	}
	s := &State{
		desc:           desc,
		decoder:        grpcframe.NewDecoder(maxMessageSize),
		phase:          Open,
		doneCh:         make(chan struct{}),
		maxMessageSize: maxMessageSize,
		log:            log,
	}
	s.cv = sync.NewCond(&s.mu)
	return s
}

// Phase returns the current lifecycle phase.
func (s *State) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// FeedData is the Connection Actor's (data-in, bytes, end-of-stream?)
// event. It decodes any complete frames and
// either queues them (Aggregate/Iterator) or invokes the delivery
// callback inline (Push). A Push callback failing, or the subscriber
// being gone, transitions the state to Closed(Cancelled).
func (s *State) FeedData(data []byte, eos bool) {
	s.mu.Lock()
	if s.phase == Closed {
		s.mu.Unlock()
		return
	}

	payloads, decodeErr := s.decoder.Feed(data)
	for _, p := range payloads {
		if s.desc.Disposition == reqdesc.Push {
			s.mu.Unlock()
			err := s.desc.Delivery(p)
			s.mu.Lock()
			if err != nil {
				s.log.Warn("push delivery failed, cancelling request", zap.Error(err))
				s.closeLocked(grpcframe.Status{}, &rpcerr.Cancelled{Reason: "delivery failed"})
				s.mu.Unlock()
				return
			}
		} else {
			s.queue = append(s.queue, p)
			s.cv.Broadcast()
		}
	}

	if decodeErr != nil {
		s.closeLocked(grpcframe.Status{}, decodeErr)
		s.mu.Unlock()
		return
	}

	if eos {
		s.toHalfClosedRemoteLocked(grpcframe.Status{})
	}
	s.mu.Unlock()
}

// FeedTrailer is (trailers-in, name→value, end-of-stream?): it records
// the terminal gRPC status. A non-OK status closes the request at once;
// an OK status moves it to HalfClosedRemote, and it closes once the local
// side is done as well.
func (s *State) FeedTrailer(status grpcframe.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == Closed {
		return
	}
	s.toHalfClosedRemoteLocked(status)
}

func (s *State) toHalfClosedRemoteLocked(status grpcframe.Status) {
	s.status = status
	if status.Code != 0 {
		s.closeLocked(status, &rpcerr.Grpc{Code: status.Code, Message: status.Message, Payload: s.encodeQueueLocked()})
		return
	}
	s.phase = HalfClosedRemote
	if s.localDone {
		s.closeLocked(status, nil)
	}
}

// MarkLocalDone records that the request body producer is exhausted and
// the terminator frame has been written.
func (s *State) MarkLocalDone() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.localDone = true
	if s.phase == Open {
		s.phase = HalfClosedLocal
	} else if s.phase == HalfClosedRemote {
		s.closeLocked(s.status, nil)
	}
}

// Reset is the (reset-in, code) event: an RST_STREAM from the peer.
func (s *State) Reset(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked(grpcframe.Status{}, &rpcerr.Cancelled{Reason: reason})
}

// FailTransport drives this one request to Closed with a Transport error,
// used by the Connection Actor when tearing down every Request State on
// connection loss.
func (s *State) FailTransport(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked(grpcframe.Status{}, &rpcerr.Transport{Cause: cause})
}

// FailTimeout drives this request to Closed with a Timeout error.
func (s *State) FailTimeout(deadline string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked(grpcframe.Status{}, &rpcerr.Timeout{Deadline: deadline})
}

// Cancel is the caller- or actor-initiated cancellation. Idempotent:
// cancelling an already-Closed state is a no-op.
func (s *State) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == Closed {
		return
	}
	s.closeLocked(grpcframe.Status{}, &rpcerr.Cancelled{})
}

// closeLocked must be called with s.mu held. For Push disposition any
// queued-but-undelivered messages are discarded; for
// Aggregate/Iterator they are preserved alongside the error.
func (s *State) closeLocked(status grpcframe.Status, err error) {
	if s.phase == Closed {
		return
	}
	s.phase = Closed
	s.status = status
	s.err = err
	if s.desc.Disposition == reqdesc.Push {
		s.queue = nil
	}
	close(s.doneCh)
	s.cv.Broadcast()
}

func (s *State) encodeQueueLocked() []byte {
	if len(s.queue) == 0 {
		return nil
	}
	// Last-decoded payload only, matching the Grpc error's "partial
	// payload" slot; callers needing every buffered
	// message use Wait()'s Result.Messages instead.
	return s.queue[len(s.queue)-1]
}

// Wait blocks until the request reaches Closed and returns the aggregated
// result: every queued message plus the terminal status, or the partial
// queue alongside the error if it closed abnormally. It must only be used
// with Disposition == Aggregate.
func (s *State) Wait() Result {
	<-s.doneCh
	s.mu.Lock()
	defer s.mu.Unlock()
	return Result{Messages: s.queue, Status: s.status, Err: s.err}
}

// Done returns a channel closed when the request reaches Closed, for
// select-based waiting (e.g. the Connection Actor enforcing a deadline).
func (s *State) Done() <-chan struct{} {
	return s.doneCh
}

// Next is the Iterator disposition's pull: it returns the next buffered
// message, or (nil, true, err) once the state is Closed and the buffer is
// drained.
func (s *State) Next() (payload []byte, done bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 && s.phase != Closed {
		s.cv.Wait()
	}
	if len(s.queue) > 0 {
		payload = s.queue[0]
		s.queue = s.queue[1:]
		return payload, false, nil
	}
	return nil, true, s.err
}
