// Package transport implements the Connection Actor: a
// single actor goroutine owning one HTTP/2 connection, a routing table of
// in-flight Request States keyed by a logical request id, and the
// command protocol ({request}, {on_data}, {cancel}) public operations
// submit against it.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"google.golang.org/grpc/codes"

	"github.com/hkrutzer/spear/grpcframe"
	"github.com/hkrutzer/spear/reqdesc"
	"github.com/hkrutzer/spear/reqstate"
	"github.com/hkrutzer/spear/rpcerr"
)

const readChunkSize = 32 * 1024

// Options configures a Connection Actor.
type Options struct {
	Scheme            string // "http" or "https"
	Authority         string // :authority header value
	KeepaliveInterval time.Duration
	MaxMessageSize    int
	Clock             clockwork.Clock
	Logger            *zap.Logger
}

type entry struct {
	state  *reqstate.State
	cancel context.CancelFunc
}

// Conn is the Connection Actor. All routing-table mutation happens on its
// single run() goroutine; public methods communicate with it only by
// enqueuing commands and awaiting replies.
type Conn struct {
	cc      *http2.ClientConn
	raw     net.Conn
	scheme  string
	authority string
	maxMessageSize int
	clock   clockwork.Clock
	log     *zap.Logger

	ids   *idAllocator
	table map[RequestID]*entry

	cmdCh chan any
	doneCh chan struct{}

	mu       sync.Mutex
	closed   bool
	closeErr error

	unknownFrames uint64 // counter incremented when a cancel command targets an unknown id
}

// Connect wraps an already-established net.Conn (TLS negotiation and DNS
// resolution are external collaborators in an HTTP/2
// ClientConn and starts the Connection Actor.
func Connect(conn net.Conn, opts Options) (*Conn, error) {
	t := &http2.Transport{AllowHTTP: true}
	cc, err := t.NewClientConn(conn)
	if err != nil {
		return nil, &rpcerr.Transport{Cause: err}
	}

	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	c := &Conn{
		cc:             cc,
		raw:            conn,
		scheme:         opts.Scheme,
		authority:      opts.Authority,
		maxMessageSize: opts.MaxMessageSize,
		clock:          clock,
		log:            log,
		ids:            newIDAllocator(),
		table:          make(map[RequestID]*entry),
		cmdCh:          make(chan any),
		doneCh:         make(chan struct{}),
	}
	go c.run()
	if opts.KeepaliveInterval > 0 {
		go c.keepaliveLoop(opts.KeepaliveInterval)
	}
	return c, nil
}

type cmdRegister struct {
	desc  *reqdesc.Descriptor
	reply chan registerResult
}

type registerResult struct {
	id     RequestID
	state  *reqstate.State
	ctx    context.Context
	cancel context.CancelFunc
}

type cmdCancel struct {
	id    RequestID
	reply chan struct{}
}

type cmdRemove struct {
	id RequestID
}

type cmdShutdown struct {
	cause error
}

// run is the actor's single-threaded cooperative event loop:
// it is the only goroutine that mutates c.table.
func (c *Conn) run() {
	for cmd := range c.cmdCh {
		switch v := cmd.(type) {
		case cmdRegister:
			id := c.ids.allocate()
			ctx, cancel := context.WithCancel(context.Background())
			state := reqstate.New(v.desc, c.maxMessageSize, c.log)
			c.table[id] = &entry{state: state, cancel: cancel}
			v.reply <- registerResult{id: id, state: state, ctx: ctx, cancel: cancel}

		case cmdCancel:
			// Idempotent: an unknown handle still replies Ok.
			if e, ok := c.table[v.id]; ok {
				e.cancel()
				e.state.Cancel()
				delete(c.table, v.id)
			} else {
				c.unknownFrames++
			}
			close(v.reply)

		case cmdRemove:
			delete(c.table, v.id)

		case cmdProbe:
			v.reply <- c.unknownFrames

		case cmdShutdown:
			c.teardown(v.cause)
			return
		}
	}
}

// teardown drives every Request State to Closed(Unavailable), clears the
// routing table, and makes the actor unreachable for new commands
//.
func (c *Conn) teardown(cause error) {
	var errs error
	for id, e := range c.table {
		e.cancel()
		e.state.FailTransport(cause)
		delete(c.table, id)
		errs = multierror.Append(errs, fmt.Errorf("request %d: %w", id, cause))
	}
	if errs != nil {
		c.log.Warn("connection torn down", zap.Error(errs), zap.Error(cause))
	}

	c.mu.Lock()
	c.closed = true
	c.closeErr = &rpcerr.Transport{Cause: cause}
	c.mu.Unlock()
	close(c.doneCh)
	_ = c.raw.Close()
}

// Shutdown tears down the connection and every in-flight request. Safe to
// call more than once and from any goroutine.
func (c *Conn) Shutdown(cause error) {
	select {
	case c.cmdCh <- cmdShutdown{cause: cause}:
	case <-c.doneCh:
	}
}

func (c *Conn) closedError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeErr != nil {
		return c.closeErr
	}
	return &rpcerr.Transport{Cause: errors.New("connection closed")}
}

func (c *Conn) register(desc *reqdesc.Descriptor) (registerResult, error) {
	reply := make(chan registerResult, 1)
	select {
	case c.cmdCh <- cmdRegister{desc: desc, reply: reply}:
	case <-c.doneCh:
		return registerResult{}, c.closedError()
	}
	select {
	case r := <-reply:
		return r, nil
	case <-c.doneCh:
		return registerResult{}, c.closedError()
	}
}

// Cancel implements the {cancel, handle} command: idempotent,
// and a no-op "Ok" if the handle is unknown or already terminal.
func (c *Conn) Cancel(id RequestID) {
	reply := make(chan struct{})
	select {
	case c.cmdCh <- cmdCancel{id: id, reply: reply}:
		<-reply
	case <-c.doneCh:
	}
}

// SubmitAggregate implements the {request, desc} command for Aggregate
// disposition: it blocks until the Request State reaches
// Closed and returns the aggregated result, subject to desc.Deadline.
func (c *Conn) SubmitAggregate(ctx context.Context, desc *reqdesc.Descriptor) (reqstate.Result, error) {
	reg, err := c.register(desc)
	if err != nil {
		return reqstate.Result{}, err
	}
	go c.runRequest(reg, desc, nil)

	deadlineCh := c.deadlineChan(desc.Deadline)
	select {
	case <-reg.state.Done():
		return reg.state.Wait(), nil
	case <-deadlineCh:
		reg.state.FailTimeout(desc.Deadline.String())
		c.Cancel(reg.id)
		return reg.state.Wait(), nil
	case <-ctx.Done():
		c.Cancel(reg.id)
		return reg.state.Wait(), nil
	}
}

// SubmitStreaming implements the {on_data, cb, desc} command for both
// Iterator and Push disposition: it blocks only until the
// server acknowledges the stream open (first headers or data frame) and
// then returns the live Request State and its handle id for the caller to
// pull (Iterator) or simply hold (Push, as a Subscription Handle).
func (c *Conn) SubmitStreaming(ctx context.Context, desc *reqdesc.Descriptor) (*reqstate.State, RequestID, error) {
	reg, err := c.register(desc)
	if err != nil {
		return nil, 0, err
	}
	ack := make(chan error, 1)
	go c.runRequest(reg, desc, ack)

	deadlineCh := c.deadlineChan(desc.Deadline)
	select {
	case err := <-ack:
		if err != nil {
			return nil, 0, err
		}
		return reg.state, reg.id, nil
	case <-deadlineCh:
		reg.state.FailTimeout(desc.Deadline.String())
		c.Cancel(reg.id)
		return nil, 0, &rpcerr.Timeout{Deadline: desc.Deadline.String()}
	case <-ctx.Done():
		c.Cancel(reg.id)
		return nil, 0, ctx.Err()
	}
}

func (c *Conn) deadlineChan(d time.Duration) <-chan time.Time {
	if d <= 0 {
		return nil
	}
	return c.clock.After(d)
}

// runRequest drives one request's network I/O: it writes the request
// body, performs the RoundTrip, and pumps the response into the Request
// State. It never touches c.table directly; it reports completion via
// cmdRemove so table mutation stays on the actor goroutine.
func (c *Conn) runRequest(reg registerResult, desc *reqdesc.Descriptor, ack chan<- error) {
	defer func() {
		select {
		case c.cmdCh <- cmdRemove{id: reg.id}:
		case <-c.doneCh:
		}
	}()

	pr, pw := io.Pipe()
	go c.pumpBody(reg, desc, pw)

	req, err := c.buildRequest(reg.ctx, desc, pr)
	if err != nil {
		reg.state.FailTransport(err)
		c.ackOnce(ack, err)
		return
	}

	resp, err := c.cc.RoundTrip(req)
	if err != nil {
		c.handleRoundTripError(reg, err)
		c.ackOnce(ack, err)
		return
	}
	c.ackOnce(ack, nil)

	if !grpcframe.ContentTypeOK(resp.Header.Get("Content-Type")) && resp.StatusCode == http.StatusOK {
		reg.state.FeedTrailer(grpcframe.Status{Code: codes.Unknown, Message: "unexpected content-type " + resp.Header.Get("Content-Type")})
		_ = resp.Body.Close()
		return
	}
	if resp.StatusCode != http.StatusOK {
		reg.state.FeedTrailer(grpcframe.StatusFromTrailer(resp.Trailer, resp.StatusCode, false))
		_ = resp.Body.Close()
		return
	}

	buf := make([]byte, readChunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			reg.state.FeedData(append([]byte(nil), buf[:n]...), false)
		}
		if readErr != nil {
			if readErr == io.EOF {
				status := grpcframe.StatusFromTrailer(resp.Trailer, resp.StatusCode, true)
				reg.state.FeedTrailer(status)
			} else {
				c.handleRoundTripError(reg, readErr)
			}
			return
		}
	}
}

func (c *Conn) ackOnce(ack chan<- error, err error) {
	if ack == nil {
		return
	}
	select {
	case ack <- err:
	default:
	}
}

// handleRoundTripError classifies a transport-level failure: context
// cancellation/deadline map to Cancelled/Timeout on just this request, a
// stream reset maps to Reset on just this request, anything else is a
// connection-wide Transport failure cascading to every in-flight request
//.
func (c *Conn) handleRoundTripError(reg registerResult, err error) {
	switch {
	case errors.Is(err, context.Canceled):
		reg.state.Cancel()
	case errors.Is(err, context.DeadlineExceeded):
		reg.state.FailTimeout("context deadline")
	default:
		var se http2.StreamError
		if errors.As(err, &se) {
			reg.state.Reset(se.Code.String())
			return
		}
		reg.state.FailTransport(err)
		c.Shutdown(err)
	}
}

// pumpBody writes the request-body producer's frames into pw, marking
// HalfClosedLocal once exhausted.
func (c *Conn) pumpBody(reg registerResult, desc *reqdesc.Descriptor, pw *io.PipeWriter) {
	for {
		payload, ok := desc.Body.Next()
		if !ok {
			break
		}
		if _, err := pw.Write(grpcframe.Encode(payload)); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
	}
	_ = pw.Close()
	reg.state.MarkLocalDone()
}

func (c *Conn) buildRequest(ctx context.Context, desc *reqdesc.Descriptor, body io.Reader) (*http.Request, error) {
	url := fmt.Sprintf("%s://%s%s", c.scheme, c.authority, desc.Path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, io.NopCloser(body))
	if err != nil {
		return nil, err
	}
	req.ContentLength = -1
	for k, v := range desc.Headers {
		req.Header.Set(k, v)
	}
	if desc.Deadline > 0 {
		req.Header.Set("grpc-timeout", grpcTimeoutHeader(desc.Deadline))
	}
	req.Host = c.authority
	return req, nil
}

func grpcTimeoutHeader(d time.Duration) string {
	seconds := int64(d / time.Second)
	if d%time.Second != 0 {
		seconds++
	}
	if seconds < 1 {
		seconds = 1
	}
	return strconv.FormatInt(seconds, 10) + "S"
}

func (c *Conn) keepaliveLoop(interval time.Duration) {
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.Chan():
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			err := c.cc.Ping(ctx)
			cancel()
			if err != nil {
				c.log.Warn("keepalive ping failed, tearing down connection", zap.Error(err))
				c.Shutdown(err)
				return
			}
		case <-c.doneCh:
			return
		}
	}
}

// UnknownFrameCount reports how many cancel commands targeted an
// already-removed or never-registered request id.
func (c *Conn) UnknownFrameCount() uint64 {
	reply := make(chan uint64, 1)
	select {
	case c.cmdCh <- cmdProbe{reply: reply}:
		return <-reply
	case <-c.doneCh:
		return 0
	}
}

type cmdProbe struct {
	reply chan uint64
}
