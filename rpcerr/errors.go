// Package rpcerr defines the error kinds a request can terminate with, in
// order of specificity: ExpectationViolation, Grpc, Transport, Timeout,
// Cancelled, DecodeError.
package rpcerr

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ExpectationViolation is returned by append/delete when the server-side
// stream-state precondition did not hold.
type ExpectationViolation struct {
	Expected string
	Current  string
}

func (e *ExpectationViolation) Error() string {
	return fmt.Sprintf("expectation violation: expected %s, current %s", e.Expected, e.Current)
}

// Grpc wraps any non-ok gRPC status the server returned in trailers.
type Grpc struct {
	Code    codes.Code
	Message string
	Headers map[string][]string
	Payload []byte // the last message still buffered when the error arrived, if any
}

func (e *Grpc) Error() string {
	return fmt.Sprintf("grpc error: %s: %s", e.Code, e.Message)
}

// GRPCStatus lets errors.As/status.FromError recover the underlying status.
func (e *Grpc) GRPCStatus() *status.Status {
	return status.New(e.Code, e.Message)
}

// NewGrpc builds a Grpc error from a code and message.
func NewGrpc(code codes.Code, message string) *Grpc {
	return &Grpc{Code: code, Message: message}
}

// Transport indicates the whole connection failed: socket error, GOAWAY, or
// an HTTP/2 protocol-level error. It is terminal for every in-flight
// request on the connection, not just one.
type Transport struct {
	Cause error
}

func (e *Transport) Error() string { return fmt.Sprintf("transport error: %v", e.Cause) }
func (e *Transport) Unwrap() error { return e.Cause }

// Timeout indicates the per-request deadline elapsed before a terminal
// status was reached.
type Timeout struct {
	Deadline string
}

func (e *Timeout) Error() string { return fmt.Sprintf("request timeout (deadline %s)", e.Deadline) }

// Cancelled indicates the caller cancelled the request, or the peer sent
// RST_STREAM(CANCEL).
type Cancelled struct {
	Reason string
}

func (e *Cancelled) Error() string {
	if e.Reason == "" {
		return "request cancelled"
	}
	return fmt.Sprintf("request cancelled: %s", e.Reason)
}

// DecodeError indicates a malformed frame (such as an invalid compression
// flag) or a response message the Codec could not decode. It terminates
// only the request it occurred on. An oversized payload is reported as a
// Grpc error with code ResourceExhausted, not as a DecodeError.
type DecodeError struct {
	Cause error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode error: %v", e.Cause) }
func (e *DecodeError) Unwrap() error { return e.Cause }

// IsTerminalConnectionError reports whether err should drive every
// in-flight Request State on a connection to Closed(Unavailable), per
// spec §4.3's connection-level failure handling.
func IsTerminalConnectionError(err error) bool {
	_, ok := err.(*Transport)
	return ok
}
