package link

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"
)

// EventBuffer is the capacity of the peripheral event channel.
const EventBuffer = 256

// Event is delivered by the peripheral stack on its event channel. The set of
// kinds is open: stacks may deliver kinds this package does not know about.
type Event interface {
	Kind() string
}

// WriteRequest is an incoming write on a local characteristic. It must be
// answered exactly once through Responder.
type WriteRequest struct {
	Client    string // remote address, if the stack knows it
	Offset    int
	Value     []byte
	Responder *Responder
}

func (WriteRequest) Kind() string { return "write-request" }

// ConnectionChanged reports a remote central connecting or disconnecting.
type ConnectionChanged struct {
	Client    string
	Connected bool
}

func (ConnectionChanged) Kind() string { return "connection-changed" }

// Response is the answer to a WriteRequest.
type Response int

const (
	ResponseSuccess Response = iota
	ResponseError
)

func (r Response) String() string {
	switch r {
	case ResponseSuccess:
		return "success"
	case ResponseError:
		return "error"
	default:
		return "unknown"
	}
}

var (
	ErrAlreadyResponded = errors.New("write request already answered")
	ErrResponderGone    = errors.New("write request no longer awaiting a response")
)

const (
	responderPending int32 = iota
	responderAnswered
	responderAbandoned
)

// Responder is the one-shot reply path of a WriteRequest. The stack side
// waits with Wait; the event loop answers with Respond. Exactly one of
// answering and abandoning wins.
type Responder struct {
	reply chan Response
	state atomic.Int32
}

func NewResponder() *Responder {
	return &Responder{reply: make(chan Response, 1)}
}

// Respond delivers resp. Only the first call succeeds, and none does once
// the request was abandoned.
func (r *Responder) Respond(resp Response) error {
	if !r.state.CompareAndSwap(responderPending, responderAnswered) {
		if r.state.Load() == responderAbandoned {
			return ErrResponderGone
		}
		return ErrAlreadyResponded
	}
	r.reply <- resp
	return nil
}

// Wait blocks until the request is answered or ctx ends. If ctx ends first
// the responder is abandoned and later Respond calls fail. An answer that
// won the race against ctx is still returned. Wait is called at most once.
func (r *Responder) Wait(ctx context.Context) (Response, error) {
	select {
	case resp := <-r.reply:
		return resp, nil
	case <-ctx.Done():
		if r.state.CompareAndSwap(responderPending, responderAbandoned) {
			return ResponseError, ctx.Err()
		}
		return <-r.reply, nil
	}
}

// Abandon marks the request as no longer awaited. It has no effect once
// the request was answered.
func (r *Responder) Abandon() {
	r.state.CompareAndSwap(responderPending, responderAbandoned)
}
