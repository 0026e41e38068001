// Package clientdispatch implements the client-side half of spec.md §4.2:
// it turns outgoing request submissions into outbound messages and matches
// inbound responses to waiting completions by strict FIFO order.
package clientdispatch

import (
	"context"
	"errors"

	"github.com/skipperproto/pipeline/frame"
	"github.com/skipperproto/pipeline/ring"
)

// ErrBrokenPipe is delivered to every completion still in flight when a
// Dispatch is closed — by the client pipeline when the peer sends Done, or
// by the caller directly. A pipeline that stops on a terminal error does
// not close its Dispatch.
var ErrBrokenPipe = errors.New("clientdispatch: broken pipe")

// ErrMismatch is returned by DispatchResponse when the peer sent a response
// with no corresponding waiting request.
var ErrMismatch = errors.New("clientdispatch: response with no waiting request")

// Result is what a Completion eventually resolves to.
type Result[Resp any] struct {
	Message frame.Message[Resp]
	Err     error
}

// Completion is resolved exactly once by the pipeline, with the response
// message or an error. Submit returns one per request.
type Completion[Resp any] chan Result[Resp]

func newCompletion[Resp any]() Completion[Resp] {
	return make(Completion[Resp], 1)
}

func (c Completion[Resp]) resolve(msg frame.Message[Resp], err error) {
	c <- Result[Resp]{Message: msg, Err: err}
	close(c)
}

// Wait blocks until the completion resolves or ctx is done.
func (c Completion[Resp]) Wait(ctx context.Context) (frame.Message[Resp], error) {
	select {
	case r := <-c:
		return r.Message, r.Err
	case <-ctx.Done():
		var zero frame.Message[Resp]
		return zero, ctx.Err()
	}
}

type submission[Req any, Resp any] struct {
	request    frame.Message[Req]
	completion Completion[Resp]
}

// Client is the cloneable-across-goroutines submission handle. Its only
// operation is Submit; every Client sharing the same Dispatch submits onto
// the same MPSC channel.
type Client[Req any, Resp any] struct {
	submissions chan submission[Req, Resp]
	closed      <-chan struct{}
}

// Submit enqueues (request, completion) and returns the completion. Safe to
// call concurrently from any number of goroutines. If the dispatch has
// already been closed, the completion resolves immediately with
// ErrBrokenPipe instead of blocking forever on a channel nobody drains.
func (c *Client[Req, Resp]) Submit(request frame.Message[Req]) Completion[Resp] {
	completion := newCompletion[Resp]()
	select {
	case <-c.closed:
		var zero frame.Message[Resp]
		completion.resolve(zero, ErrBrokenPipe)
		return completion
	default:
	}
	select {
	case c.submissions <- submission[Req, Resp]{request: request, completion: completion}:
	case <-c.closed:
		var zero frame.Message[Resp]
		completion.resolve(zero, ErrBrokenPipe)
	}
	return completion
}

// Dispatch is the pipeline-facing side: PollRequest drains submissions,
// DispatchResponse completes them in FIFO order. A Dispatch is owned by
// exactly one pipeline task; none of its methods are safe for concurrent
// use.
type Dispatch[Req any, Resp any] struct {
	submissions chan submission[Req, Resp]
	closed      chan struct{}
	inFlight    *ring.Ring[Completion[Resp]]
}

// New creates a linked Client/Dispatch pair. capacity sizes the submission
// channel buffer; 0 is a valid, fully synchronous choice.
func New[Req any, Resp any](capacity int) (*Client[Req, Resp], *Dispatch[Req, Resp]) {
	ch := make(chan submission[Req, Resp], capacity)
	closed := make(chan struct{})
	return &Client[Req, Resp]{submissions: ch, closed: closed},
		&Dispatch[Req, Resp]{submissions: ch, closed: closed, inFlight: ring.New[Completion[Resp]](32)}
}

// PollRequest drains one submission without blocking.
//
//   - ready=true, closed=false: msg is the next outbound request; its
//     completion has been pushed to the back of the in-flight queue.
//   - ready=false, closed=true: the submission channel has been closed
//     (spec.md's None) — the pipeline should stop accepting new heads and
//     begin draining.
//   - ready=false, closed=false: nothing is queued right now; try again
//     after the next wake.
func (d *Dispatch[Req, Resp]) PollRequest() (msg frame.Message[Req], ready bool, closed bool) {
	select {
	case sub, ok := <-d.submissions:
		if !ok {
			return frame.Message[Req]{}, false, true
		}
		d.inFlight.Push(sub.completion)
		return sub.request, true, false
	default:
		return frame.Message[Req]{}, false, false
	}
}

// DispatchResponse pops the front in-flight completion and resolves it with
// resp. Returns ErrMismatch if no completion is waiting — the peer sent an
// unsolicited response, a protocol violation per spec.md §7.
func (d *Dispatch[Req, Resp]) DispatchResponse(resp frame.Message[Resp]) error {
	completion, ok := d.inFlight.Pop()
	if !ok {
		return ErrMismatch
	}
	completion.resolve(resp, nil)
	return nil
}

// FailFront resolves the front in-flight completion with err, used when the
// transport fails or the peer sends an Error frame (spec.md §4.1, §7).
// Returns false if nothing was in flight.
func (d *Dispatch[Req, Resp]) FailFront(err error) bool {
	completion, ok := d.inFlight.Pop()
	if !ok {
		return false
	}
	var zero frame.Message[Resp]
	completion.resolve(zero, err)
	return true
}

// HasInFlight reports whether any request is awaiting a response. The
// pipeline gates shutdown on this being false.
func (d *Dispatch[Req, Resp]) HasInFlight() bool {
	return d.inFlight.Len() > 0
}

// InFlightCount reports how many requests are currently awaiting a
// response, for the pipeline's in-flight gauge.
func (d *Dispatch[Req, Resp]) InFlightCount() int {
	return d.inFlight.Len()
}

// Close tears the dispatch down: it signals every blocked or future Submit
// via the closed channel, then resolves every remaining in-flight
// completion with ErrBrokenPipe so no caller observes a silently lost
// request (spec.md §3 and §4.2's Destruction paragraph).
func (d *Dispatch[Req, Resp]) Close() {
	select {
	case <-d.closed:
		return // already closed
	default:
		close(d.closed)
	}

	// Submissions still buffered in the channel never reached the
	// in-flight queue; they are resolved with ErrBrokenPipe as well.
drainSubmissions:
	for {
		select {
		case sub := <-d.submissions:
			var zero frame.Message[Resp]
			sub.completion.resolve(zero, ErrBrokenPipe)
		default:
			break drainSubmissions
		}
	}

	for {
		completion, ok := d.inFlight.Pop()
		if !ok {
			break
		}
		var zero frame.Message[Resp]
		completion.resolve(zero, ErrBrokenPipe)
	}
}
