package pipeline

import (
	"github.com/skipperproto/pipeline/clientdispatch"
	"github.com/skipperproto/pipeline/frame"
	"github.com/skipperproto/pipeline/logging"
	"github.com/skipperproto/pipeline/metrics"
	"github.com/skipperproto/pipeline/transport"
)

// NewClient builds a Pipeline playing the client role: it writes Req heads
// pulled from dispatch.PollRequest and resolves waiting completions from
// Resp heads read off the transport, in strict FIFO order. toError turns a
// peer Error frame's payload into the Go error a waiting Completion sees.
func NewClient[Req any, Resp any, E any](
	t transport.Transport[Resp, Req, E],
	dispatch *clientdispatch.Dispatch[Req, Resp],
	toError func(err E) error,
	log logging.Logger,
	m *metrics.Set,
) *Pipeline[Req, Resp, E] {
	outbound := func() (frame.Frame[Req, E], *frame.Body, bool, bool) {
		msg, ready, closed := dispatch.PollRequest()
		if closed {
			return frame.Frame[Req, E]{}, nil, false, true
		}
		if !ready {
			return frame.Frame[Req, E]{}, nil, false, false
		}
		if body, ok := msg.TakeBody(); ok {
			return frame.MessageWithBody[Req, E](msg.Head(), nil), body, true, false
		}
		return frame.Message[Req, E](msg.Head()), nil, true, false
	}

	consume := func(msg frame.Message[Resp]) error {
		return dispatch.DispatchResponse(msg)
	}

	onPeerError := func(err E) {
		dispatch.FailFront(toError(err))
	}

	onPeerDone := func() {
		dispatch.Close()
	}

	return New(Config[Req, Resp, E]{
		Transport:     t,
		Outbound:      outbound,
		Consume:       consume,
		OnPeerError:   onPeerError,
		OnPeerDone:    onPeerDone,
		HasInFlight:   dispatch.HasInFlight,
		InFlightCount: dispatch.InFlightCount,
		Log:           log,
		Metrics:       m,
	})
}
