package pipeline

import (
	"github.com/skipperproto/pipeline/frame"
	"github.com/skipperproto/pipeline/logging"
	"github.com/skipperproto/pipeline/metrics"
	"github.com/skipperproto/pipeline/serverdispatch"
	"github.com/skipperproto/pipeline/transport"
)

// NewServer builds a Pipeline playing the server role: it feeds Req heads
// read off the transport to dispatch.ConsumeRequest and writes Resp heads
// (or Error frames, for a failed service) pulled from dispatch.PollResponse.
// fromError turns a service failure into the wire's protocol error payload.
func NewServer[Req any, Resp any, E any](
	t transport.Transport[Req, Resp, E],
	dispatch *serverdispatch.Dispatch[Req, Resp],
	fromError func(err error) E,
	log logging.Logger,
	m *metrics.Set,
) *Pipeline[Resp, Req, E] {
	outbound := func() (frame.Frame[Resp, E], *frame.Body, bool, bool) {
		msg, err, ready := dispatch.PollResponse()
		if !ready {
			return frame.Frame[Resp, E]{}, nil, false, false
		}
		if err != nil {
			return frame.ErrorFrame[Resp, E](fromError(err)), nil, true, false
		}
		if body, ok := msg.TakeBody(); ok {
			return frame.MessageWithBody[Resp, E](msg.Head(), nil), body, true, false
		}
		return frame.Message[Resp, E](msg.Head()), nil, true, false
	}

	consume := func(msg frame.Message[Req]) error {
		dispatch.ConsumeRequest(msg)
		return nil
	}

	onPeerError := func(E) {
		dispatch.Abort()
	}

	onPeerDone := func() {
		dispatch.Abort()
	}

	return New(Config[Resp, Req, E]{
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
