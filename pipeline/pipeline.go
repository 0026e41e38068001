// Package pipeline implements the core driver: the non-blocking state
// machine that sits between a transport.Transport and a client or server
// dispatch, multiplexing one request/response stream per direction without
// ever blocking on I/O. It does not know whether it is playing the client
// or server role; client.go and server.go supply the direction-specific
// adapters that make it one or the other.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/skipperproto/pipeline/frame"
	"github.com/skipperproto/pipeline/logging"
	"github.com/skipperproto/pipeline/metrics"
	"github.com/skipperproto/pipeline/reactor"
	"github.com/skipperproto/pipeline/transport"
)

// ErrPeerGone is the error a Pipeline surfaces once its transport reports
// transport.ErrPeerClosed, i.e. the peer ended the connection. Other
// transport errors are surfaced unchanged.
var ErrPeerGone = errors.New("pipeline: peer connection ended")

// ErrProtocolViolation is the error a Pipeline surfaces when the peer sends
// a frame sequence spec.md §7 forbids — a body frame with no message head
// open to receive it being the case the driver itself can detect. Unlike
// ErrPeerGone this always means the peer misbehaved, not that it went away.
var ErrProtocolViolation = errors.New("pipeline: protocol violation")

// OutboundPoll produces the next frame this side should send.
//
//   - ready=true, closed=false: f is the next head to write. If the
//     message the head belongs to carries a body, body is non-nil and the
//     driver will poll it for chunks before considering any further head.
//   - ready=false, closed=false: nothing to send this tick.
//   - closed=true: no further heads will ever be produced; the driver
//     stops polling for heads, and Drained counts this side as finished.
type OutboundPoll[Out any, E any] func() (f frame.Frame[Out, E], body *frame.Body, ready bool, closed bool)

// InboundConsume hands a fully assembled inbound message to the dispatch
// that owns this direction. An error return is terminal for the owning
// Pipeline (spec.md §7's "protocol violation ... the pipeline drops").
type InboundConsume[In any] func(msg frame.Message[In]) error

// PeerErrorHandler reacts to a protocol-level Error frame from the peer.
type PeerErrorHandler[E any] func(err E)

// HasInFlight reports whether the owning dispatch still has work pending
// that depends on this pipeline (unresolved completions on the client
// side, unresolved futures on the server side). Drained reports false while
// this is true, even after both directions are done.
type HasInFlight func() bool

// InFlightCount reports how many messages the owning dispatch currently
// has in flight, for the pipeline_inflight gauge. Optional: a Pipeline
// built without one reports zero.
type InFlightCount func() int

// Pipeline is the frame-level driver for one direction pairing: it reads
// frame.Frame[In, E] off a transport and writes frame.Frame[Out, E] onto
// it, wiring inbound message assembly to InboundConsume and outbound
// message production to OutboundPoll. A Pipeline is driven by exactly one
// goroutine, normally via reactor.Run(ctx, p, idle).
type Pipeline[Out any, In any, E any] struct {
	id          string
	transport   transport.Transport[In, Out, E]
	outbound    OutboundPoll[Out, E]
	consume     InboundConsume[In]
	onPeerError PeerErrorHandler[E]
	onPeerDone  func()
	hasInFlight HasInFlight
	inFlightN   InFlightCount

	log     logging.Logger
	metrics *metrics.Set

	outBody        *frame.Body
	outboundClosed bool
	flushed        bool

	inSink   *frame.BodySink
	peerDone bool
	closed   bool
}

// Config gathers the wiring a Pipeline needs. Log and Metrics are optional;
// a nil Log silences logging, a nil Metrics disables reporting.
type Config[Out any, In any, E any] struct {
	Transport     transport.Transport[In, Out, E]
	Outbound      OutboundPoll[Out, E]
	Consume       InboundConsume[In]
	OnPeerError   PeerErrorHandler[E]
	OnPeerDone    func()
	HasInFlight   HasInFlight
	InFlightCount InFlightCount
	Log           logging.Logger
	Metrics       *metrics.Set
}

// New builds a Pipeline from cfg. Each Pipeline gets its own uuid, used
// only to correlate this instance's log lines when a process drives more
// than one of them at once.
func New[Out any, In any, E any](cfg Config[Out, In, E]) *Pipeline[Out, In, E] {
	onPeerDone := cfg.OnPeerDone
	if onPeerDone == nil {
		onPeerDone = func() {}
	}
	hasInFlight := cfg.HasInFlight
	if hasInFlight == nil {
		hasInFlight = func() bool { return false }
	}
	inFlightN := cfg.InFlightCount
	if inFlightN == nil {
		inFlightN = func() int { return 0 }
	}
	return &Pipeline[Out, In, E]{
		id:          uuid.NewString(),
		transport:   cfg.Transport,
		outbound:    cfg.Outbound,
		consume:     cfg.Consume,
		onPeerError: cfg.OnPeerError,
		onPeerDone:  onPeerDone,
		hasInFlight: hasInFlight,
		inFlightN:   inFlightN,
		log:         cfg.Log,
		metrics:     cfg.Metrics,
		flushed:     true,
	}
}

// ID returns this Pipeline's instance id, for correlating its log lines
// with those of other pipelines the same process is driving.
func (p *Pipeline[Out, In, E]) ID() string {
	return p.id
}

// Tick runs one non-blocking pass of the driver's four tracks, in the
// order spec.md's ordering guarantee requires: finish any pending flush,
// continue a body already streaming out, only then write a new head, and
// finally read one inbound frame. Keeping body-before-head strict ensures
// one message's body frames can never be interleaved with the next
// message's head on the wire.
func (p *Pipeline[Out, In, E]) Tick() (progressed bool, err error) {
	if p.closed {
		return false, nil
	}

	if ok, err := p.tickFlush(); err != nil {
		return ok, err
	} else if ok {
		progressed = true
	}

	// While the transport still reports a pending flush, this pass writes
	// nothing.
	if p.flushed {
		if ok, err := p.tickOutboundBody(); err != nil {
			return progressed, err
		} else if ok {
			progressed = true
		}

		if p.outBody == nil {
			if ok, err := p.tickOutboundHead(); err != nil {
				return progressed, err
			} else if ok {
				progressed = true
			}
		}
	}

	if ok, err := p.tickInbound(); err != nil {
		return progressed, err
	} else if ok {
		progressed = true
	}

	if p.metrics != nil {
		p.metrics.SetInFlight(p.inFlightN())
	}

	return progressed, nil
}

func (p *Pipeline[Out, In, E]) tickFlush() (bool, error) {
	if p.flushed {
		return false, nil
	}
	clean, err := p.transport.Flush()
	if err != nil {
		return false, p.fail(err)
	}
	if p.metrics != nil {
		p.metrics.Flushed()
	}
	p.flushed = clean
	return clean, nil
}

func (p *Pipeline[Out, In, E]) tickOutboundBody() (bool, error) {
	if p.outBody == nil || !p.transport.WriteReady() {
		return false, nil
	}

	chunk, ready, done := p.outBody.Poll()
	if !ready {
		return false, nil
	}

	var f frame.Frame[Out, E]
	if done {
		f = frame.BodyEnd[Out, E]()
	} else {
		f = frame.BodyChunk[Out, E](chunk)
	}

	wrote, err := p.transport.Write(f)
	if err != nil {
		return false, p.fail(err)
	}
	if !wrote {
		return false, nil
	}

	if p.metrics != nil {
		p.metrics.FrameWritten(f.Kind)
	}
	p.flushed = false
	if done {
		p.outBody = nil
	}
	return true, nil
}

func (p *Pipeline[Out, In, E]) tickOutboundHead() (bool, error) {
	if p.outboundClosed || !p.transport.WriteReady() {
		return false, nil
	}

	f, body, ready, closed := p.outbound()
	if closed {
		p.outboundClosed = true
		return false, nil
	}
	if !ready {
		return false, nil
	}

	wrote, err := p.transport.Write(f)
	if err != nil {
		return false, p.fail(err)
	}
	if !wrote {
		// The OutboundPoll call already popped this head from its source
		// dispatch; a real Transport's WriteReady gate is expected to make
		// this path rare, but if it happens the frame is simply dropped.
		// A Transport whose WriteReady is true only when Write will accept
		// the frame never takes this path.
		if p.log != nil {
			p.log.Warnf("pipeline: transport rejected write after reporting ready, frame dropped")
		}
		return false, nil
	}

	if p.metrics != nil {
		p.metrics.FrameWritten(f.Kind)
	}
	p.flushed = false
	if body != nil {
		p.outBody = body
	}
	return true, nil
}

func (p *Pipeline[Out, In, E]) tickInbound() (bool, error) {
	f, ready, err := p.transport.PollRead()
	if err != nil {
		return false, p.fail(err)
	}
	if !ready {
		return false, nil
	}

	if p.metrics != nil {
		p.metrics.FrameRead(f.Kind)
	}

	switch f.Kind {
	case frame.KindMessage:
		if err := p.consume(frame.WithoutBody(f.Head)); err != nil {
			return false, p.fail(err)
		}

	case frame.KindMessageWithBody:
		if f.Sink == nil {
			// The transport passed the frame through without a sink of its
			// own (the in-process pair does); allocate one here.
			f.Sink, _ = frame.NewBody(32)
		}
		p.inSink = f.Sink
		if err := p.consume(frame.WithBody(f.Head, f.Sink.Receiver())); err != nil {
			return false, p.fail(err)
		}

	case frame.KindBody:
		if p.inSink == nil {
			return false, p.fail(fmt.Errorf("%w: body frame with no open inbound message", ErrProtocolViolation))
		}
		if !f.HasChunk {
			p.inSink.Close()
			p.inSink = nil
			return true, nil
		}
		if !p.inSink.TryPush(f.Chunk) {
			if p.log != nil {
				p.log.Warnf("pipeline: inbound body channel full, chunk dropped")
			}
		}

	case frame.KindError:
		if p.metrics != nil {
			p.metrics.PeerError()
		}
		if p.onPeerError != nil {
			p.onPeerError(f.Err)
		}

	case frame.KindDone:
		p.peerDone = true
		p.onPeerDone()
	}

	return true, nil
}

func (p *Pipeline[Out, In, E]) fail(err error) error {
	if errors.Is(err, transport.ErrPeerClosed) {
		err = ErrPeerGone
	}
	if p.metrics != nil {
		p.metrics.TransportError()
	}
	if p.log != nil {
		p.log.Errorf("pipeline[%s]: terminal error: %v", p.id, err)
	}
	return err
}

// Drained reports whether both directions are finished: this side has no
// more heads to send, the peer signaled Done, and nothing is still
// in-flight on the owning dispatch. Safe to call after the driver has
// stopped ticking (e.g. once Run returns ErrPeerGone).
func (p *Pipeline[Out, In, E]) Drained() bool {
	return p.outboundClosed && p.peerDone && !p.hasInFlight()
}

// Close releases the transport. Call once, after Run (or a manual Tick
// loop) has stopped, typically once Drained reports true or the caller is
// giving up on the connection.
func (p *Pipeline[Out, In, E]) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	if !p.flushed {
		// One final flush attempt; Close proceeds whatever it reports.
		p.transport.Flush()
	}
	return p.transport.Close()
}

// Run drives the pipeline until Tick returns a terminal error or ctx is
// canceled. It is a thin convenience wrapper around reactor.Run; callers
// running several pipelines together should use reactor.RunAll directly
// instead, since Pipeline already satisfies reactor.Ticker.
func (p *Pipeline[Out, In, E]) Run(ctx context.Context, idle time.Duration) error {
	return reactor.Run(ctx, p, idle)
}
