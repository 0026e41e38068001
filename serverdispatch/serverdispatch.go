// Package serverdispatch implements the server-side half of spec.md §4.3:
// it hands inbound requests to a user service and emits the service's
// resolved responses as outbound heads in strict request-acceptance order,
// even when the service resolves them out of order.
package serverdispatch

import (
	"errors"
	"sync"
	"time"

	"github.com/skipperproto/pipeline/frame"
	"github.com/skipperproto/pipeline/ring"
)

// ErrQueueFull is returned by a gated Service when its admission queue has
// no room left, mirroring the teacher's scheduler.ErrQueueFull.
var ErrQueueFull = errors.New("serverdispatch: admission queue full")

// ErrQueueTimeout is returned by a gated Service when a request waited
// longer than its configured timeout for a concurrency slot, mirroring the
// teacher's scheduler.ErrQueueTimeout.
var ErrQueueTimeout = errors.New("serverdispatch: admission queue timeout")

// Result is what a Future eventually resolves to.
type Result[Resp any] struct {
	Message frame.Message[Resp]
	Err     error
}

// Future represents a response not yet resolved. Poll never blocks.
type Future[Resp any] interface {
	// Poll reports whether the future has resolved yet. ready=false means
	// neither msg nor err are meaningful this call.
	Poll() (msg frame.Message[Resp], err error, ready bool)
}

// chanFuture is the Future implementation returned by NewFuture.
type chanFuture[Resp any] struct {
	mu       sync.Mutex
	ch       chan Result[Resp]
	resolved bool
	result   Result[Resp]
}

// NewFuture returns a Future and the function that resolves it. resolve may
// be called from any goroutine, exactly once; later calls are ignored.
func NewFuture[Resp any]() (Future[Resp], func(frame.Message[Resp], error)) {
	f := &chanFuture[Resp]{ch: make(chan Result[Resp], 1)}
	var once sync.Once
	resolve := func(msg frame.Message[Resp], err error) {
		once.Do(func() {
			f.ch <- Result[Resp]{Message: msg, Err: err}
			close(f.ch)
		})
	}
	return f, resolve
}

// Resolved returns a Future that is already resolved, for services that
// answer synchronously (spec.md §8, test_echo_immediate).
func Resolved[Resp any](msg frame.Message[Resp], err error) Future[Resp] {
	f, resolve := NewFuture[Resp]()
	resolve(msg, err)
	return f
}

func (f *chanFuture[Resp]) Poll() (msg frame.Message[Resp], err error, ready bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.resolved {
		return f.result.Message, f.result.Err, true
	}

	select {
	case r, ok := <-f.ch:
		if !ok {
			return frame.Message[Resp]{}, nil, false
		}
		f.resolved = true
		f.result = r
		return r.Message, r.Err, true
	default:
		return frame.Message[Resp]{}, nil, false
	}
}

// Service is invoked synchronously from the pipeline task for every inbound
// request; it must not block. Asynchronous work is expressed through the
// returned Future.
type Service[Req any, Resp any] func(frame.Message[Req]) Future[Resp]

// Dispatch is the pipeline-facing adapter: ConsumeRequest feeds the
// service, PollResponse drains resolved futures in FIFO order. Owned by
// exactly one pipeline task; not safe for concurrent use.
type Dispatch[Req any, Resp any] struct {
	service  Service[Req, Resp]
	inFlight *ring.Ring[Future[Resp]]
	aborted  bool
}

// Option configures a Dispatch at construction time.
type Option[Req any, Resp any] func(*Dispatch[Req, Resp])

// New wraps service as a Dispatch.
func New[Req any, Resp any](service Service[Req, Resp], opts ...Option[Req, Resp]) *Dispatch[Req, Resp] {
	d := &Dispatch[Req, Resp]{service: service, inFlight: ring.New[Future[Resp]](32)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ConsumeRequest invokes the service with msg and pushes its future to the
// back of the in-flight queue. Once the dispatch has aborted (a prior
// service error or peer error drained it), requests are silently dropped:
// no further requests are handed to the service per spec.md §4.3.
func (d *Dispatch[Req, Resp]) ConsumeRequest(msg frame.Message[Req]) {
	if d.aborted {
		return
	}
	d.inFlight.Push(d.service(msg))
}

// PollResponse inspects only the front future. If it has resolved, it is
// popped and returned — even if later futures in the queue resolved first,
// preserving request-acceptance order on the wire (spec.md §8, scenario 3).
// If the front is pending, ready is false regardless of later futures'
// state.
func (d *Dispatch[Req, Resp]) PollResponse() (msg frame.Message[Resp], err error, ready bool) {
	front, ok := d.inFlight.Front()
	if !ok {
		return frame.Message[Resp]{}, nil, false
	}

	msg, err, resolved := front.Poll()
	if !resolved {
		return frame.Message[Resp]{}, nil, false
	}
	d.inFlight.Pop()

	if err != nil {
		d.Abort()
	}
	return msg, err, true
}

// Abort stops the dispatch from handing further requests to the service
// and drops every queued-but-unresolved future, per spec.md §4.3's "Error
// from service" paragraph and §7's peer-error-frame handling.
func (d *Dispatch[Req, Resp]) Abort() {
	d.aborted = true
	d.inFlight.Drain()
}

// HasInFlight reports whether any request's response has not yet been
// emitted.
func (d *Dispatch[Req, Resp]) HasInFlight() bool {
	return d.inFlight.Len() > 0
}

// InFlightCount reports how many requests have been accepted but not yet
// had their response emitted, for the pipeline's in-flight gauge.
func (d *Dispatch[Req, Resp]) InFlightCount() int {
	return d.inFlight.Len()
}

// AdmissionConfig bounds concurrent service execution, mirroring the
// teacher's scheduler.Config (MaxConcurrency/MaxQueueSize/Timeout) from
// filters/scheduler/fifo.go. It supplements spec.md, which otherwise leaves
// the in-flight queue "bounded only by memory".
type AdmissionConfig struct {
	MaxConcurrency int
	MaxQueueSize   int
	Timeout        time.Duration
}

// WithAdmission gates the Dispatch's service behind a bounded concurrency
// queue built from cfg. The queue never blocks the pipeline task: admission
// either succeeds synchronously, fails synchronously with ErrQueueFull, or
// is decided asynchronously on a background goroutine that resolves the
// returned Future with ErrQueueTimeout if no slot frees up in time.
func WithAdmission[Req any, Resp any](cfg AdmissionConfig) Option[Req, Resp] {
	return func(d *Dispatch[Req, Resp]) {
		gate := newGate[Req, Resp](cfg)
		d.service = gate.wrap(d.service)
	}
}

type gate[Req any, Resp any] struct {
	sem     chan struct{}
	pending chan struct{}
	timeout time.Duration
}

func newGate[Req any, Resp any](cfg AdmissionConfig) *gate[Req, Resp] {
	concurrency := cfg.MaxConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &gate[Req, Resp]{
		sem:     make(chan struct{}, concurrency),
		pending: make(chan struct{}, concurrency+cfg.MaxQueueSize),
		timeout: cfg.Timeout,
	}
}

func (g *gate[Req, Resp]) wrap(inner Service[Req, Resp]) Service[Req, Resp] {
	return func(msg frame.Message[Req]) Future[Resp] {
		select {
		case g.pending <- struct{}{}:
		default:
			return Resolved[Resp](frame.Message[Resp]{}, ErrQueueFull)
		}

		future, resolve := NewFuture[Resp]()
		go g.run(msg, inner, resolve)
		return future
	}
}

func (g *gate[Req, Resp]) run(msg frame.Message[Req], inner Service[Req, Resp], resolve func(frame.Message[Resp], error)) {
	defer func() { <-g.pending }()

	var deadline <-chan time.Time
	if g.timeout > 0 {
		timer := time.NewTimer(g.timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case g.sem <- struct{}{}:
	case <-deadline:
		resolve(frame.Message[Resp]{}, ErrQueueTimeout)
		return
	}
	defer func() { <-g.sem }()

	inf := inner(msg)
	for {
		m, err, ready := inf.Poll()
		if ready {
			resolve(m, err)
			return
		}
		time.Sleep(time.Millisecond)
	}
}
