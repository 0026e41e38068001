// Package transport defines the non-blocking, full-duplex contract the
// pipeline driver drives, plus three implementations: a scriptable
// in-memory Mock used by the pipeline's own tests, a channel-backed
// in-process pair (NewInProcessPair) for wiring a client and server
// pipeline together without a socket, and Conn, a length-prefixed codec
// over any net.Conn for the real thing.
package transport

import "github.com/skipperproto/pipeline/frame"

// Transport is a non-blocking, full-duplex endpoint. R is the head type of
// frames arriving from the peer, W the head type of frames this side sends
// — distinct, since a client reads responses and writes requests while a
// server reads requests and writes responses. A single Transport is owned
// by exactly one Pipeline for its entire lifetime; no method is safe to
// call concurrently from two goroutines.
type Transport[R any, W any, E any] interface {
	// PollRead returns the next inbound frame if one is fully available.
	// ready=false means "nothing yet", not an error; the caller should
	// retry after its next wake. err is terminal: once non-nil, PollRead
	// must not be called again.
	PollRead() (f frame.Frame[R, E], ready bool, err error)

	// WriteReady reports whether Write is currently likely to succeed
	// without buffering beyond its own limits. The driver only calls
	// Write when this is true.
	WriteReady() bool

	// Write attempts to hand one outbound frame to the transport. It may
	// buffer internally. wrote=false means the transport applied
	// backpressure and the same frame must be retried later.
	Write(f frame.Frame[W, E]) (wrote bool, err error)

	// Flush attempts to drain any buffered writes toward the peer.
	// clean=false means flushing made progress but is not finished; the
	// driver must call Flush again on a later wake before issuing new
	// writes.
	Flush() (clean bool, err error)

	// Close releases the transport. Called at most once, during pipeline
	// teardown, after the final flush attempt.
	Close() error
}

// Factory produces a fresh Transport, used once at pipeline task start.
type Factory[R any, W any, E any] func() (Transport[R, W, E], error)
