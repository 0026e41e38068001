package transport

import (
	"errors"

	"github.com/skipperproto/pipeline/frame"
)

// ErrPeerClosed is returned by PollRead once the peer side of an in-process
// pair has closed its transport.
var ErrPeerClosed = errors.New("transport: peer closed")

// ErrTransportClosed is returned by Write once Close has been called.
var ErrTransportClosed = errors.New("transport: write on closed transport")

// chanTransport is a Transport backed by a pair of buffered Go channels,
// for wiring a client and server pipeline together in one process without
// a real socket: pipelinectl's demo mode and the pipeline package's
// cross-pipeline tests use it instead of a loopback TCP connection.
type chanTransport[R any, W any, E any] struct {
	in     <-chan frame.Frame[R, E]
	out    chan<- frame.Frame[W, E]
	closed bool
}

// NewInProcessPair returns a connected client/server Transport pair: the
// client reads Resp frames and writes Req frames, the server the reverse.
// capacity sizes each direction's channel buffer.
func NewInProcessPair[Req any, Resp any, E any](capacity int) (client Transport[Resp, Req, E], server Transport[Req, Resp, E]) {
	reqCh := make(chan frame.Frame[Req, E], capacity)
	respCh := make(chan frame.Frame[Resp, E], capacity)

	client = &chanTransport[Resp, Req, E]{in: respCh, out: reqCh}
	server = &chanTransport[Req, Resp, E]{in: reqCh, out: respCh}
	return client, server
}

func (t *chanTransport[R, W, E]) PollRead() (frame.Frame[R, E], bool, error) {
	select {
	case f, ok := <-t.in:
		if !ok {
			return frame.Frame[R, E]{}, false, ErrPeerClosed
		}
		return f, true, nil
	default:
		return frame.Frame[R, E]{}, false, nil
	}
}

func (t *chanTransport[R, W, E]) WriteReady() bool {
	return !t.closed && len(t.out) < cap(t.out)
}

func (t *chanTransport[R, W, E]) Write(f frame.Frame[W, E]) (bool, error) {
	if t.closed {
		return false, ErrTransportClosed
	}
	select {
	case t.out <- f:
		return true, nil
	default:
		return false, nil
	}
}

func (t *chanTransport[R, W, E]) Flush() (bool, error) {
	return true, nil
}

func (t *chanTransport[R, W, E]) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.out)
	return nil
}
