package transport

import (
	"errors"
	"sync"

	"github.com/skipperproto/pipeline/frame"
)

// ErrMockClosed is returned by Mock methods once the mock has been closed.
var ErrMockClosed = errors.New("transport: mock transport closed")

// Mock is a single-threaded, fully scriptable Transport used by the
// pipeline's own tests and by callers who want to drive a pipeline without
// a real socket. Its methods lock an internal mutex, but exactly like a
// real Transport it is meant to be owned by one pipeline task.
type Mock[R any, W any, E any] struct {
	mu sync.Mutex

	inbound []frame.Frame[R, E]
	inErr   error

	writeReady   bool
	flushNeeded  int // number of additional Flush calls required before clean
	writeErr     error
	flushErr     error
	written      []frame.Frame[W, E]
	closed       bool
	flushCalls   int
	writeBlocked bool // when true, Write always reports backpressure
}

// NewMock creates an empty Mock transport. By default it is write-ready and
// flushes cleanly on the first call; use Feed, FeedErr, the Set* helpers
// and RequireFlushes to script other behaviors before handing the
// transport to a pipeline.
func NewMock[R any, W any, E any]() *Mock[R, W, E] {
	return &Mock[R, W, E]{writeReady: true}
}

// Feed appends frames to the inbound queue PollRead will drain in order.
func (m *Mock[R, W, E]) Feed(frames ...frame.Frame[R, E]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbound = append(m.inbound, frames...)
}

// FeedErr arranges for PollRead to return err once the queued frames (if
// any) are exhausted.
func (m *Mock[R, W, E]) FeedErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inErr = err
}

// SetWriteReady controls the value WriteReady reports.
func (m *Mock[R, W, E]) SetWriteReady(ready bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeReady = ready
}

// SetWriteBlocked, when blocked is true, makes Write always report
// backpressure (wrote=false) without error, regardless of WriteReady.
func (m *Mock[R, W, E]) SetWriteBlocked(blocked bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeBlocked = blocked
}

// SetWriteErr makes the next Write call (and every call thereafter) fail
// with err.
func (m *Mock[R, W, E]) SetWriteErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// RequireFlushes sets how many Flush calls must happen before Flush reports
// clean. Grounds spec.md §8's test_repeatedly_flushes_messages: the driver
// must honor repeated "needs flush" signals rather than giving up after one.
func (m *Mock[R, W, E]) RequireFlushes(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushNeeded = n
}

// SetFlushErr makes the next Flush call (and every call thereafter) fail
// with err.
func (m *Mock[R, W, E]) SetFlushErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushErr = err
}

// Written returns a snapshot of every frame accepted by Write, in order.
func (m *Mock[R, W, E]) Written() []frame.Frame[W, E] {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]frame.Frame[W, E], len(m.written))
	copy(out, m.written)
	return out
}

// FlushCalls returns how many times Flush has been invoked so far.
func (m *Mock[R, W, E]) FlushCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushCalls
}

// Closed reports whether Close has been called.
func (m *Mock[R, W, E]) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Mock[R, W, E]) PollRead() (frame.Frame[R, E], bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.inbound) == 0 {
		if m.inErr != nil {
			return frame.Frame[R, E]{}, false, m.inErr
		}
		return frame.Frame[R, E]{}, false, nil
	}

	f := m.inbound[0]
	m.inbound = m.inbound[1:]
	return f, true, nil
}

func (m *Mock[R, W, E]) WriteReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeReady
}

func (m *Mock[R, W, E]) Write(f frame.Frame[W, E]) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writeErr != nil {
		return false, m.writeErr
	}
	if m.writeBlocked || !m.writeReady {
		return false, nil
	}

	m.written = append(m.written, f)
	return true, nil
}

func (m *Mock[R, W, E]) Flush() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.flushCalls++
	if m.flushErr != nil {
		return false, m.flushErr
	}

	if m.flushNeeded > 0 {
		m.flushNeeded--
		return false, nil
	}
	return true, nil
}

func (m *Mock[R, W, E]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
