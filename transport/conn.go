package transport

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/skipperproto/pipeline/frame"
)

// ErrTooLong is returned when a decoded payload length exceeds the Conn's
// configured read limit, mirroring other_examples' framer.ErrTooLong.
var ErrTooLong = errors.New("transport: framed payload exceeds read limit")

// wire kind bytes. Pinned explicitly rather than reusing frame.Kind's own
// iota values, so the wire format never shifts if frame.Kind gains a new
// variant in a different position.
const (
	wireKindMessage byte = iota
	wireKindMessageWithBody
	wireKindBodyChunk
	wireKindBodyEnd
	wireKindError
	wireKindDone
)

const headerSize = 1 + 4 // kind byte + uint32 big-endian length

// Codec turns a Frame's application-defined Head and Err payloads into
// bytes and back, so Conn can carry any (Req, Resp, E) triple over a plain
// net.Conn. None of the four funcs may block.
type Codec[Head any, Err any] struct {
	EncodeHead func(Head) ([]byte, error)
	DecodeHead func([]byte) (Head, error)
	EncodeErr  func(Err) ([]byte, error)
	DecodeErr  func([]byte) (Err, error)
}

// ConnOptions tunes a Conn's internal buffering. The zero value is usable;
// every field falls back to a sensible default.
type ConnOptions struct {
	// ReadQueueSize bounds how many decoded frames the reader goroutine may
	// get ahead of PollRead by. Default 32.
	ReadQueueSize int
	// WriteQueueSize bounds how many encoded frames Write may accept before
	// reporting backpressure. Default 32.
	WriteQueueSize int
	// BodyChannelCapacity sizes the BodySink Conn allocates for each inbound
	// KindMessageWithBody frame, mirroring
	// config.Config.BodyChannelCapacity. Default 32.
	BodyChannelCapacity int
	// ReadLimit caps a single payload's decoded length; 0 means no limit.
	ReadLimit uint32
}

func (o ConnOptions) withDefaults() ConnOptions {
	if o.ReadQueueSize <= 0 {
		o.ReadQueueSize = 32
	}
	if o.WriteQueueSize <= 0 {
		o.WriteQueueSize = 32
	}
	if o.BodyChannelCapacity <= 0 {
		o.BodyChannelCapacity = 32
	}
	return o
}

type readResult[R any, E any] struct {
	frame frame.Frame[R, E]
	err   error
}

// Conn is a length-prefixed Transport over any net.Conn: a 1-byte frame
// kind, a 4-byte big-endian payload length, then the encoded payload. A
// background goroutine decodes inbound frames into a buffered channel and
// another encodes and writes outbound ones from a second buffered channel,
// grounded on smux's session.go shaper/writer goroutine split (writes never
// touch the socket on the caller's goroutine) and on
// other_examples' hayabusa-cloud-framer header-plus-length wire shape. Both
// PollRead and Write are non-blocking; the channels themselves are where
// backpressure accumulates.
type Conn[R any, W any, E any] struct {
	conn net.Conn

	decodeHead func([]byte) (R, error)
	encodeHead func(W) ([]byte, error)
	encodeErr  func(E) ([]byte, error)
	decodeErr  func([]byte) (E, error)

	bodyChannelCapacity int

	reads  chan readResult[R, E]
	writes chan frame.Frame[W, E]

	pendingWrites int32
	writeErr      atomic.Value // error
	closedFlag    int32

	closeOnce sync.Once
	closed    chan struct{}
}

// NewConn wraps conn as a Transport, using read to decode frames headed
// toward this side and write to encode frames headed away from it.
func NewConn[R any, W any, E any](conn net.Conn, read Codec[R, E], write Codec[W, E], opts ConnOptions) *Conn[R, W, E] {
	opts = opts.withDefaults()
	c := &Conn[R, W, E]{
		conn:                conn,
		decodeHead:          read.DecodeHead,
		encodeHead:          write.EncodeHead,
		encodeErr:           write.EncodeErr,
		decodeErr:           read.DecodeErr,
		bodyChannelCapacity: opts.BodyChannelCapacity,
		reads:               make(chan readResult[R, E], opts.ReadQueueSize),
		writes:              make(chan frame.Frame[W, E], opts.WriteQueueSize),
		closed:              make(chan struct{}),
	}
	go c.readLoop(opts.ReadLimit)
	go c.writeLoop()
	return c
}

func (c *Conn[R, W, E]) readLoop(limit uint32) {
	br := bufio.NewReader(c.conn)
	header := make([]byte, headerSize)
	for {
		if _, err := io.ReadFull(br, header); err != nil {
			c.emit(readResult[R, E]{err: err})
			return
		}
		kind := header[0]
		length := binary.BigEndian.Uint32(header[1:])
		if limit > 0 && length > limit {
			c.emit(readResult[R, E]{err: ErrTooLong})
			return
		}

		var payload []byte
		if length > 0 {
			payload = make([]byte, length)
			if _, err := io.ReadFull(br, payload); err != nil {
				c.emit(readResult[R, E]{err: err})
				return
			}
		}

		f, err := c.decode(kind, payload)
		if err != nil {
			c.emit(readResult[R, E]{err: err})
			return
		}
		c.emit(readResult[R, E]{frame: f})
	}
}

func (c *Conn[R, W, E]) emit(r readResult[R, E]) {
	select {
	case c.reads <- r:
	case <-c.closed:
	}
}

func (c *Conn[R, W, E]) decode(kind byte, payload []byte) (frame.Frame[R, E], error) {
	switch kind {
	case wireKindMessage:
		head, err := c.decodeHead(payload)
		if err != nil {
			return frame.Frame[R, E]{}, err
		}
		return frame.Message[R, E](head), nil

	case wireKindMessageWithBody:
		head, err := c.decodeHead(payload)
		if err != nil {
			return frame.Frame[R, E]{}, err
		}
		sink, _ := frame.NewBody(c.bodyChannelCapacity)
		return frame.MessageWithBody[R, E](head, sink), nil

	case wireKindBodyChunk:
		chunk := make(frame.Chunk, len(payload))
		copy(chunk, payload)
		return frame.BodyChunk[R, E](chunk), nil

	case wireKindBodyEnd:
		return frame.BodyEnd[R, E](), nil

	case wireKindError:
		e, err := c.decodeErr(payload)
		if err != nil {
			return frame.Frame[R, E]{}, err
		}
		return frame.ErrorFrame[R, E](e), nil

	case wireKindDone:
		return frame.Done[R, E](), nil

	default:
		return frame.Frame[R, E]{}, errors.New("transport: unknown wire frame kind")
	}
}

func (c *Conn[R, W, E]) encode(f frame.Frame[W, E]) (kind byte, payload []byte, err error) {
	switch f.Kind {
	case frame.KindMessage:
		payload, err = c.encodeHead(f.Head)
		return wireKindMessage, payload, err

	case frame.KindMessageWithBody:
		payload, err = c.encodeHead(f.Head)
		return wireKindMessageWithBody, payload, err

	case frame.KindBody:
		if !f.HasChunk {
			return wireKindBodyEnd, nil, nil
		}
		return wireKindBodyChunk, f.Chunk, nil

	case frame.KindError:
		payload, err = c.encodeErr(f.Err)
		return wireKindError, payload, err

	case frame.KindDone:
		return wireKindDone, nil, nil

	default:
		return 0, nil, errors.New("transport: unknown frame kind")
	}
}

func (c *Conn[R, W, E]) writeLoop() {
	bw := bufio.NewWriter(c.conn)
	header := make([]byte, headerSize)
	for {
		select {
		case f := <-c.writes:
			kind, payload, err := c.encode(f)
			if err == nil {
				header[0] = kind
				binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))
				if _, werr := bw.Write(header); werr != nil {
					err = werr
				} else if len(payload) > 0 {
					if _, werr := bw.Write(payload); werr != nil {
						err = werr
					}
				}
			}
			if err == nil {
				if werr := bw.Flush(); werr != nil {
					err = werr
				}
			}
			if err != nil {
				c.writeErr.Store(err)
			}
			atomic.AddInt32(&c.pendingWrites, -1)
		case <-c.closed:
			return
		}
	}
}

func (c *Conn[R, W, E]) loadWriteErr() error {
	v := c.writeErr.Load()
	if v == nil {
		return nil
	}
	return v.(error)
}

// PollRead returns the next decoded inbound frame, if the reader goroutine
// has one ready.
func (c *Conn[R, W, E]) PollRead() (frame.Frame[R, E], bool, error) {
	select {
	case r, ok := <-c.reads:
		if !ok {
			return frame.Frame[R, E]{}, false, ErrTransportClosed
		}
		if r.err != nil {
			return frame.Frame[R, E]{}, false, r.err
		}
		return r.frame, true, nil
	default:
		return frame.Frame[R, E]{}, false, nil
	}
}

// WriteReady reports whether Write currently has room in its outbound
// queue, no earlier write has failed, and Close has not been called.
func (c *Conn[R, W, E]) WriteReady() bool {
	if atomic.LoadInt32(&c.closedFlag) != 0 || c.loadWriteErr() != nil {
		return false
	}
	return len(c.writes) < cap(c.writes)
}

// Write hands f to the writer goroutine. wrote=false means the outbound
// queue is full; the caller must retry the same frame later.
func (c *Conn[R, W, E]) Write(f frame.Frame[W, E]) (bool, error) {
	if atomic.LoadInt32(&c.closedFlag) != 0 {
		return false, ErrTransportClosed
	}
	if err := c.loadWriteErr(); err != nil {
		return false, err
	}
	atomic.AddInt32(&c.pendingWrites, 1)
	select {
	case c.writes <- f:
		return true, nil
	default:
		atomic.AddInt32(&c.pendingWrites, -1)
		return false, nil
	}
}

// Flush reports clean=true once every frame handed to Write has actually
// reached the socket (or failed). It never calls bufio.Writer.Flush
// itself beyond what writeLoop already does after each frame.
func (c *Conn[R, W, E]) Flush() (bool, error) {
	if err := c.loadWriteErr(); err != nil {
		return false, err
	}
	return atomic.LoadInt32(&c.pendingWrites) == 0, nil
}

// Close stops both background goroutines and closes the underlying
// net.Conn. Safe to call more than once.
func (c *Conn[R, W, E]) Close() error {
	var err error
	c.closeOnce.Do(func() {
		atomic.StoreInt32(&c.closedFlag, 1)
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}
