package frame

import (
	"context"
	"sync"
)

// Chunk is one unit of a streamed message body.
type Chunk []byte

// BodySource is polled by the pipeline driver to pull outbound body chunks.
// Poll never blocks: ready reports whether chunk/done carry a meaningful
// result for this call, not whether the stream has ended.
type BodySource interface {
	Poll() (chunk Chunk, ready bool, done bool)
}

// BodySink is the producer side of a body channel. It is pushed into either
// by the pipeline driver (delivering chunks read off an inbound body) or by
// application code feeding an outbound response/request body.
type BodySink struct {
	ch        chan Chunk
	body      *Body
	closeOnce sync.Once
}

// NewBody creates a connected sink/stream pair with the given channel
// capacity. A capacity of 0 yields an unbuffered, fully synchronous
// handoff; spec.md leaves the capacity unspecified, recommending a small
// bounded default for backpressure (see config.Config.BodyChannelCapacity).
func NewBody(capacity int) (*BodySink, *Body) {
	ch := make(chan Chunk, capacity)
	sink := &BodySink{ch: ch}
	sink.body = &Body{ch: ch}
	return sink, sink.body
}

// Receiver returns the read side paired with this sink.
func (s *BodySink) Receiver() *Body {
	return s.body
}

// TryPush attempts to enqueue a chunk without blocking. false means the
// channel is currently full and the caller (the pipeline's read track)
// must retry after the next wake, throttling the inbound transport read in
// the meantime.
func (s *BodySink) TryPush(c Chunk) bool {
	select {
	case s.ch <- c:
		return true
	default:
		return false
	}
}

// Close signals end-of-stream to the receiving side. Safe to call more than
// once.
func (s *BodySink) Close() {
	s.closeOnce.Do(func() { close(s.ch) })
}

// Body is the consumer side of a body channel. It doubles as a BodySource
// (non-blocking Poll, used by the pipeline driver to emit outbound chunks)
// and as a blocking receiver (Recv, used by application code draining an
// inbound body off the pipeline task).
type Body struct {
	ch <-chan Chunk
}

// Poll implements BodySource. ready=false means neither a chunk nor
// end-of-stream is available yet. ready=true, done=true means the stream is
// exhausted; chunk is empty in that case.
func (b *Body) Poll() (chunk Chunk, ready bool, done bool) {
	select {
	case c, ok := <-b.ch:
		if !ok {
			return nil, true, true
		}
		return c, true, false
	default:
		return nil, false, false
	}
}

// Recv blocks until a chunk is available, the stream ends, or ctx is done.
// It is meant for application code consuming a body out-of-band, never for
// the pipeline task itself.
func (b *Body) Recv(ctx context.Context) (chunk Chunk, done bool, err error) {
	select {
	case c, ok := <-b.ch:
		if !ok {
			return nil, true, nil
		}
		return c, false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Drain consumes and discards the remainder of the body, returning once
// end-of-stream is reached or ctx is done. Services that accept a request
// without caring about its body (spec.md §8,
// test_pipeline_streaming_body_without_consuming) should still eventually
// drain it, or simply let the Body be garbage collected: an undrained Body
// only holds its buffered chunks, it does not block the pipeline.
func (b *Body) Drain(ctx context.Context) error {
	for {
		_, done, err := b.Recv(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}
