package frame

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageWithoutBody(t *testing.T) {
	m := WithoutBody("hello")
	assert.Equal(t, "hello", m.Head())
	assert.False(t, m.HasBody())

	body, ok := m.TakeBody()
	assert.False(t, ok)
	assert.Nil(t, body)
}

func TestMessageTakeBodyOnce(t *testing.T) {
	sink, body := NewBody(1)
	defer sink.Close()

	m := WithBody("hello", body)
	assert.True(t, m.HasBody())

	got, ok := m.TakeBody()
	require.True(t, ok)
	assert.Same(t, body, got)

	_, ok = m.TakeBody()
	assert.False(t, ok, "a second TakeBody must yield nothing")
}

func TestBodyPushAndPoll(t *testing.T) {
	sink, body := NewBody(1)

	_, ready, _ := body.Poll()
	assert.False(t, ready, "empty channel must not be ready")

	require.True(t, sink.TryPush(Chunk("one")))
	c, ready, done := body.Poll()
	require.True(t, ready)
	assert.False(t, done)
	assert.Equal(t, Chunk("one"), c)

	sink.Close()
	_, ready, done = body.Poll()
	require.True(t, ready)
	assert.True(t, done)
}

func TestBodyBackpressure(t *testing.T) {
	sink, _ := NewBody(1)
	defer sink.Close()

	require.True(t, sink.TryPush(Chunk("one")))
	assert.False(t, sink.TryPush(Chunk("two")), "a full channel must refuse without blocking")
}

func TestBodyRecv(t *testing.T) {
	sink, body := NewBody(2)
	require.True(t, sink.TryPush(Chunk("a")))
	require.True(t, sink.TryPush(Chunk("b")))
	sink.Close()

	ctx := context.Background()
	c, done, err := body.Recv(ctx)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, Chunk("a"), c)

	c, done, err = body.Recv(ctx)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, Chunk("b"), c)

	_, done, err = body.Recv(ctx)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestBodyDrain(t *testing.T) {
	sink, body := NewBody(4)
	for _, c := range []Chunk{[]byte("1"), []byte("2"), []byte("3")} {
		require.True(t, sink.TryPush(c))
	}
	sink.Close()

	require.NoError(t, body.Drain(context.Background()))
}

func TestFrameConstructors(t *testing.T) {
	type head struct{ v string }
	type perr struct{ msg string }

	m := Message[head, perr](head{"h"})
	assert.Equal(t, KindMessage, m.Kind)

	sink, _ := NewBody(1)
	defer sink.Close()
	mb := MessageWithBody[head, perr](head{"h"}, sink)
	assert.Equal(t, KindMessageWithBody, mb.Kind)
	assert.Same(t, sink, mb.Sink)

	bc := BodyChunk[head, perr](Chunk("x"))
	assert.Equal(t, KindBody, bc.Kind)
	assert.True(t, bc.HasChunk)

	be := BodyEnd[head, perr]()
	assert.Equal(t, KindBody, be.Kind)
	assert.False(t, be.HasChunk)

	ef := ErrorFrame[head, perr](perr{"boom"})
	assert.Equal(t, KindError, ef.Kind)
	assert.Equal(t, "boom", ef.Err.msg)

	d := Done[head, perr]()
	assert.Equal(t, KindDone, d.Kind)
}
