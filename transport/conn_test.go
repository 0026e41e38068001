package transport

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skipperproto/pipeline/frame"
)

func stringCodec[E any]() Codec[string, E] {
	return Codec[string, E]{
		EncodeHead: func(s string) ([]byte, error) { return []byte(s), nil },
		DecodeHead: func(b []byte) (string, error) { return string(b), nil },
	}
}

func errCodec() Codec[string, string] {
	return Codec[string, string]{
		EncodeErr: func(e string) ([]byte, error) { return []byte(e), nil },
		DecodeErr: func(b []byte) (string, error) { return string(b), nil },
	}
}

func newConnPair(t *testing.T) (*Conn[string, string, string], *Conn[string, string, string]) {
	t.Helper()
	a, b := net.Pipe()

	headCodec := stringCodec[string]()
	eCodec := errCodec()
	read := Codec[string, string]{DecodeHead: headCodec.DecodeHead, DecodeErr: eCodec.DecodeErr}
	write := Codec[string, string]{EncodeHead: headCodec.EncodeHead, EncodeErr: eCodec.EncodeErr}

	client := NewConn[string, string, string](a, read, write, ConnOptions{})
	server := NewConn[string, string, string](b, read, write, ConnOptions{})
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}

func pollUntil(t *testing.T, c *Conn[string, string, string], timeout time.Duration) (frame.Frame[string, string], error) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		f, ready, err := c.PollRead()
		if err != nil {
			return frame.Frame[string, string]{}, err
		}
		if ready {
			return f, nil
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for frame")
	return frame.Frame[string, string]{}, nil
}

func TestConnRoundTripsMessageHead(t *testing.T) {
	client, server := newConnPair(t)

	wrote, err := client.Write(frame.Message[string, string]("hello"))
	require.NoError(t, err)
	require.True(t, wrote)

	f, err := pollUntil(t, server, time.Second)
	require.NoError(t, err)
	assert.Equal(t, frame.KindMessage, f.Kind)
	assert.Equal(t, "hello", f.Head)
}

func TestConnRoundTripsBodyChunksAndEnd(t *testing.T) {
	client, server := newConnPair(t)

	_, err := client.Write(frame.MessageWithBody[string, string]("upload", nil))
	require.NoError(t, err)
	_, err = client.Write(frame.BodyChunk[string, string](frame.Chunk("a")))
	require.NoError(t, err)
	_, err = client.Write(frame.BodyEnd[string, string]())
	require.NoError(t, err)

	head, err := pollUntil(t, server, time.Second)
	require.NoError(t, err)
	require.Equal(t, frame.KindMessageWithBody, head.Kind)
	require.NotNil(t, head.Sink)

	// Conn only decodes one frame at a time; wiring the chunk/end frames
	// below into head.Sink is the pipeline driver's job (tickInbound's
	// TryPush/Close), not Conn's, so they arrive here as independent
	// KindBody frames rather than already pushed through the Sink.
	chunk, err := pollUntil(t, server, time.Second)
	require.NoError(t, err)
	require.Equal(t, frame.KindBody, chunk.Kind)
	require.True(t, chunk.HasChunk)
	assert.Equal(t, frame.Chunk("a"), chunk.Chunk)

	end, err := pollUntil(t, server, time.Second)
	require.NoError(t, err)
	assert.Equal(t, frame.KindBody, end.Kind)
	assert.False(t, end.HasChunk)
}

func TestConnRoundTripsErrorFrame(t *testing.T) {
	client, server := newConnPair(t)

	_, err := client.Write(frame.ErrorFrame[string, string]("boom"))
	require.NoError(t, err)

	f, err := pollUntil(t, server, time.Second)
	require.NoError(t, err)
	assert.Equal(t, frame.KindError, f.Kind)
	assert.Equal(t, "boom", f.Err)
}

func TestConnReportsPeerCloseAsError(t *testing.T) {
	client, server := newConnPair(t)
	require.NoError(t, client.Close())

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		_, ready, err := server.PollRead()
		if err != nil {
			return
		}
		if ready {
			t.Fatal("unexpected frame after peer close")
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("server never observed peer close")
}

func TestConnWriteAfterCloseFails(t *testing.T) {
	client, server := newConnPair(t)
	_ = server
	require.NoError(t, client.Close())

	assert.False(t, client.WriteReady())
	_, err := client.Write(frame.Message[string, string]("after-close"))
	assert.ErrorIs(t, err, ErrTransportClosed)
}
