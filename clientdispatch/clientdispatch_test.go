package clientdispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skipperproto/pipeline/frame"
)

func TestPollRequestNotReadyWhenEmpty(t *testing.T) {
	_, d := New[string, string](0)
	_, ready, closed := d.PollRequest()
	assert.False(t, ready)
	assert.False(t, closed)
}

func TestPollRequestThenDispatchResponseFIFO(t *testing.T) {
	client, d := New[string, string](8)

	var completions []Completion[string]
	for _, req := range []string{"one", "two", "three"} {
		completions = append(completions, client.Submit(frame.WithoutBody(req)))
	}

	var got []string
	for i := 0; i < 3; i++ {
		msg, ready, closed := d.PollRequest()
		require.True(t, ready)
		require.False(t, closed)
		got = append(got, msg.Head())
	}
	assert.Equal(t, []string{"one", "two", "three"}, got)

	// Responses dispatched in submission order complete the matching
	// waiting completion, proving FIFO pairing (spec.md §8).
	for i, resp := range []string{"resp-one", "resp-two", "resp-three"} {
		require.NoError(t, d.DispatchResponse(frame.WithoutBody(resp)))

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		msg, err := completions[i].Wait(ctx)
		cancel()
		require.NoError(t, err)
		assert.Equal(t, resp, msg.Head())
	}
}

func TestDispatchResponseMismatch(t *testing.T) {
	_, d := New[string, string](0)
	err := d.DispatchResponse(frame.WithoutBody("unsolicited"))
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestCloseCompletesPendingWithBrokenPipe(t *testing.T) {
	client, d := New[string, string](8)

	var completions []Completion[string]
	for _, req := range []string{"one", "two", "three"} {
		c := client.Submit(frame.WithoutBody(req))
		completions = append(completions, c)
		_, ready, _ := d.PollRequest()
		require.True(t, ready)
	}

	require.True(t, d.HasInFlight())
	d.Close()
	assert.False(t, d.HasInFlight())

	for _, c := range completions {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_, err := c.Wait(ctx)
		cancel()
		assert.ErrorIs(t, err, ErrBrokenPipe)
	}
}

func TestSubmitAfterCloseResolvesImmediately(t *testing.T) {
	client, d := New[string, string](0)
	d.Close()

	c := client.Submit(frame.WithoutBody("too late"))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := c.Wait(ctx)
	assert.ErrorIs(t, err, ErrBrokenPipe)
}

func TestFailFrontFailsOnlyTheFront(t *testing.T) {
	client, d := New[string, string](8)
	c1 := client.Submit(frame.WithoutBody("one"))
	c2 := client.Submit(frame.WithoutBody("two"))
	d.PollRequest()
	d.PollRequest()

	require.True(t, d.FailFront(assert.AnError))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := c1.Wait(ctx)
	assert.ErrorIs(t, err, assert.AnError)

	require.NoError(t, d.DispatchResponse(frame.WithoutBody("resp-two")))
	msg, err := c2.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "resp-two", msg.Head())
}
