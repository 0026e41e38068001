// Package circuitpipe wraps a serverdispatch.Service with a circuit
// breaker, adapted from the teacher's circuit package (itself a thin
// wrapper around sony/gobreaker) to guard against a downstream service that
// has started failing every request: once ReadyToTrip fires, requests fail
// fast with ErrCircuitOpen instead of being handed to a broken service.
package circuitpipe

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/skipperproto/pipeline/frame"
	"github.com/skipperproto/pipeline/serverdispatch"
)

// ErrCircuitOpen is returned as the service error when the breaker is open
// or half-open and has no request slots left.
var ErrCircuitOpen = errors.New("circuitpipe: circuit open")

// Settings configures the breaker, mirroring the teacher's
// circuit.BreakerSettings fields relevant to a single service endpoint.
type Settings struct {
	// ConsecutiveFailures trips the breaker once this many requests in a
	// row have failed.
	ConsecutiveFailures uint32
	// Timeout is how long the breaker stays open before moving to
	// half-open, where up to HalfOpenRequests probe requests are let through.
	Timeout time.Duration
	// HalfOpenRequests caps how many probe requests are allowed while
	// half-open.
	HalfOpenRequests uint32
}

// Breaker wraps a serverdispatch.Service, failing requests fast while open.
type Breaker[Req any, Resp any] struct {
	gb *gobreaker.TwoStepCircuitBreaker
}

// New builds a Breaker from s.
func New[Req any, Resp any](s Settings) *Breaker[Req, Resp] {
	return &Breaker[Req, Resp]{
		gb: gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
			MaxRequests: s.HalfOpenRequests,
			Timeout:     s.Timeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= s.ConsecutiveFailures
			},
		}),
	}
}

// Wrap returns a Service that gates calls to inner through the breaker.
// Admission (the Allow call) happens synchronously and cheaply, matching
// the pipeline task's non-blocking requirement; only the inner service call
// itself may be asynchronous, same as an unwrapped Service.
func (b *Breaker[Req, Resp]) Wrap(inner serverdispatch.Service[Req, Resp]) serverdispatch.Service[Req, Resp] {
	return func(msg frame.Message[Req]) serverdispatch.Future[Resp] {
		done, err := b.gb.Allow()
		if err != nil {
			return serverdispatch.Resolved[Resp](frame.Message[Resp]{}, ErrCircuitOpen)
		}

		future, resolve := serverdispatch.NewFuture[Resp]()
		go b.watch(inner(msg), done, resolve)
		return future
	}
}

func (b *Breaker[Req, Resp]) watch(inner serverdispatch.Future[Resp], done func(bool), resolve func(frame.Message[Resp], error)) {
	for {
		m, err, ready := inner.Poll()
		if ready {
			done(err == nil)
			resolve(m, err)
			return
		}
		time.Sleep(time.Millisecond)
	}
}

// State reports the breaker's current state for observability.
func (b *Breaker[Req, Resp]) State() gobreaker.State {
	return b.gb.State()
}
