/*
Package pipeline (repository root) documents the overall shape of this
module: a pipelined request/response protocol engine that multiplexes one
request stream and one response stream over a single full-duplex
transport connection, without out-of-order completion or reordering.
There is no code at this import path; every operational package lives one
level down.

# Roles

A connection has a client side and a server side, each driven by one
instance of the 'pipeline' package's non-blocking state machine:

  - The client side accepts request submissions from arbitrary caller
    goroutines through 'clientdispatch', writes them to the transport in
    submission order, and resolves each submission's completion with the
    matching response once it arrives, also in that same order.

  - The server side reads requests off the transport, hands each one to a
    user-supplied 'serverdispatch.Service', and writes the service's
    resolved response back in request-acceptance order — even when the
    service itself resolves requests out of order.

Both sides share the same frame vocabulary (package 'frame') and the same
Transport contract (package 'transport'): a message is a head plus an
optional streamed body, and a body is carried as a sequence of chunk
frames bracketed between its message head and an end marker, never
interleaved with the next message's head.

# Package Map

  - frame: wire-level Frame and Message/Body types; no I/O.
  - transport: the non-blocking Transport contract, a scriptable Mock for
    tests, an in-process channel-backed pair for wiring a client and server
    pipeline together without a socket, and Conn, a length-prefixed codec
    over a real net.Conn.
  - ring: a growable FIFO queue used by both dispatch packages to track
    in-flight completions/futures in submission order.
  - clientdispatch: the client-side submission/completion matching logic.
  - serverdispatch: the server-side request/response matching logic, plus
    an optional bounded-concurrency admission gate.
  - pipeline: the frame-level driver shared by both roles, and the
    NewClient/NewServer adapters that specialize it.
  - reactor: the minimal cooperative scheduler that drives one or more
    pipelines to completion.
  - circuitpipe: an optional circuit breaker wrapping a serverdispatch
    Service.
  - metrics: Prometheus instrumentation for pipeline activity.
  - logging: the structured logging surface used throughout.
  - config: pipelinectl's flag- and YAML-driven runtime configuration.
  - cmd/pipelinectl: a runnable demonstration of the whole stack wired
    together over an in-process transport.

# Non-goals

This engine deliberately does not reorder or out-of-order-complete
messages, does not multiplex independent streams under one connection
with interleaved IDs, and does not mitigate head-of-line blocking or
implement any cryptographic framing; see SPEC_FULL.md for the full list
and rationale.
*/
package pipeline
