// Package reactor runs one or more non-blocking Tickers cooperatively on
// plain goroutines. It is the minimal scheduler the pipeline driver needs:
// spec.md requires that nothing in the engine ever blocks on I/O, but it
// says nothing about how the host process schedules wake-ups, so this
// package supplies a plain poll-sleep loop rather than anything
// epoll/kqueue-specific.
package reactor

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Ticker performs one non-blocking unit of work per call. progressed
// reports whether the call did anything observable, letting Run back off
// when a Ticker is idle instead of spinning the CPU. A non-nil err is
// terminal: Run stops calling Tick once one is returned.
type Ticker interface {
	Tick() (progressed bool, err error)
}

// TickerFunc adapts a plain function to the Ticker interface.
type TickerFunc func() (progressed bool, err error)

func (f TickerFunc) Tick() (bool, error) { return f() }

// Run drives t until it returns a terminal error or ctx is canceled,
// backing off for idle between ticks that made no progress.
func Run(ctx context.Context, t Ticker, idle time.Duration) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		progressed, err := t.Tick()
		if err != nil {
			return err
		}
		if progressed {
			continue
		}

		timer := time.NewTimer(idle)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// RunAll drives every Ticker concurrently, one goroutine per Ticker, and
// returns the first error any of them produces. The context passed to the
// remaining Tickers is canceled as soon as one fails, so a single broken
// pipeline doesn't leave its siblings spinning forever.
func RunAll(ctx context.Context, idle time.Duration, tickers ...Ticker) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range tickers {
		t := t
		g.Go(func() error {
			return Run(gctx, t, idle)
		})
	}
	return g.Wait()
}
