package extraction

import (
	"context"
	"time"
)

// Clock abstracts time for every wait in the engine.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock is the wall clock.
var SystemClock Clock = realClock{}

// Poller runs bounded condition checks at a fixed interval.
type Poller struct {
	Interval time.Duration
	Clock    Clock
}

// NewPoller returns a poller on the wall clock.
func NewPoller(interval time.Duration) *Poller {
	return &Poller{Interval: interval, Clock: SystemClock}
}

// Until calls check immediately and then once per interval until it reports
// done or returns an error. It gives up with ErrWaitTimeout once timeout has
// elapsed on the poller's clock, or with ctx.Err() when ctx ends first.
func (p *Poller) Until(ctx context.Context, timeout time.Duration, check func(ctx context.Context) (bool, error)) error {
	clock := p.clock()
	deadline := clock.Now().Add(timeout)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		remaining := deadline.Sub(clock.Now())
		if remaining <= 0 {
			return ErrWaitTimeout
		}
		wait := p.Interval
		if wait <= 0 || wait > remaining {
			wait = remaining
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(wait):
		}
	}
}

func (p *Poller) clock() Clock {
	if p.Clock == nil {
		return SystemClock
	}
	return p.Clock
}
