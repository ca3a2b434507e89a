package extraction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPoller_Until(t *testing.T) {
	t.Run("returns as soon as the check passes", func(t *testing.T) {
		clock := newFakeClock()
		p := &Poller{Interval: time.Second, Clock: clock}

		calls := 0
		err := p.Until(context.Background(), time.Minute, func(context.Context) (bool, error) {
			calls++
			return calls == 3, nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, 2*time.Second, clock.Elapsed())
	})

	t.Run("gives up after the timeout", func(t *testing.T) {
		clock := newFakeClock()
		p := &Poller{Interval: time.Second, Clock: clock}

		calls := 0
		err := p.Until(context.Background(), 5*time.Second, func(context.Context) (bool, error) {
			calls++
			return false, nil
		})

		assert.ErrorIs(t, err, ErrWaitTimeout)
		assert.Equal(t, 6, calls)
		assert.Equal(t, 5*time.Second, clock.Elapsed())
	})

	t.Run("never sleeps past the deadline", func(t *testing.T) {
		clock := newFakeClock()
		p := &Poller{Interval: 4 * time.Second, Clock: clock}

		err := p.Until(context.Background(), 5*time.Second, func(context.Context) (bool, error) {
			return false, nil
		})

		assert.ErrorIs(t, err, ErrWaitTimeout)
		assert.Equal(t, 5*time.Second, clock.Elapsed())
	})

	t.Run("stops on check error", func(t *testing.T) {
		boom := errors.New("boom")
		p := &Poller{Interval: time.Second, Clock: newFakeClock()}

		err := p.Until(context.Background(), time.Minute, func(context.Context) (bool, error) {
			return false, boom
		})

		assert.ErrorIs(t, err, boom)
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		clock := newFakeClock()
		clock.onAdvance = func(time.Duration) { cancel() }
		p := &Poller{Interval: time.Second, Clock: clock}

		err := p.Until(ctx, time.Minute, func(context.Context) (bool, error) {
			return false, nil
		})

		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("real clock", func(t *testing.T) {
		p := NewPoller(5 * time.Millisecond)
		calls := 0
		err := p.Until(context.Background(), time.Second, func(context.Context) (bool, error) {
			calls++
			return calls == 2, nil
		})
		require.NoError(t, err)
	})
}
