// Package idle paces polling loops that have nothing to do.
package idle

import (
	"context"
	"runtime"
	"time"
)

const (
	DefaultMaxSpins  = 20
	DefaultMaxYields = 30
	DefaultMinPark   = 1 * time.Millisecond
	DefaultMaxPark   = 100 * time.Millisecond
)

type State int

const (
	NotIdle State = iota
	Spinning
	Yielding
	Parking
)

func (s State) String() string {
	switch s {
	case NotIdle:
		return "not-idle"
	case Spinning:
		return "spinning"
	case Yielding:
		return "yielding"
	case Parking:
		return "parking"
	default:
		return "unknown"
	}
}

// Backoff spins, then yields the processor, then parks for exponentially
// longer periods while a loop reports no work. Any work resets it.
// A Backoff is not safe for concurrent use.
type Backoff struct {
	maxSpins  int
	maxYields int
	minPark   time.Duration
	maxPark   time.Duration

	state      State
	spins      int
	yields     int
	parkPeriod time.Duration

	yield func()
	park  func(ctx context.Context, d time.Duration) error
}

// NewBackoff returns a Backoff. Non-positive arguments take the defaults.
func NewBackoff(maxSpins, maxYields int, minPark, maxPark time.Duration) *Backoff {
	if maxSpins <= 0 {
		maxSpins = DefaultMaxSpins
	}
	if maxYields <= 0 {
		maxYields = DefaultMaxYields
	}
	if minPark <= 0 {
		minPark = DefaultMinPark
	}
	if maxPark < minPark {
		maxPark = DefaultMaxPark
		if maxPark < minPark {
			maxPark = minPark
		}
	}
	return &Backoff{
		maxSpins:   maxSpins,
		maxYields:  maxYields,
		minPark:    minPark,
		maxPark:    maxPark,
		parkPeriod: minPark,
		yield:      runtime.Gosched,
		park:       sleep,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (b *Backoff) State() State {
	return b.state
}

// ParkPeriod is the duration of the next park.
func (b *Backoff) ParkPeriod() time.Duration {
	return b.parkPeriod
}

func (b *Backoff) Reset() {
	b.spins = 0
	b.yields = 0
	b.parkPeriod = b.minPark
	b.state = NotIdle
}

// Idle is IdleContext without cancellation.
func (b *Backoff) Idle(workCount int) {
	_ = b.IdleContext(context.Background(), workCount)
}

// IdleContext backs off when workCount is zero and resets otherwise. A park
// returns early with the context error when ctx is done.
func (b *Backoff) IdleContext(ctx context.Context, workCount int) error {
	if workCount > 0 {
		b.Reset()
		return nil
	}

	switch b.state {
	case NotIdle:
		b.state = Spinning
		b.spins++
	case Spinning:
		b.spins++
		if b.spins > b.maxSpins {
			b.state = Yielding
			b.yields = 0
		}
	case Yielding:
		b.yields++
		if b.yields > b.maxYields {
			b.state = Parking
			b.parkPeriod = b.minPark
		} else {
			b.yield()
		}
	case Parking:
		err := b.park(ctx, b.parkPeriod)
		b.parkPeriod *= 2
		if b.parkPeriod > b.maxPark {
			b.parkPeriod = b.maxPark
		}
		return err
	}
	return nil
}
