package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alpacahq/streamspy/utils/idle"
)

type fakeLoggable struct {
	work  []int
	err   error
	calls int
}

func (f *fakeLoggable) Process() (int, error) {
	f.calls++
	if len(f.work) == 0 {
		return 0, f.err
	}
	w := f.work[0]
	f.work = f.work[1:]
	return w, nil
}

func newTestHarness(continuous bool, units ...Loggable) *Harness {
	return &Harness{
		continuous: continuous,
		units:      units,
		idle:       idle.NewBackoff(2, 2, time.Millisecond, 4*time.Millisecond),
	}
}

func TestHarness_OneShotStopsOnIdlePass(t *testing.T) {
	t.Parallel()
	a := &fakeLoggable{work: []int{2, 0, 1}}
	b := &fakeLoggable{work: []int{0, 1}}
	h := newTestHarness(false, a, b)

	assert.Nil(t, h.Run(context.Background()))
	// passes 1-3 find work, pass 4 finds none
	assert.Equal(t, 4, a.calls)
	assert.Equal(t, 4, b.calls)
}

func TestHarness_OneShotWithoutUnits(t *testing.T) {
	t.Parallel()
	h := newTestHarness(false)
	assert.Nil(t, h.Run(context.Background()))
}

func TestHarness_FollowStopsOnCancel(t *testing.T) {
	t.Parallel()
	a := &fakeLoggable{work: []int{1}}
	h := newTestHarness(true, a)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	assert.Nil(t, h.Run(ctx))
	assert.True(t, time.Since(start) >= 50*time.Millisecond)
	assert.Greater(t, a.calls, 2)
	assert.Equal(t, idle.Parking, h.idle.State())
}

func TestHarness_FollowWithoutUnits(t *testing.T) {
	t.Parallel()
	h := newTestHarness(true)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Nil(t, h.Run(ctx))
}

func TestHarness_CancelledBeforeRun(t *testing.T) {
	t.Parallel()
	a := &fakeLoggable{work: []int{1, 1, 1}}
	h := newTestHarness(true, a)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Nil(t, h.Run(ctx))
	assert.Equal(t, 0, a.calls)
}

func TestHarness_ProcessError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	a := &fakeLoggable{work: []int{1}, err: boom}
	b := &fakeLoggable{work: []int{1, 1}}
	h := newTestHarness(true, a, b)

	assert.ErrorIs(t, h.Run(context.Background()), boom)
	// the failing pass stops before later units
	assert.Equal(t, 2, a.calls)
	assert.Equal(t, 1, b.calls)
}
