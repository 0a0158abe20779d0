package mascot

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// manualClock 记录已安排的回调，由测试推进时间
type manualClock struct {
	mu      sync.Mutex
	now     time.Duration
	pending []*manualTimer
}

type manualTimer struct {
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{at: c.now + d, f: f}
	c.pending = append(c.pending, t)
	return t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	due := make([]*manualTimer, 0)
	for _, t := range c.pending {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) on(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func newTestMachine(clock *manualClock, rec *recorder) *StateMachine {
	return NewStateMachine(Config{
		ShowAfter: 500 * time.Millisecond,
		HideAfter: 10 * time.Second,
		Message:   "Wow! Another day of pump and dump. Shill me some coins to pump!",
	}, rec.on, clock.AfterFunc, zap.NewNop())
}

func TestStateMachine_Lifecycle(t *testing.T) {
	t.Run("hidden until 500ms after mount", func(t *testing.T) {
		clock, rec := &manualClock{}, &recorder{}
		sm := newTestMachine(clock, rec)
		sm.Start()

		clock.Advance(499 * time.Millisecond)

		assert.False(t, sm.State().Visible)
		assert.Equal(t, PhasePending, sm.State().Phase)
		assert.Empty(t, rec.states)
	})

	t.Run("visible at 500ms then hidden at 10s and never again", func(t *testing.T) {
		clock, rec := &manualClock{}, &recorder{}
		sm := newTestMachine(clock, rec)
		sm.Start()

		clock.Advance(500 * time.Millisecond)
		assert.True(t, sm.State().Visible)

		clock.Advance(9499 * time.Millisecond)
		assert.True(t, sm.State().Visible)

		clock.Advance(1 * time.Millisecond)
		assert.False(t, sm.State().Visible)
		assert.Equal(t, PhaseDismissed, sm.State().Phase)

		clock.Advance(time.Hour)

		require.Len(t, rec.states, 2)
		assert.True(t, rec.states[0].Visible)
		assert.False(t, rec.states[1].Visible)
		assert.Equal(t, "Wow! Another day of pump and dump. Shill me some coins to pump!", rec.states[0].Message)
	})

	t.Run("start is applied once", func(t *testing.T) {
		clock, rec := &manualClock{}, &recorder{}
		sm := newTestMachine(clock, rec)
		sm.Start()
		sm.Start()

		assert.Len(t, clock.pending, 2)
	})
}

func TestStateMachine_Stop(t *testing.T) {
	t.Run("cancels pending timers", func(t *testing.T) {
		clock, rec := &manualClock{}, &recorder{}
		sm := newTestMachine(clock, rec)
		sm.Start()

		sm.Stop()
		clock.Advance(time.Minute)

		assert.Empty(t, rec.states)
		for _, timer := range clock.pending {
			assert.True(t, timer.stopped)
		}
	})

	t.Run("stops after the bubble is shown", func(t *testing.T) {
		clock, rec := &manualClock{}, &recorder{}
		sm := newTestMachine(clock, rec)
		sm.Start()
		clock.Advance(time.Second)

		sm.Stop()
		clock.Advance(time.Minute)

		require.Len(t, rec.states, 1)
		assert.True(t, rec.states[0].Visible)
	})

	t.Run("a late show never follows the hide", func(t *testing.T) {
		rec := &recorder{}
		sm := NewStateMachine(Config{}, rec.on, func(time.Duration, func()) Timer { return &manualTimer{} }, zap.NewNop())

		sm.transition(PhaseDismissed)
		sm.transition(PhaseShowing)

		require.Len(t, rec.states, 1)
		assert.False(t, sm.State().Visible)
	})
}

func TestStateMachine_RealTimers(t *testing.T) {
	rec := &recorder{}
	sm := NewStateMachine(Config{ShowAfter: 10 * time.Millisecond, HideAfter: 40 * time.Millisecond}, rec.on, nil, zap.NewNop())
	sm.Start()
	defer sm.Stop()

	assert.Eventually(t, func() bool { return sm.State().Phase == PhaseDismissed }, time.Second, 5*time.Millisecond)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.states, 2)
}
