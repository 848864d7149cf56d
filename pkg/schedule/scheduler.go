// Package schedule provides a cooperative timer table keyed by phase.
//
// Every delayed step of the playback engine is registered under a Phase, so that
// tearing down a dialogue or a scene is a single CancelAll instead of tracking
// individual timer handles. Callbacks are delivered through a Dispatcher, which
// lets a live session run them on its own event loop.
package schedule

import (
	"sync"
	"time"

	"github.com/aretw0/storyline/pkg/clock"
)

// Phase names a group of timers that are cancelled together.
type Phase string

// Dispatcher runs fn on the owner's execution context.
type Dispatcher func(fn func())

// Direct runs callbacks immediately on the firing goroutine.
func Direct(fn func()) { fn() }

type entry struct {
	id    uint64
	phase Phase
	due   time.Time
	fn    func()
	timer clock.Timer
}

type parked struct {
	remaining time.Duration
	fn        func()
}

// Scheduler is a phase-keyed timer table.
type Scheduler struct {
	clock    clock.Clock
	dispatch Dispatcher

	mu     sync.Mutex
	seq    uint64
	live   map[Phase]map[uint64]*entry
	parked map[Phase][]parked
}

// Option configures the Scheduler.
type Option func(*Scheduler)

// WithDispatcher routes timer callbacks through d.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Scheduler) {
		s.dispatch = d
	}
}

// New creates a Scheduler on top of c.
func New(c clock.Clock, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:    c,
		dispatch: Direct,
		live:     make(map[Phase]map[uint64]*entry),
		parked:   make(map[Phase][]parked),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Clock returns the underlying clock.
func (s *Scheduler) Clock() clock.Clock {
	return s.clock
}

// Now returns the scheduler's current time.
func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

// After registers fn to run after d under phase.
func (s *Scheduler) After(phase Phase, d time.Duration, fn func()) {
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	s.seq++
	e := &entry{id: s.seq, phase: phase, due: s.clock.Now().Add(d), fn: fn}
	if s.live[phase] == nil {
		s.live[phase] = make(map[uint64]*entry)
	}
	s.live[phase][e.id] = e
	s.mu.Unlock()

	e.timer = s.clock.AfterFunc(d, func() {
		s.dispatch(func() { s.fire(e) })
	})
}

// fire runs the entry only if it is still registered; cancelled entries are dropped
// even when their timer already fired and the callback was queued.
func (s *Scheduler) fire(e *entry) {
	s.mu.Lock()
	entries := s.live[e.phase]
	if entries == nil || entries[e.id] != e {
		s.mu.Unlock()
		return
	}
	delete(entries, e.id)
	if len(entries) == 0 {
		delete(s.live, e.phase)
	}
	s.mu.Unlock()

	e.fn()
}

// Cancel drops every timer registered under phase, including paused ones.
func (s *Scheduler) Cancel(phase Phase) {
	s.mu.Lock()
	entries := s.live[phase]
	delete(s.live, phase)
	delete(s.parked, phase)
	s.mu.Unlock()

	for _, e := range entries {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
}

// CancelAll clears the whole table.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	live := s.live
	s.live = make(map[Phase]map[uint64]*entry)
	s.parked = make(map[Phase][]parked)
	s.mu.Unlock()

	for _, entries := range live {
		for _, e := range entries {
			if e.timer != nil {
				e.timer.Stop()
			}
		}
	}
}

// Pause stops the timers of phase and remembers how long each had left.
func (s *Scheduler) Pause(phase Phase) {
	now := s.clock.Now()

	s.mu.Lock()
	entries := s.live[phase]
	delete(s.live, phase)
	for _, e := range entries {
		remaining := e.due.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		s.parked[phase] = append(s.parked[phase], parked{remaining: remaining, fn: e.fn})
	}
	s.mu.Unlock()

	for _, e := range entries {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
}

// Resume re-arms the timers parked by Pause with their remaining delay.
func (s *Scheduler) Resume(phase Phase) {
	s.mu.Lock()
	items := s.parked[phase]
	delete(s.parked, phase)
	s.mu.Unlock()

	for _, p := range items {
		s.After(phase, p.remaining, p.fn)
	}
}

// Pending returns the number of live and paused timers under phase.
func (s *Scheduler) Pending(phase Phase) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live[phase]) + len(s.parked[phase])
}
