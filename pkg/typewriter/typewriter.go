// Package typewriter reveals text one character at a time over a target duration.
//
// The revealer emits Reveal events and keeps no rendering state beyond the
// number of characters revealed; callers accumulate the text themselves.
package typewriter

import (
	"time"

	"github.com/aretw0/storyline/pkg/schedule"
)

// Phase is the default scheduler phase for reveal ticks.
const Phase schedule.Phase = "typewriter"

// Reveal is a single revealed character.
type Reveal struct {
	// Index is the rune offset of Char within the text.
	Index int    `json:"index"`
	Char  string `json:"char"`
}

// Revealer drives the reveal of a single text.
// It is not safe for concurrent use; call it from the scheduler's dispatch context.
type Revealer struct {
	sched    *schedule.Scheduler
	phase    schedule.Phase
	onReveal func(Reveal)
	onDone   func()

	text     []rune
	raw      string
	offset   int
	interval time.Duration
	typing   bool
	paused   bool
}

// Option configures a Revealer.
type Option func(*Revealer)

// WithPhase overrides the scheduler phase used for ticks.
func WithPhase(p schedule.Phase) Option {
	return func(r *Revealer) {
		r.phase = p
	}
}

// WithRevealHandler sets the callback invoked for every revealed character.
func WithRevealHandler(fn func(Reveal)) Option {
	return func(r *Revealer) {
		r.onReveal = fn
	}
}

// WithDoneHandler sets the callback invoked once the last character is revealed.
func WithDoneHandler(fn func()) Option {
	return func(r *Revealer) {
		r.onDone = fn
	}
}

// New creates a Revealer that schedules its ticks on s.
func New(s *schedule.Scheduler, opts ...Option) *Revealer {
	r := &Revealer{
		sched:    s,
		phase:    Phase,
		onReveal: func(Reveal) {},
		onDone:   func() {},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start reveals text from the current offset so that the remaining characters
// finish within total. A different text restarts from offset zero.
// Starting a fully revealed text is a no-op. While paused, the start is recorded
// and takes effect on Resume.
func (r *Revealer) Start(text string, total time.Duration) {
	if text != r.raw || r.text == nil {
		r.sched.Cancel(r.phase)
		r.raw = text
		r.text = []rune(text)
		r.offset = 0
		r.typing = false
	}

	remaining := len(r.text) - r.offset
	if remaining <= 0 {
		return
	}

	interval := total / time.Duration(remaining)
	r.interval = interval
	if r.paused {
		return
	}
	r.run(interval)
}

// Pause halts the reveal, keeping the offset and the original interval.
func (r *Revealer) Pause() {
	r.paused = true
	if !r.typing {
		return
	}
	r.sched.Cancel(r.phase)
	r.typing = false
}

// Resume continues the remaining characters at the original interval.
func (r *Revealer) Resume() {
	if !r.paused {
		return
	}
	r.paused = false
	if len(r.text)-r.offset <= 0 || r.interval < 0 {
		return
	}
	r.run(r.interval)
}

// Reset drops the current text and any pending ticks.
func (r *Revealer) Reset() {
	r.sched.Cancel(r.phase)
	r.text = nil
	r.raw = ""
	r.offset = 0
	r.interval = 0
	r.typing = false
	r.paused = false
}

// Progress returns the number of characters revealed so far.
func (r *Revealer) Progress() int {
	return r.offset
}

// Revealed returns the revealed prefix of the text.
func (r *Revealer) Revealed() string {
	return string(r.text[:r.offset])
}

// Interval returns the per-character interval of the current reveal.
func (r *Revealer) Interval() time.Duration {
	return r.interval
}

// Typing reports whether ticks are pending.
func (r *Revealer) Typing() bool {
	return r.typing
}

// Paused reports whether the revealer is paused.
func (r *Revealer) Paused() bool {
	return r.paused
}

// Done reports whether the whole text has been revealed.
func (r *Revealer) Done() bool {
	return r.text != nil && r.offset >= len(r.text)
}

func (r *Revealer) run(interval time.Duration) {
	r.sched.Cancel(r.phase)
	if interval <= 0 {
		for r.offset < len(r.text) {
			r.reveal()
		}
		r.typing = false
		r.onDone()
		return
	}
	r.typing = true
	r.tick(interval)
}

func (r *Revealer) tick(interval time.Duration) {
	r.sched.After(r.phase, interval, func() {
		r.reveal()
		if r.offset >= len(r.text) {
			r.typing = false
			r.onDone()
			return
		}
		r.tick(interval)
	})
}

func (r *Revealer) reveal() {
	i := r.offset
	r.offset++
	r.onReveal(Reveal{Index: i, Char: string(r.text[i])})
}
