// Package action mounts the mini-games embedded in dialogues.
//
// A mini-game is a Component registered under an action type. The dispatcher
// resolves a dialogue's action descriptor against the Registry and mounts the
// component with its data and a completion callback. Unknown types mount
// nothing; that is not an error.
package action

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/storyline/internal/logging"
	"github.com/aretw0/storyline/pkg/domain"
	"github.com/aretw0/storyline/pkg/schedule"
)

// Phase is the scheduler phase for timers started by mounted components.
const Phase schedule.Phase = "action"

// Props is what a component receives when mounted.
type Props struct {
	Data map[string]any

	// OnComplete signals that the interaction concluded. Components call it once.
	OnComplete func()

	// After schedules fn on the session clock; timers are dropped on unmount.
	After func(d time.Duration, fn func())
}

// Component is a mounted mini-game.
type Component interface {
	// Mount starts the component and returns its teardown.
	Mount(p Props) (unmount func())
}

// ComponentFunc adapts a function to the Component interface.
type ComponentFunc func(p Props) func()

// Mount calls f.
func (f ComponentFunc) Mount(p Props) func() { return f(p) }

// Factory creates a fresh component per mount.
type Factory func() Component

// Registry maps action types to component factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with the built-in components.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TypeRemote, func() Component { return Remote{} })
	r.Register(TypeWait, func() Component { return Wait{} })
	return r
}

// Register binds typ to f, replacing any previous binding.
func (r *Registry) Register(typ string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typ] = f
}

// RegisterRemote binds each type to the Remote component, for mini-games that
// run on the client and report completion through the API.
func (r *Registry) RegisterRemote(types ...string) {
	for _, typ := range types {
		r.Register(typ, func() Component { return Remote{} })
	}
}

// Lookup returns the factory for typ.
func (r *Registry) Lookup(typ string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[typ]
	return f, ok
}

// Has reports whether typ is registered.
func (r *Registry) Has(typ string) bool {
	_, ok := r.Lookup(typ)
	return ok
}

// Types returns the registered types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for typ := range r.factories {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// Mounted is a handle to a mounted action.
type Mounted struct {
	Type  string
	Data  map[string]any
	Known bool

	unmount func()
	once    sync.Once
}

// Unmount tears the component down. It is safe to call more than once.
func (m *Mounted) Unmount() {
	if m == nil {
		return
	}
	m.once.Do(func() {
		if m.unmount != nil {
			m.unmount()
		}
	})
}

// View returns the overlay as clients render it.
func (m *Mounted) View() *domain.MountedAction {
	if m == nil {
		return nil
	}
	return &domain.MountedAction{Type: m.Type, Data: m.Data, Known: m.Known}
}

// Dispatcher mounts actions from a registry.
type Dispatcher struct {
	registry *Registry
	sched    *schedule.Scheduler
	logger   *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// NewDispatcher creates a dispatcher whose components schedule timers on s.
func NewDispatcher(reg *Registry, s *schedule.Scheduler, opts ...Option) *Dispatcher {
	if reg == nil {
		reg = DefaultRegistry()
	}
	d := &Dispatcher{
		registry: reg,
		sched:    s,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Mount resolves a and mounts its component. The dispatcher does not
// deduplicate onComplete calls; callers guard against repeats.
func (d *Dispatcher) Mount(a domain.Action, onComplete func()) *Mounted {
	m := &Mounted{Type: a.Type, Data: a.Data}

	factory, ok := d.registry.Lookup(a.Type)
	if !ok {
		d.logger.Debug("no component for action type", "type", a.Type)
		return m
	}

	m.Known = true
	props := Props{
		Data:       a.Data,
		OnComplete: onComplete,
		After: func(delay time.Duration, fn func()) {
			d.sched.After(Phase, delay, fn)
		},
	}
	teardown := factory().Mount(props)
	m.unmount = func() {
		d.sched.Cancel(Phase)
		if teardown != nil {
			teardown()
		}
	}
	return m
}

// Decode decodes action data into out, accepting loosely typed input such as
// numbers written as strings in frontmatter.
func Decode(data map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := dec.Decode(data); err != nil {
		return fmt.Errorf("failed to decode action data: %w", err)
	}
	return nil
}
