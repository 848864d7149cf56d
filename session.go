package storyline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/storyline/internal/runtime"
	"github.com/aretw0/storyline/pkg/domain"
	"github.com/aretw0/storyline/pkg/schedule"
)

// Session is one live playthrough of a mission.
//
// All playback work (commands and timer callbacks) runs on the session's own
// goroutine in submission order. Methods are safe for concurrent use.
type Session struct {
	ID        string
	UserID    string
	MissionID string

	eng    *Engine
	seq    *runtime.Sequencer
	sched  *schedule.Scheduler
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	qmu    sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}

	stop      chan struct{}
	exited    chan struct{}
	closeOnce sync.Once

	// loop-owned
	last      *domain.PlaybackState
	finishing bool

	smu     sync.Mutex
	subs    map[int]chan domain.Event
	nextSub int
}

func newSession(e *Engine, id, userID string, m *domain.Mission) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:        id,
		UserID:    userID,
		MissionID: m.ID,
		eng:       e,
		logger:    e.logger.With("session_id", id, "mission_id", m.ID),
		ctx:       ctx,
		cancel:    cancel,
		wake:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
		exited:    make(chan struct{}),
		subs:      make(map[int]chan domain.Event),
	}
	s.sched = schedule.New(e.clock, schedule.WithDispatcher(s.dispatch))
	s.seq = runtime.NewSequencer(m, userID, e.runtimeOptions(s)...)
	return s
}

// dispatch hands timer callbacks to the loop. It never blocks, so timers
// firing on foreign goroutines cannot stall.
func (s *Session) dispatch(fn func()) {
	s.enqueue(fn)
}

func (s *Session) enqueue(fn func()) bool {
	s.qmu.Lock()
	if s.closed {
		s.qmu.Unlock()
		return false
	}
	s.queue = append(s.queue, fn)
	s.qmu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

func (s *Session) pop() func() {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	if len(s.queue) == 0 {
		return nil
	}
	fn := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return fn
}

func (s *Session) loop() {
	defer s.shutdown()
	for {
		select {
		case <-s.stop:
			return
		case <-s.wake:
		}

		for fn := s.pop(); fn != nil; fn = s.pop() {
			fn()
			s.publishState()
			if s.finishing {
				return
			}
			select {
			case <-s.stop:
				return
			default:
			}
		}
	}
}

func (s *Session) shutdown() {
	s.qmu.Lock()
	s.closed = true
	s.queue = nil
	s.qmu.Unlock()

	s.sched.CancelAll()
	s.cancel()

	s.smu.Lock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.smu.Unlock()

	s.eng.forget(s)
	close(s.exited)
	s.logger.Info("session closed")
}

// submit runs fn on the loop and waits for it to finish.
func (s *Session) submit(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !s.enqueue(func() { fn(); close(done) }) {
		return domain.ErrSessionClosed
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.exited:
		select {
		case <-done:
			return nil
		default:
			return domain.ErrSessionClosed
		}
	}
}

// Close stops the session and waits for its loop to exit. Pending timers are
// dropped and subscriber channels are closed.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.stop) })
	<-s.exited
}

// Done is closed once the session has stopped, either explicitly or because
// the mission completed.
func (s *Session) Done() <-chan struct{} {
	return s.exited
}

// onEvent runs on the loop for every playback event.
func (s *Session) onEvent(e domain.Event) {
	s.broadcast(e)
	if e.Type == domain.EventMissionComplete {
		s.finishing = true
	}
}

// publishState emits the difference between the last published state and now.
func (s *Session) publishState() {
	m := s.seq.Machine()
	if m == nil {
		return
	}
	cur := m.State()
	diff := domain.Diff(s.ID, s.last, cur)
	s.last = cur
	if diff == nil {
		return
	}
	s.broadcast(domain.Event{
		Type:          domain.EventState,
		Timestamp:     s.sched.Now(),
		SessionID:     s.ID,
		MissionID:     s.MissionID,
		SceneIndex:    cur.SceneIndex,
		DialogueIndex: cur.DialogueIndex,
		Diff:          diff,
	})
}

func (s *Session) broadcast(e domain.Event) {
	s.smu.Lock()
	defer s.smu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- e:
		default:
			s.logger.Warn("dropping event for slow subscriber", "subscriber", id, "type", e.Type)
		}
	}
}

// Subscribe registers a listener. The first event delivered is a state event
// carrying the full current state. The returned function unsubscribes; the
// channel is also closed when the session stops.
func (s *Session) Subscribe(ctx context.Context, buffer int) (<-chan domain.Event, func(), error) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan domain.Event, buffer)
	var id int

	err := s.submit(ctx, func() {
		s.smu.Lock()
		id = s.nextSub
		s.nextSub++
		s.subs[id] = ch
		s.smu.Unlock()

		cur := s.seq.Machine().State()
		ch <- domain.Event{
			Type:          domain.EventState,
			Timestamp:     s.sched.Now(),
			SessionID:     s.ID,
			MissionID:     s.MissionID,
			SceneIndex:    cur.SceneIndex,
			DialogueIndex: cur.DialogueIndex,
			Diff:          domain.Diff(s.ID, nil, cur),
		}
	})
	if err != nil {
		return nil, nil, err
	}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.smu.Lock()
			defer s.smu.Unlock()
			if c, ok := s.subs[id]; ok {
				close(c)
				delete(s.subs, id)
			}
		})
	}
	return ch, unsubscribe, nil
}

// Snapshot is the externally visible view of a session.
type Snapshot struct {
	SessionID    string                `json:"session_id"`
	UserID       string                `json:"user_id"`
	MissionID    string                `json:"mission_id"`
	MissionTitle string                `json:"mission_title"`
	SceneIndex   int                   `json:"scene_index"`
	SceneCount   int                   `json:"scene_count"`
	Progress     int                   `json:"progress"`
	Complete     bool                  `json:"complete"`
	State        *domain.PlaybackState `json:"state"`
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot(ctx context.Context) (*Snapshot, error) {
	var snap *Snapshot
	if err := s.submit(ctx, func() { snap = s.snapshot() }); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Session) snapshot() *Snapshot {
	m := s.seq.Mission()
	snap := &Snapshot{
		SessionID:    s.ID,
		UserID:       s.UserID,
		MissionID:    m.ID,
		MissionTitle: m.Title,
		SceneIndex:   s.seq.SceneIndex(),
		SceneCount:   len(m.Scenes),
		Progress:     s.seq.Progress(),
		Complete:     s.seq.Complete(),
	}
	if mach := s.seq.Machine(); mach != nil {
		snap.State = mach.State()
	}
	return snap
}
