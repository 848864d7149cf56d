package runtime_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/storyline/internal/runtime"
	"github.com/aretw0/storyline/pkg/audio"
	"github.com/aretw0/storyline/pkg/clock"
	"github.com/aretw0/storyline/pkg/domain"
	"github.com/aretw0/storyline/pkg/schedule"
)

var t0 = time.Unix(0, 0)

var narrations = audio.Manifest{
	"d0.mp3":    2 * time.Second,
	"one.mp3":   time.Second,
	"short.mp3": 100 * time.Millisecond,
}

type recorder struct {
	events []domain.Event
}

func (r *recorder) handle(e domain.Event) {
	r.events = append(r.events, e)
}

func (r *recorder) count(typ domain.EventType) int {
	n := 0
	for _, e := range r.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func (r *recorder) last(typ domain.EventType) (domain.Event, bool) {
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == typ {
			return r.events[i], true
		}
	}
	return domain.Event{}, false
}

func (r *recorder) progress() []int {
	var out []int
	for _, e := range r.events {
		if e.Type == domain.EventProgress {
			out = append(out, e.Progress)
		}
	}
	return out
}

type machineHarness struct {
	m         *runtime.Machine
	clock     *clock.Manual
	rec       *recorder
	completed int
}

func newMachine(t *testing.T, mission *domain.Mission, sceneIndex int, opts ...runtime.Option) *machineHarness {
	t.Helper()
	sc, _ := mission.Scene(sceneIndex)
	return startMachine(t, runtime.SceneContext{
		Mission:    mission,
		Scene:      sc,
		SceneIndex: sceneIndex,
	}, opts...)
}

func startMachine(t *testing.T, sc runtime.SceneContext, opts ...runtime.Option) *machineHarness {
	t.Helper()
	h := &machineHarness{clock: clock.NewManual(t0), rec: &recorder{}}
	base := []runtime.Option{
		runtime.WithScheduler(schedule.New(h.clock)),
		runtime.WithAudioSource(narrations),
		runtime.WithEventHandler(h.rec.handle),
	}
	h.m = runtime.NewMachine(sc, func() { h.completed++ }, append(base, opts...)...)
	h.m.Start(context.Background())
	return h
}

// singleScene wraps dialogues in a mission whose only scene sits at index 1,
// so the first-scene character delay does not apply.
func singleScene(dialogues ...domain.Dialogue) *domain.Mission {
	return &domain.Mission{
		ID:       "m1",
		Title:    "Mission One",
		HomeBase: "hq",
		Scenes: []domain.Scene{
			{ID: "s0", Background: "park", Dialogues: []domain.Dialogue{{Text: "unused"}}},
			{ID: "s1", Background: "park", Dialogues: dialogues},
		},
	}
}

type fakeStore struct {
	mu      sync.Mutex
	records map[string]domain.ProgressRecord
	saves   []domain.ProgressRecord
	failing bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]domain.ProgressRecord)}
}

func (s *fakeStore) Save(_ context.Context, rec domain.ProgressRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("backend unavailable")
	}
	s.records[rec.Key()] = rec
	s.saves = append(s.saves, rec)
	return nil
}

func (s *fakeStore) Load(_ context.Context, userID, missionID string) (*domain.ProgressRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[domain.ProgressKey(userID, missionID)]
	if !ok {
		return nil, domain.ErrProgressNotFound
	}
	return &rec, nil
}

func (s *fakeStore) Delete(_ context.Context, userID, missionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, domain.ProgressKey(userID, missionID))
	return nil
}

func (s *fakeStore) List(_ context.Context, userID string) ([]domain.ProgressRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ProgressRecord
	for _, rec := range s.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MissionID < out[j].MissionID })
	return out, nil
}

type fakeNotifier struct {
	calls []domain.MissionCompleted
}

func (n *fakeNotifier) NotifyMissionCompleted(_ context.Context, evt domain.MissionCompleted) error {
	n.calls = append(n.calls, evt)
	return nil
}
