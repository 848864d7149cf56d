package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/storyline/internal/logging"
	"github.com/aretw0/storyline/pkg/domain"
	"github.com/aretw0/storyline/pkg/ports"
)

var _ ports.ProgressStore = (*Manager)(nil)

// DefaultLockTTL bounds how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates progress access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.ProgressStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a new Manager over the given store.
func NewManager(store ports.ProgressStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(key) after unlocking.
func (m *Manager) acquire(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		entry = &lockEntry{}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}

// Load retrieves a record from the store.
func (m *Manager) Load(ctx context.Context, userID, missionID string) (*domain.ProgressRecord, error) {
	var rec *domain.ProgressRecord
	err := m.WithLock(ctx, domain.ProgressKey(userID, missionID), func(ctx context.Context) error {
		var err error
		rec, err = m.store.Load(ctx, userID, missionID)
		return err
	})
	return rec, err
}

// Save merges rec into the stored record: progress never decreases and a
// completed mission stays completed. Step and scene always follow rec.
func (m *Manager) Save(ctx context.Context, rec domain.ProgressRecord) error {
	return m.Update(ctx, rec.UserID, rec.MissionID, func(cur *domain.ProgressRecord) error {
		progress := max(cur.Progress, rec.Progress)
		complete := cur.IsComplete || rec.IsComplete
		*cur = rec
		cur.Progress = progress
		cur.IsComplete = complete
		return nil
	})
}

// Update runs fn on the current record (zero-valued when absent) and stores the
// result, holding the lock for the whole cycle.
func (m *Manager) Update(ctx context.Context, userID, missionID string, fn func(*domain.ProgressRecord) error) error {
	return m.WithLock(ctx, domain.ProgressKey(userID, missionID), func(ctx context.Context) error {
		cur, err := m.store.Load(ctx, userID, missionID)
		switch {
		case errors.Is(err, domain.ErrProgressNotFound):
			cur = &domain.ProgressRecord{UserID: userID, MissionID: missionID}
		case err != nil:
			return fmt.Errorf("failed to read progress: %w", err)
		}

		if err := fn(cur); err != nil {
			return err
		}
		cur.UserID, cur.MissionID = userID, missionID
		if cur.UpdatedAt.IsZero() {
			cur.UpdatedAt = time.Now().UTC()
		}
		return m.store.Save(ctx, *cur)
	})
}

// Delete removes the record from the store.
func (m *Manager) Delete(ctx context.Context, userID, missionID string) error {
	return m.WithLock(ctx, domain.ProgressKey(userID, missionID), func(ctx context.Context) error {
		return m.store.Delete(ctx, userID, missionID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context, userID string) ([]domain.ProgressRecord, error) {
	return m.store.List(ctx, userID)
}

// Store returns the underlying progress store.
func (m *Manager) Store() ports.ProgressStore {
	return m.store
}

// WithLock executes a function while holding the lock for key.
func (m *Manager) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	entry := m.acquire(key)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(key)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, key, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"key", key,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
