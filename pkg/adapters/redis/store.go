package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/storyline/pkg/domain"
)

// DefaultPrefix namespaces every key written by the adapter.
const DefaultPrefix = "storyline:progress:"

// Store implements ports.ProgressStore using Redis.
//
// Each record is a JSON string under prefix+user+":"+mission; a per-user sorted
// set indexes mission ids by last update.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures the Store.
type Option func(*Store)

// WithTTL sets the expiration for records. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *Store) key(userID, missionID string) string {
	return s.prefix + domain.ProgressKey(userID, missionID)
}

func (s *Store) indexKey(userID string) string {
	return s.prefix + "index:" + userID
}

// Save persists the record to Redis.
func (s *Store) Save(ctx context.Context, rec domain.ProgressRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	pipe := s.client.TxPipeline()

	// 1. Save JSON with TTL (0 means no expiration)
	pipe.Set(ctx, s.key(rec.UserID, rec.MissionID), data, s.ttl)

	// 2. Index the mission under the user
	pipe.ZAdd(ctx, s.indexKey(rec.UserID), backend.Z{
		Score:  float64(rec.UpdatedAt.Unix()),
		Member: rec.MissionID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves the record from Redis.
func (s *Store) Load(ctx context.Context, userID, missionID string) (*domain.ProgressRecord, error) {
	val, err := s.client.Get(ctx, s.key(userID, missionID)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrProgressNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var rec domain.ProgressRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress: %w", err)
	}
	return &rec, nil
}

// Delete removes the record.
func (s *Store) Delete(ctx context.Context, userID, missionID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(userID, missionID))
	pipe.ZRem(ctx, s.indexKey(userID), missionID)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns the records of a user ordered by mission id.
// Index entries whose record expired are pruned lazily.
func (s *Store) List(ctx context.Context, userID string) ([]domain.ProgressRecord, error) {
	missions, err := s.client.ZRange(ctx, s.indexKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	if len(missions) == 0 {
		return []domain.ProgressRecord{}, nil
	}

	keys := make([]string, len(missions))
	for i, m := range missions {
		keys[i] = s.key(userID, m)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch progress: %w", err)
	}

	recs := make([]domain.ProgressRecord, 0, len(vals))
	var stale []any
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, missions[i])
			continue
		}
		var rec domain.ProgressRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal progress %s: %w", missions[i], err)
		}
		recs = append(recs, rec)
	}

	if len(stale) > 0 {
		if err := s.client.ZRem(ctx, s.indexKey(userID), stale...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune expired progress: %w", err)
		}
	}

	sort.Slice(recs, func(i, j int) bool { return recs[i].MissionID < recs[j].MissionID })
	return recs, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
