// Package postgres persists mission progress in PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aretw0/storyline/pkg/domain"
	"github.com/aretw0/storyline/pkg/ports"
)

var _ ports.ProgressStore = (*Store)(nil)

// DBTX is the subset of pgx used by the store; *pgxpool.Pool and pgx.Tx satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schema = `
CREATE TABLE IF NOT EXISTS mission_progress (
    user_id     TEXT        NOT NULL,
    mission_id  TEXT        NOT NULL,
    step        INTEGER     NOT NULL DEFAULT 0,
    scene_id    TEXT        NOT NULL DEFAULT '',
    progress    INTEGER     NOT NULL DEFAULT 0 CHECK (progress BETWEEN 0 AND 100),
    is_complete BOOLEAN     NOT NULL DEFAULT FALSE,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, mission_id)
)`

// Store implements ports.ProgressStore on a mission_progress table.
type Store struct {
	db DBTX
}

// New creates a Store on db.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// Connect opens a pool for dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the progress table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create mission_progress: %w", err)
	}
	return nil
}

// Save upserts the record. Progress never decreases and completion is never undone.
func (s *Store) Save(ctx context.Context, rec domain.ProgressRecord) error {
	query := `
        INSERT INTO mission_progress (user_id, mission_id, step, scene_id, progress, is_complete, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
        ON CONFLICT (user_id, mission_id) DO UPDATE SET
            step        = EXCLUDED.step,
            scene_id    = EXCLUDED.scene_id,
            progress    = GREATEST(mission_progress.progress, EXCLUDED.progress),
            is_complete = mission_progress.is_complete OR EXCLUDED.is_complete,
            updated_at  = EXCLUDED.updated_at
    `
	var updated any
	if !rec.UpdatedAt.IsZero() {
		updated = rec.UpdatedAt
	}

	_, err := s.db.Exec(ctx, query, rec.UserID, rec.MissionID, rec.Step, rec.SceneID, rec.Progress, rec.IsComplete, updated)
	if err != nil {
		return fmt.Errorf("database error saving progress %s: %w", rec.Key(), err)
	}
	return nil
}

// Load retrieves the record of a user for a mission.
func (s *Store) Load(ctx context.Context, userID, missionID string) (*domain.ProgressRecord, error) {
	query := `
        SELECT user_id, mission_id, step, scene_id, progress, is_complete, updated_at
        FROM mission_progress WHERE user_id = $1 AND mission_id = $2
    `
	rec, err := scan(s.db.QueryRow(ctx, query, userID, missionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProgressNotFound
		}
		return nil, fmt.Errorf("database error loading progress %s: %w", domain.ProgressKey(userID, missionID), err)
	}
	return rec, nil
}

// Delete removes the record.
func (s *Store) Delete(ctx context.Context, userID, missionID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM mission_progress WHERE user_id = $1 AND mission_id = $2`, userID, missionID)
	if err != nil {
		return fmt.Errorf("database error deleting progress %s: %w", domain.ProgressKey(userID, missionID), err)
	}
	return nil
}

// List returns every record of a user ordered by mission id.
func (s *Store) List(ctx context.Context, userID string) ([]domain.ProgressRecord, error) {
	query := `
        SELECT user_id, mission_id, step, scene_id, progress, is_complete, updated_at
        FROM mission_progress WHERE user_id = $1 ORDER BY mission_id
    `
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress of %s: %w", userID, err)
	}
	defer rows.Close()

	recs := make([]domain.ProgressRecord, 0)
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress row: %w", err)
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating progress rows: %w", err)
	}
	return recs, nil
}

func scan(row pgx.Row) (*domain.ProgressRecord, error) {
	var rec domain.ProgressRecord
	err := row.Scan(&rec.UserID, &rec.MissionID, &rec.Step, &rec.SceneID, &rec.Progress, &rec.IsComplete, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
