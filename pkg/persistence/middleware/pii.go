package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/aretw0/storyline/pkg/domain"
	"github.com/aretw0/storyline/pkg/ports"
)

// ErrEmptyKey is returned by NewPIIMiddleware when no key is given.
var ErrEmptyKey = errors.New("pseudonym key must not be empty")

type piiMiddleware struct {
	next ports.ProgressStore
	key  []byte
}

// NewPIIMiddleware creates a middleware that replaces user ids with a keyed
// HMAC-SHA256 pseudonym before they reach the backend. Records read back carry
// the caller's user id again, so the decorated store behaves like the original.
func NewPIIMiddleware(key []byte) (Middleware, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	k := append([]byte(nil), key...)
	return func(next ports.ProgressStore) ports.ProgressStore {
		return &piiMiddleware{next: next, key: k}
	}, nil
}

// Pseudonym returns the stored form of userID under key.
func Pseudonym(key []byte, userID string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(userID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (m *piiMiddleware) Save(ctx context.Context, rec domain.ProgressRecord) error {
	rec.UserID = Pseudonym(m.key, rec.UserID)
	return m.next.Save(ctx, rec)
}

func (m *piiMiddleware) Load(ctx context.Context, userID, missionID string) (*domain.ProgressRecord, error) {
	rec, err := m.next.Load(ctx, Pseudonym(m.key, userID), missionID)
	if err != nil {
		return nil, err
	}
	rec.UserID = userID
	return rec, nil
}

func (m *piiMiddleware) Delete(ctx context.Context, userID, missionID string) error {
	return m.next.Delete(ctx, Pseudonym(m.key, userID), missionID)
}

func (m *piiMiddleware) List(ctx context.Context, userID string) ([]domain.ProgressRecord, error) {
	recs, err := m.next.List(ctx, Pseudonym(m.key, userID))
	if err != nil {
		return nil, err
	}
	for i := range recs {
		recs[i].UserID = userID
	}
	return recs, nil
}
