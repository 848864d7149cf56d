// Package firestore persists mission progress in Cloud Firestore.
//
// Records live at users/{userID}/missionProgress/{missionID}, the layout the web
// client reads.
package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/aretw0/storyline/pkg/domain"
	"github.com/aretw0/storyline/pkg/ports"
)

var _ ports.ProgressStore = (*Store)(nil)

const (
	usersCollection    = "users"
	progressCollection = "missionProgress"
)

// Store implements ports.ProgressStore on Firestore.
type Store struct {
	client *firestore.Client
}

// NewFromClient wraps an existing client.
func NewFromClient(client *firestore.Client) *Store {
	return &Store{client: client}
}

// New initializes a Firebase app for projectID and opens its Firestore client.
// An empty credentialsFile uses application default credentials (or the emulator).
func New(ctx context.Context, projectID, credentialsFile string) (*Store, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open firestore client: %w", err)
	}
	return &Store{client: client}, nil
}

func (s *Store) collection(userID string) *firestore.CollectionRef {
	return s.client.Collection(usersCollection).Doc(userID).Collection(progressCollection)
}

// Save overwrites the record document.
func (s *Store) Save(ctx context.Context, rec domain.ProgressRecord) error {
	if _, err := s.collection(rec.UserID).Doc(rec.MissionID).Set(ctx, rec); err != nil {
		return fmt.Errorf("failed to save progress %s: %w", rec.Key(), err)
	}
	return nil
}

// Load retrieves the record document.
func (s *Store) Load(ctx context.Context, userID, missionID string) (*domain.ProgressRecord, error) {
	snap, err := s.collection(userID).Doc(missionID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrProgressNotFound
		}
		return nil, fmt.Errorf("failed to load progress %s: %w", domain.ProgressKey(userID, missionID), err)
	}

	var rec domain.ProgressRecord
	if err := snap.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode progress %s: %w", snap.Ref.ID, err)
	}
	return &rec, nil
}

// Delete removes the record document.
func (s *Store) Delete(ctx context.Context, userID, missionID string) error {
	if _, err := s.collection(userID).Doc(missionID).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete progress %s: %w", domain.ProgressKey(userID, missionID), err)
	}
	return nil
}

// List returns every record of a user ordered by mission id.
func (s *Store) List(ctx context.Context, userID string) ([]domain.ProgressRecord, error) {
	iter := s.collection(userID).OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx)
	defer iter.Stop()

	recs := make([]domain.ProgressRecord, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list progress of %s: %w", userID, err)
		}
		var rec domain.ProgressRecord
		if err := snap.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode progress %s: %w", snap.Ref.ID, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}
