// Package firestore implements the game state store on Google Cloud
// Firestore. Importing the package registers the "firestore" driver.
//
// Important Notes:
//   - Commit runs in a Firestore transaction, so the state write and the
//     summary write land together or not at all
//   - Documents are keyed by user id (states) and session id (summaries)
//   - The leaderboard query needs a descending index on TotalXP
package firestore

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/focusquest-dev/focusquest/game"
	"github.com/focusquest-dev/focusquest/pkg/store"
)

const (
	statesCollection    = "game_states"
	summariesCollection = "session_summaries"
)

// FirestoreStore implements store.Store backed by Cloud Firestore.
type FirestoreStore struct {
	client    *firestore.Client
	projectID string
	mu        sync.RWMutex
	closed    bool
}

// Config contains configuration for the Firestore store.
type Config struct {
	ProjectID       string
	CredentialsFile string
}

// Option configures a FirestoreStore.
type Option func(*Config)

// WithProjectID sets the GCP project ID.
func WithProjectID(projectID string) Option {
	return func(c *Config) {
		c.ProjectID = projectID
	}
}

// WithCredentialsFile sets the path to service account credentials.
func WithCredentialsFile(path string) Option {
	return func(c *Config) {
		c.CredentialsFile = path
	}
}

// New creates a new FirestoreStore.
//
// Options:
//   - WithProjectID(id): Set GCP project ID (required)
//   - WithCredentialsFile(path): Use service account credentials
//   - Otherwise uses Application Default Credentials
func New(ctx context.Context, opts ...Option) (*FirestoreStore, error) {
	config := &Config{}
	for _, opt := range opts {
		opt(config)
	}

	if config.ProjectID == "" {
		return nil, fmt.Errorf("project ID is required")
	}

	var clientOpts []option.ClientOption
	if config.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(config.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, config.ProjectID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	return &FirestoreStore{
		client:    client,
		projectID: config.ProjectID,
	}, nil
}

// NewFromClient creates a FirestoreStore from an existing client.
// This is useful for testing against the Firestore emulator.
func NewFromClient(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

// GetState retrieves a user's aggregate state.
func (f *FirestoreStore) GetState(ctx context.Context, userID string) (*game.UserGameState, error) {
	f.mu.RLock()
	if f.closed {
		f.mu.RUnlock()
		return nil, store.ErrStoreClosed
	}
	f.mu.RUnlock()

	doc, err := f.client.Collection(statesCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, store.ErrStateNotFound
		}
		return nil, fmt.Errorf("get state: %w", err)
	}

	var state game.UserGameState
	if err := doc.DataTo(&state); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &state, nil
}

// SaveState writes a user's aggregate state.
func (f *FirestoreStore) SaveState(ctx context.Context, state *game.UserGameState) error {
	f.mu.RLock()
	if f.closed {
		f.mu.RUnlock()
		return store.ErrStoreClosed
	}
	f.mu.RUnlock()

	_, err := f.client.Collection(statesCollection).Doc(state.UserID).Set(ctx, state)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// ListStates returns every committed user state.
func (f *FirestoreStore) ListStates(ctx context.Context) ([]*game.UserGameState, error) {
	f.mu.RLock()
	if f.closed {
		f.mu.RUnlock()
		return nil, store.ErrStoreClosed
	}
	f.mu.RUnlock()

	var states []*game.UserGameState
	iter := f.client.Collection(statesCollection).Documents(ctx)
	defer iter.Stop()

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list states: %w", err)
		}
		var state game.UserGameState
		if err := doc.DataTo(&state); err != nil {
			return nil, fmt.Errorf("decode state %s: %w", doc.Ref.ID, err)
		}
		states = append(states, &state)
	}
	return states, nil
}

// GetSummary retrieves the stored summary for a scored session.
func (f *FirestoreStore) GetSummary(ctx context.Context, sessionID string) (*game.SessionSummary, error) {
	f.mu.RLock()
	if f.closed {
		f.mu.RUnlock()
		return nil, store.ErrStoreClosed
	}
	f.mu.RUnlock()

	doc, err := f.client.Collection(summariesCollection).Doc(sessionID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, store.ErrSummaryNotFound
		}
		return nil, fmt.Errorf("get summary: %w", err)
	}

	var summary game.SessionSummary
	if err := doc.DataTo(&summary); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	return &summary, nil
}

// Commit atomically writes the new state and the summary in one
// Firestore transaction.
func (f *FirestoreStore) Commit(ctx context.Context, state *game.UserGameState, summary *game.SessionSummary) error {
	f.mu.RLock()
	if f.closed {
		f.mu.RUnlock()
		return store.ErrStoreClosed
	}
	f.mu.RUnlock()

	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Set(f.client.Collection(statesCollection).Doc(state.UserID), state); err != nil {
			return err
		}
		return tx.Set(f.client.Collection(summariesCollection).Doc(summary.SessionID), summary)
	})
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Top returns the n highest-XP users in descending order.
func (f *FirestoreStore) Top(ctx context.Context, n int) ([]store.LeaderboardEntry, error) {
	f.mu.RLock()
	if f.closed {
		f.mu.RUnlock()
		return nil, store.ErrStoreClosed
	}
	f.mu.RUnlock()

	if n <= 0 {
		n = 10
	}

	var entries []store.LeaderboardEntry
	iter := f.client.Collection(statesCollection).
		OrderBy("TotalXP", firestore.Desc).
		Limit(n).
		Documents(ctx)
	defer iter.Stop()

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("leaderboard: %w", err)
		}
		var state game.UserGameState
		if err := doc.DataTo(&state); err != nil {
			return nil, fmt.Errorf("decode state %s: %w", doc.Ref.ID, err)
		}
		entries = append(entries, store.LeaderboardEntry{
			UserID:  state.UserID,
			TotalXP: state.TotalXP,
			Tier:    state.Tier,
		})
	}
	return entries, nil
}

// Close releases the Firestore client.
func (f *FirestoreStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	return f.client.Close()
}

func init() {
	store.Register("firestore", func(config store.Config) (store.Store, error) {
		opts := []Option{WithProjectID(config.Firestore.ProjectID)}
		if config.Firestore.CredentialsFile != "" {
			opts = append(opts, WithCredentialsFile(config.Firestore.CredentialsFile))
		}
		return New(context.Background(), opts...)
	})
}
