package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/focusquest-dev/focusquest/game"
)

// RedisStore implements Store using Redis.
// It provides distributed state storage suitable for multi-node deployments
// and serves the leaderboard from a sorted set maintained on every commit.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	mu     sync.RWMutex
	closed bool
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string `yaml:"addr"`
	// Password is the Redis password (optional).
	Password string `yaml:"password"`
	// DB is the Redis database number.
	DB int `yaml:"db"`
	// Prefix is the key prefix for all keys (default: "focusquest:").
	Prefix string `yaml:"prefix"`
	// SummaryTTL is the expiry for stored summaries (0 = never expire).
	// States and the leaderboard never expire.
	SummaryTTL time.Duration `yaml:"summary_ttl"`
	// PoolSize is the connection pool size (default: 10).
	PoolSize int `yaml:"pool_size"`
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "focusquest:"
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: poolSize,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    cfg.SummaryTTL,
	}, nil
}

// NewRedisStoreFromClient creates a Redis store from an existing client.
// This is useful for testing with miniredis.
func NewRedisStoreFromClient(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "focusquest:"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Key helpers
func (r *RedisStore) stateKey(userID string) string {
	return r.prefix + "state:" + userID
}

func (r *RedisStore) summaryKey(sessionID string) string {
	return r.prefix + "summary:" + sessionID
}

func (r *RedisStore) usersKey() string {
	return r.prefix + "users"
}

func (r *RedisStore) leaderboardKey() string {
	return r.prefix + "leaderboard"
}

// GetState retrieves a user's aggregate state.
func (r *RedisStore) GetState(ctx context.Context, userID string) (*game.UserGameState, error) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	r.mu.RUnlock()

	data, err := r.client.Get(ctx, r.stateKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("get state: %w", err)
	}

	var state game.UserGameState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return &state, nil
}

// SaveState writes a user's aggregate state and updates the indexes.
func (r *RedisStore) SaveState(ctx context.Context, state *game.UserGameState) error {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return ErrStoreClosed
	}
	r.mu.RUnlock()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.stateKey(state.UserID), data, 0)
	pipe.SAdd(ctx, r.usersKey(), state.UserID)
	pipe.ZAdd(ctx, r.leaderboardKey(), redis.Z{Score: float64(state.TotalXP), Member: state.UserID})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// ListStates returns every committed user state.
func (r *RedisStore) ListStates(ctx context.Context) ([]*game.UserGameState, error) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	r.mu.RUnlock()

	userIDs, err := r.client.SMembers(ctx, r.usersKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	states := make([]*game.UserGameState, 0, len(userIDs))
	for _, id := range userIDs {
		state, err := r.GetState(ctx, id)
		if err != nil {
			if errors.Is(err, ErrStateNotFound) {
				// State was deleted, clean up index
				r.client.SRem(ctx, r.usersKey(), id)
				continue
			}
			return nil, err
		}
		states = append(states, state)
	}
	return states, nil
}

// GetSummary retrieves the stored summary for a scored session.
func (r *RedisStore) GetSummary(ctx context.Context, sessionID string) (*game.SessionSummary, error) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	r.mu.RUnlock()

	data, err := r.client.Get(ctx, r.summaryKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSummaryNotFound
		}
		return nil, fmt.Errorf("get summary: %w", err)
	}

	var summary game.SessionSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	return &summary, nil
}

// Commit atomically writes the new state, the summary, and the leaderboard
// entry in a single transactional pipeline.
func (r *RedisStore) Commit(ctx context.Context, state *game.UserGameState, summary *game.SessionSummary) error {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return ErrStoreClosed
	}
	r.mu.RUnlock()

	stateData, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	summaryData, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.stateKey(state.UserID), stateData, 0)
		pipe.Set(ctx, r.summaryKey(summary.SessionID), summaryData, r.ttl)
		pipe.SAdd(ctx, r.usersKey(), state.UserID)
		pipe.ZAdd(ctx, r.leaderboardKey(), redis.Z{Score: float64(state.TotalXP), Member: state.UserID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Top returns the n highest-XP users from the leaderboard sorted set.
func (r *RedisStore) Top(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	r.mu.RUnlock()

	if n <= 0 {
		n = 10
	}
	rows, err := r.client.ZRevRangeWithScores(ctx, r.leaderboardKey(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}

	entries := make([]LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		userID, ok := row.Member.(string)
		if !ok {
			continue
		}
		entry := LeaderboardEntry{UserID: userID, TotalXP: int(row.Score)}
		if state, err := r.GetState(ctx, userID); err == nil {
			entry.Tier = state.Tier
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Close releases resources held by the store.
func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.client.Close()
}

// Ping checks if the Redis connection is alive.
func (r *RedisStore) Ping(ctx context.Context) error {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return ErrStoreClosed
	}
	r.mu.RUnlock()

	return r.client.Ping(ctx).Err()
}
