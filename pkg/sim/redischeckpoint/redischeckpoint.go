// Package redischeckpoint provides an optional sim.CheckpointStore
// backed by Redis, for hosts running the Simulator across processes
// (spec §4.6 Checkpointing). It mirrors the teacher's
// pkg/kernel/limiter_redis.go use of go-redis for shared external
// state: a thin client wrapper, keys namespaced by a fixed prefix, no
// Lua scripting needed here since Save/Load is a plain SET/GET rather
// than an atomic read-modify-write.
package redischeckpoint

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/legalis-go/core/pkg/sim"
)

const keyPrefix = "legalis:checkpoint:"

var _ sim.CheckpointStore = (*Store)(nil)

// Store implements sim.CheckpointStore on top of a Redis client.
type Store struct {
	client *redis.Client
}

// New builds a Store from connection parameters, the same shape the
// teacher's NewRedisLimiterStore takes.
func New(addr, password string, db int) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Store{client: client}
}

// NewFromClient wraps an already-configured *redis.Client, for hosts
// sharing one client across several subsystems.
func NewFromClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Save stores a checkpoint's bytes under key, with no expiry: a
// checkpoint is a durable resume point, not a cache entry.
func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, keyPrefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("redischeckpoint: save %q: %w", key, err)
	}
	return nil
}

// Load retrieves a checkpoint's bytes, returning ok=false if no
// checkpoint has been saved under key.
func (s *Store) Load(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redischeckpoint: load %q: %w", key, err)
	}
	return data, true, nil
}

// Close releases the underlying client's connections.
func (s *Store) Close() error {
	return s.client.Close()
}
