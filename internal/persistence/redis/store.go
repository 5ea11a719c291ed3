// Package redis stores household snapshots in Redis so several API replicas share one medium.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"example.com/nannytracker/internal/persistence/kv"
)

// Store implements kv.Store on a Redis client. Values never expire.
type Store struct {
	client *goredis.Client
}

// New connects to Redis and verifies the connection with a ping.
func New(addr, password string, db int) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{client: client}, nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *goredis.Client) *Store {
	return &Store{client: client}
}

// Get implements kv.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set implements kv.Store.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, key, value, 0).Err()
}

// Remove implements kv.Store.
func (s *Store) Remove(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// Apply implements kv.Store as a MULTI/EXEC transaction.
func (s *Store) Apply(ctx context.Context, ops []kv.Op) error {
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, op := range ops {
			if op.Value == nil {
				pipe.Del(ctx, op.Key)
				continue
			}
			pipe.Set(ctx, op.Key, op.Value, 0)
		}
		return nil
	})
	return err
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}
