package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store marks checkout sessions whose confirmation email has already been
// claimed by one of the two senders (webhook or client-side fallback).
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func key(sessionID string) string {
	return "confirm:" + sessionID
}

// Claim returns true if the caller is the first to claim the session.
func (s *Store) Claim(ctx context.Context, sessionID string) (bool, error) {
	return s.rdb.SetNX(ctx, key(sessionID), "1", s.ttl).Result()
}

// Release frees the claim so a later attempt can retry after a failed send.
func (s *Store) Release(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, key(sessionID)).Err()
}
