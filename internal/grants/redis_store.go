// Package grants provides storage backends for viewer grant tokens,
// the proof that a view session already passed the access gate for a
// given greeting.
package grants

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// grantData is the payload stored per grant token.
type grantData struct {
	GreetingID string    `json:"greeting_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// RedisStore implements grant storage using Redis. Expiry is handled
// by key TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis-backed grant store.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: "grant:"}, nil
}

func (s *RedisStore) key(token string) string {
	return s.prefix + token
}

// SaveViewGrant stores a grant token with expiration.
func (s *RedisStore) SaveViewGrant(ctx context.Context, token, greetingID string, expiresAt time.Time) error {
	data := grantData{GreetingID: greetingID, CreatedAt: time.Now()}
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal grant data: %w", err)
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	if err := s.client.Set(ctx, s.key(token), jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("save view grant: %w", err)
	}
	return nil
}

// LookupViewGrant resolves a grant token to the greeting it unlocks.
func (s *RedisStore) LookupViewGrant(ctx context.Context, token string) (string, error) {
	jsonData, err := s.client.Get(ctx, s.key(token)).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("grant not found or expired")
	}
	if err != nil {
		return "", fmt.Errorf("lookup view grant: %w", err)
	}

	var data grantData
	if err := json.Unmarshal([]byte(jsonData), &data); err != nil {
		return "", fmt.Errorf("unmarshal grant data: %w", err)
	}
	return data.GreetingID, nil
}

// RevokeViewGrant deletes a grant token.
func (s *RedisStore) RevokeViewGrant(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("revoke view grant: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
