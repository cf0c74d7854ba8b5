package matchmaking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMailbox stores pending results in Redis so they survive an API restart.
// Entries expire with the credentials they carry.
type RedisMailbox struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

func NewRedisMailbox(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisMailbox {
	if keyPrefix == "" {
		keyPrefix = "matchmaking:mailbox:"
	}
	return &RedisMailbox{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

func (m *RedisMailbox) Put(ctx context.Context, participantID string, result MatchResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal match result: %w", err)
	}

	if err := m.client.Set(ctx, m.keyPrefix+participantID, data, m.ttl).Err(); err != nil {
		return fmt.Errorf("failed to park match result: %w", err)
	}
	return nil
}

// Take uses GETDEL so two concurrent polls cannot both receive the result.
func (m *RedisMailbox) Take(ctx context.Context, participantID string) (MatchResult, bool, error) {
	data, err := m.client.GetDel(ctx, m.keyPrefix+participantID).Bytes()
	if errors.Is(err, redis.Nil) {
		return MatchResult{}, false, nil
	}
	if err != nil {
		return MatchResult{}, false, fmt.Errorf("failed to take match result: %w", err)
	}

	var result MatchResult
	if err := json.Unmarshal(data, &result); err != nil {
		return MatchResult{}, false, fmt.Errorf("failed to unmarshal match result: %w", err)
	}
	return result, true, nil
}

func (m *RedisMailbox) Discard(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = m.keyPrefix + k
	}
	if err := m.client.Del(ctx, redisKeys...).Err(); err != nil {
		return fmt.Errorf("failed to discard match results: %w", err)
	}
	return nil
}
