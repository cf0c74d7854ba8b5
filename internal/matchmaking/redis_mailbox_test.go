package matchmaking

import (
	"context"
	"testing"
	"time"

	"github.com/duochat/duochat-backend/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisMailbox(t *testing.T) (*RedisMailbox, *redis.Client) {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skip("Redis not available:", err)
	}

	prefix := "test:mailbox:" + t.Name() + ":"
	t.Cleanup(func() {
		keys, _ := client.Keys(ctx, prefix+"*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		client.Close()
	})

	return NewRedisMailbox(client, prefix, time.Minute), client
}

func TestRedisMailbox_PutTake(t *testing.T) {
	m, client := setupRedisMailbox(t)
	ctx := context.Background()

	want := MatchResult{
		Matched:     true,
		RoomID:      "call_a_b_1",
		CallID:      "c1",
		ChannelName: "ch_1_abcd",
		Token:       "tok",
		Account:     "b",
		Role:        CallRoleCallee,
		Other:       models.UserSummary{ID: "a", Name: "Ana", FirstName: "Ana", Role: models.RoleFemale},
	}
	require.NoError(t, m.Put(ctx, "b", want))

	ttl, err := client.TTL(ctx, m.keyPrefix+"b").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	got, ok, err := m.Take(ctx, "b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	_, ok, err = m.Take(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisMailbox_Discard(t *testing.T) {
	m, _ := setupRedisMailbox(t)
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "a", MatchResult{RoomID: "r1"}))
	require.NoError(t, m.Discard(ctx, "a", "b"))
	require.NoError(t, m.Discard(ctx))

	_, ok, err := m.Take(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}
