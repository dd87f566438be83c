package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const activeSessionsKey = "active_sessions"

// Store records session status for other processes to observe.
type Store interface {
	Save(ctx context.Context, st Status) error
	Remove(ctx context.Context, sessionID string) error
}

// RedisStore keeps one hash per session plus a set of active session IDs.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis and pings it. Callers run without a store
// when this fails.
func NewRedisStore(ctx context.Context, addr, password string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis unavailable at %s: %w", addr, err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func sessionKey(id string) string {
	return "session:" + id
}

// Save writes the status hash and refreshes its expiry.
func (rs *RedisStore) Save(ctx context.Context, st Status) error {
	key := sessionKey(st.SessionID)
	_, err := rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]interface{}{
			"state":        string(st.State),
			"error":        st.Error,
			"attempt":      st.Attempt,
			"max_attempts": st.MaxAttempts,
			"language":     st.Language,
			"updated_at":   time.Now().Format(time.RFC3339),
		})
		pipe.SAdd(ctx, activeSessionsKey, st.SessionID)
		if rs.ttl > 0 {
			pipe.Expire(ctx, key, rs.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session status: %w", err)
	}
	return nil
}

// Remove deletes the session's hash and set membership.
func (rs *RedisStore) Remove(ctx context.Context, sessionID string) error {
	_, err := rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(sessionID))
		pipe.SRem(ctx, activeSessionsKey, sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove session status: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
