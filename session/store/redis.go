package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ravivarmakumar/prism/message"
	"github.com/redis/go-redis/v9"
)

// RedisStore implements session history using a Redis list per session.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	maxKeep int64
}

// RedisConfig holds Redis configuration for sessions.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
	// MaxKeep bounds how many messages a session list retains.
	MaxKeep int64
}

// DefaultRedisConfig returns default Redis session configuration.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:    "localhost:6379",
		Prefix:  "prism:session:",
		TTL:     24 * time.Hour,
		MaxKeep: 200,
	}
}

// NewRedisStore creates a new Redis-based session store.
func NewRedisStore(config *RedisConfig) *RedisStore {
	if config == nil {
		config = DefaultRedisConfig()
	}
	if config.Prefix == "" {
		config.Prefix = "prism:session:"
	}
	if config.MaxKeep <= 0 {
		config.MaxKeep = 200
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	return &RedisStore{
		client:  client,
		prefix:  config.Prefix,
		ttl:     config.TTL,
		maxKeep: config.MaxKeep,
	}
}

// Append adds one message to the session's history list.
func (s *RedisStore) Append(ctx context.Context, sessionID string, msg *message.Message) error {
	if sessionID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}
	if msg == nil {
		return fmt.Errorf("message cannot be nil")
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	key := s.sessionKey(sessionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, raw)
	pipe.LTrim(ctx, key, -s.maxKeep, -1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append session message: %w", err)
	}
	return nil
}

// Recent returns up to limit most recent messages, oldest first.
func (s *RedisStore) Recent(ctx context.Context, sessionID string, limit int) ([]*message.Message, error) {
	if limit <= 0 {
		limit = 10
	}

	key := s.sessionKey(sessionID)
	raws, err := s.client.LRange(ctx, key, int64(-limit), -1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session history: %w", err)
	}

	messages := make([]*message.Message, 0, len(raws))
	for _, raw := range raws {
		var msg message.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, fmt.Errorf("failed to decode session message: %w", err)
		}
		messages = append(messages, &msg)
	}
	return messages, nil
}

// Clear removes a session's history.
func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Ping checks if Redis connection is alive.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) sessionKey(id string) string {
	return s.prefix + id
}
