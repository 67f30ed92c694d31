package progress

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatchSize = 100

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// RedisStore keeps each session's shown ids in a Redis list that expires after ttl
// without writes. A zero ttl keeps the lists forever.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

func NewRedisStore(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

func (s *RedisStore) key(sessionID string) string {
	return s.keyPrefix + "progress:" + sessionID
}

// pattern matches every progress key of this store. The prefix is matched literally.
func (s *RedisStore) pattern() string {
	return globEscaper.Replace(s.keyPrefix) + "progress:*"
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) ([]string, error) {
	shown, err := s.client.LRange(ctx, s.key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load progress of session %s: %w", sessionID, err)
	}
	if shown == nil {
		shown = []string{}
	}
	return shown, nil
}

func (s *RedisStore) Save(ctx context.Context, sessionID string, shown []string) error {
	key := s.key(sessionID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(shown) == 0 {
			return nil
		}
		values := make([]any, len(shown))
		for i, id := range shown {
			values[i] = id
		}
		pipe.RPush(ctx, key, values...)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save progress of session %s: %w", sessionID, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear progress of session %s: %w", sessionID, err)
	}
	return nil
}

func (s *RedisStore) ClearAll(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.pattern(), scanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("failed to scan progress keys: %w", err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to clear progress keys: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
