package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "notify:settings:"

// RedisStorage stores each user's settings as a JSON string.
// Modify uses WATCH/MULTI and retries when another writer wins the race.
type RedisStorage struct {
	client     redis.UniversalClient
	prefix     string
	maxRetries int
}

// RedisOption configures a RedisStorage.
type RedisOption func(*RedisStorage)

// WithKeyPrefix overrides the "notify:settings:" key prefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStorage) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithMaxRetries bounds optimistic transaction retries.
func WithMaxRetries(n int) RedisOption {
	return func(s *RedisStorage) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

func NewRedisStorage(client redis.UniversalClient, opts ...RedisOption) *RedisStorage {
	s := &RedisStorage{
		client:     client,
		prefix:     defaultKeyPrefix,
		maxRetries: 5,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStorage) key(userID string) string {
	return s.prefix + userID
}

func (s *RedisStorage) Get(ctx context.Context, userID string) (Settings, error) {
	raw, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Settings{}, ErrSettingsNotFound
	}
	if err != nil {
		return Settings{}, fmt.Errorf("get settings: %w", err)
	}
	return decode(raw)
}

func (s *RedisStorage) Modify(ctx context.Context, userID string, fn ModifyFunc) (Settings, error) {
	key := s.key(userID)
	var result Settings

	txf := func(tx *redis.Tx) error {
		cur, found := Settings{}, true
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			found = false
		case err != nil:
			return fmt.Errorf("get settings: %w", err)
		default:
			if cur, err = decode(raw); err != nil {
				return err
			}
		}

		next, err := fn(cur, found)
		if err != nil {
			return err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode settings: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err == nil {
			result = next
		}
		return err
	}

	for range s.maxRetries {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return Settings{}, err
	}
	return Settings{}, ErrConcurrentUpdate
}

func decode(raw []byte) (Settings, error) {
	var st Settings
	if err := json.Unmarshal(raw, &st); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return st, nil
}
