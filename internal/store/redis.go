package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/accessally/accessally/internal/identity"
)

const redisKeyPrefix = "accessally:"

// RedisStore keeps each record under accessally:<namespace>:<token>.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, errors.New("redis store: REDIS_ADDR is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := pingWithBackoff(ctx, func() error { return rdb.Ping(ctx).Err() }); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("could not connect to redis at %s: %w", addr, err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func redisKey(ns Namespace, key identity.Token) string {
	return redisKeyPrefix + string(ns) + ":" + string(key)
}

func (s *RedisStore) Get(ctx context.Context, ns Namespace, key identity.Token) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	data, err := s.rdb.Get(ctx, redisKey(ns, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	return data, nil
}

func (s *RedisStore) Put(ctx context.Context, ns Namespace, key identity.Token, data []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, redisKey(ns, key), data, 0).Err(); err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, ns Namespace, key identity.Token) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	n, err := s.rdb.Del(ctx, redisKey(ns, key)).Result()
	if err != nil {
		return false, fmt.Errorf("delete record: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Close() error { return s.rdb.Close() }
