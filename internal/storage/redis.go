package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisStore keeps every asset as one field of a single Redis hash.
type RedisStore struct {
	rdb *goredis.Client
	key string
}

func NewRedisStore(ctx context.Context, addr, key string) (*RedisStore, error) {
	if addr == "" {
		return nil, wrap("redis", "open", fmt.Errorf("missing address"))
	}
	if key == "" {
		key = "troy-sandbox:images"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, wrap("redis", "open", err)
	}
	return &RedisStore{rdb: rdb, key: key}, nil
}

func (s *RedisStore) Put(ctx context.Context, id, payload string) (string, error) {
	raw, err := json.Marshal(newAsset(id, payload))
	if err != nil {
		return "", wrap("redis", "put", err)
	}
	if err := s.rdb.HSet(ctx, s.key, id, raw).Err(); err != nil {
		return "", wrap("redis", "put", err)
	}
	return id, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (string, bool, error) {
	raw, err := s.rdb.HGet(ctx, s.key, id).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrap("redis", "get", err)
	}
	var a Asset
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return "", false, wrap("redis", "get", err)
	}
	return a.Data, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return wrap("redis", "delete", s.rdb.HDel(ctx, s.key, id).Err())
}

func (s *RedisStore) GetAll(ctx context.Context) (map[string]string, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, wrap("redis", "getAll", err)
	}
	out := make(map[string]string, len(fields))
	for id, raw := range fields {
		var a Asset
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, wrap("redis", "getAll", fmt.Errorf("decode %s: %w", id, err))
		}
		out[id] = a.Data
	}
	return out, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return wrap("redis", "clear", s.rdb.Del(ctx, s.key).Err())
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
