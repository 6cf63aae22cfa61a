package verdictcache

import (
	"context"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	data *cache.Cache
	ttl  time.Duration
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, err
	}
	data := cache.New(&cache.Options{
		Redis:      rdb,
		LocalCache: cache.NewTinyLFU(10_000, ttl),
	})
	return &RedisStore{data: data, ttl: ttl}, nil
}

func redisKey(name, key string) string {
	return "verdict/" + name + "/" + key
}

func (s *RedisStore) Get(ctx context.Context, name, key string) (string, bool, error) {
	var val string
	err := s.data.Get(ctx, redisKey(name, key), &val)
	if err == cache.ErrCacheMiss {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, name, key, val string) error {
	return s.data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisKey(name, key),
		Value: val,
		TTL:   s.ttl,
	})
}
