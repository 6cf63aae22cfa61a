package verdictcache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type MemStore struct {
	data *expirable.LRU[string, string]
}

var _ Store = (*MemStore)(nil)

func NewMemStore(capacity int, ttl time.Duration) *MemStore {
	return &MemStore{
		data: expirable.NewLRU[string, string](capacity, nil, ttl),
	}
}

func (s *MemStore) Get(ctx context.Context, name, key string) (string, bool, error) {
	v, ok := s.data.Get(name + "/" + key)
	return v, ok, nil
}

func (s *MemStore) Set(ctx context.Context, name, key, val string) error {
	s.data.Add(name+"/"+key, val)
	return nil
}
