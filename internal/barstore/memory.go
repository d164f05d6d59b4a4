package barstore

import (
	"context"
	"time"

	"TrendSentinel/internal/model"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore is an in-process LRU with per-entry expiry.
// Cached series are shared between callers and must be treated as read-only.
type MemoryStore struct {
	lru *expirable.LRU[string, *model.PriceSeries]
}

// NewMemoryStore creates a store holding at most size entries for ttl each.
func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	if size <= 0 {
		size = 256
	}
	return &MemoryStore{lru: expirable.NewLRU[string, *model.PriceSeries](size, nil, ttl)}
}

func (m *MemoryStore) Get(_ context.Context, key Key) (*model.PriceSeries, bool, error) {
	s, ok := m.lru.Get(key.String())
	return s, ok, nil
}

func (m *MemoryStore) Put(_ context.Context, key Key, series *model.PriceSeries) error {
	m.lru.Add(key.String(), series)
	return nil
}

// Len returns the number of live entries.
func (m *MemoryStore) Len() int { return m.lru.Len() }

func (m *MemoryStore) Close() error {
	m.lru.Purge()
	return nil
}
