package barstore

import (
	"context"

	"TrendSentinel/internal/model"
)

// NoopStore is used when caching is disabled; every lookup misses.
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (n *NoopStore) Get(_ context.Context, _ Key) (*model.PriceSeries, bool, error) {
	return nil, false, nil
}
func (n *NoopStore) Put(_ context.Context, _ Key, _ *model.PriceSeries) error { return nil }
func (n *NoopStore) Close() error                                             { return nil }
