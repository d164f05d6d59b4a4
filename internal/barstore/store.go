// Package barstore caches raw provider bars so repeated scans stay within
// the data provider's rate limits. Only fetched price data is stored; analysis
// output is always recomputed.
package barstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"TrendSentinel/internal/model"
)

// Key identifies one cached provider response.
type Key struct {
	Provider string
	Ticker   string
	Interval model.Interval
	Lookback model.Lookback
}

func (k Key) String() string {
	return strings.Join([]string{k.Provider, k.Ticker, string(k.Interval), string(k.Lookback)}, "|")
}

// Store caches price series by key.
type Store interface {
	Get(ctx context.Context, key Key) (*model.PriceSeries, bool, error)
	Put(ctx context.Context, key Key, series *model.PriceSeries) error
	Close() error
}

// Options configures Open.
type Options struct {
	Backend    string        `yaml:"backend"` // none, memory or sqlite
	TTL        time.Duration `yaml:"ttl"`
	Size       int           `yaml:"size"`
	SQLitePath string        `yaml:"sqlite_path"`
}

// Open builds the store selected by opts.Backend.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case "", "none":
		return NewNoopStore(), nil
	case "memory":
		return NewMemoryStore(opts.Size, opts.TTL), nil
	case "sqlite":
		return NewSQLiteStore(opts.SQLitePath, opts.TTL)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}
