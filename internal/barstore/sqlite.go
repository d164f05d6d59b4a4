package barstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"TrendSentinel/internal/model"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists fetched series across restarts.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
	mu  sync.Mutex
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
// A zero ttl keeps entries until Prune is called with a cutoff.
func NewSQLiteStore(dbPath string, ttl time.Duration) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, ttl: ttl, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	zap.S().Infof("sqlite bar cache opened: %s", dbPath)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS price_cache (
			cache_key  TEXT PRIMARY KEY,
			provider   TEXT NOT NULL,
			ticker     TEXT NOT NULL,
			interval   TEXT NOT NULL,
			lookback   TEXT NOT NULL,
			fetched_at INTEGER NOT NULL,
			bar_count  INTEGER NOT NULL,
			series     TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_cache_fetched ON price_cache(fetched_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key Key) (*model.PriceSeries, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fetchedAt int64
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT fetched_at, series FROM price_cache WHERE cache_key = ?`, key.String(),
	).Scan(&fetchedAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query cache: %w", err)
	}
	if s.ttl > 0 && s.now().Sub(time.Unix(fetchedAt, 0)) > s.ttl {
		return nil, false, nil
	}

	var series model.PriceSeries
	if err := json.Unmarshal([]byte(payload), &series); err != nil {
		return nil, false, fmt.Errorf("decode cached series: %w", err)
	}
	return &series, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key Key, series *model.PriceSeries) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(series)
	if err != nil {
		return fmt.Errorf("encode series: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO price_cache
		(cache_key, provider, ticker, interval, lookback, fetched_at, bar_count, series)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT(cache_key) DO UPDATE SET
			fetched_at = excluded.fetched_at,
			bar_count  = excluded.bar_count,
			series     = excluded.series`,
		key.String(), key.Provider, key.Ticker, string(key.Interval), string(key.Lookback),
		s.now().Unix(), series.Len(), string(payload),
	)
	return err
}

// Prune deletes entries fetched before cutoff and returns how many were removed.
func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM price_cache WHERE fetched_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("prune cache: %w", err)
	}
	return res.RowsAffected()
}

// PruneExpired removes entries older than the store TTL.
func (s *SQLiteStore) PruneExpired(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	return s.Prune(ctx, s.now().Add(-s.ttl))
}

// DB exposes the handle for health probes.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

func (s *SQLiteStore) Close() error {
	zap.S().Info("closing sqlite bar cache")
	return s.db.Close()
}
