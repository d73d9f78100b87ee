package collector

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"BreakoutSentinel/internal/model"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// HighCache wraps a HighFetcher with a SQLite cache keyed by (symbol, month).
// A completed month's high never changes, so a hit skips the network.
type HighCache struct {
	next HighFetcher
	db   *sql.DB
	mu   sync.Mutex
	log  *zap.Logger
}

var _ HighFetcher = (*HighCache)(nil)

// NewHighCache opens (or creates) the cache database.
func NewHighCache(dbPath string, next HighFetcher, log *zap.Logger) (*HighCache, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS month_highs (
		symbol     TEXT NOT NULL,
		month      TEXT NOT NULL,
		high       TEXT NOT NULL,
		source     TEXT,
		fetched_at INTEGER NOT NULL,
		PRIMARY KEY (symbol, month)
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("high cache opened", zap.String("path", dbPath))
	return &HighCache{next: next, db: db, log: log}, nil
}

func (c *HighCache) Name() string { return "cache+" + c.next.Name() }

func (c *HighCache) FetchHigh(ctx context.Context, symbol model.Symbol, window model.PriceWindow) (decimal.Decimal, error) {
	if high, ok, err := c.lookup(ctx, symbol, window.Key()); err != nil {
		c.log.Warn("high cache lookup failed", zap.String("symbol", string(symbol)), zap.Error(err))
	} else if ok {
		return high, nil
	}

	high, err := c.next.FetchHigh(ctx, symbol, window)
	if err != nil {
		return decimal.Zero, err
	}
	if err := c.store(ctx, symbol, window.Key(), high); err != nil {
		c.log.Warn("high cache store failed", zap.String("symbol", string(symbol)), zap.Error(err))
	}
	return high, nil
}

func (c *HighCache) lookup(ctx context.Context, symbol model.Symbol, month string) (decimal.Decimal, bool, error) {
	var raw string
	err := c.db.QueryRowContext(ctx,
		`SELECT high FROM month_highs WHERE symbol = ? AND month = ?`, string(symbol), month,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	high, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("parse cached high %q: %w", raw, err)
	}
	return high, true, nil
}

func (c *HighCache) store(ctx context.Context, symbol model.Symbol, month string, high decimal.Decimal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO month_highs (symbol, month, high, source, fetched_at) VALUES (?,?,?,?,?)`,
		string(symbol), month, high.String(), c.next.Name(), time.Now().Unix(),
	)
	return err
}

// Prune removes cached months other than keep.
func (c *HighCache) Prune(ctx context.Context, keep string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, err := c.db.ExecContext(ctx, `DELETE FROM month_highs WHERE month <> ?`, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c *HighCache) Close() error {
	c.log.Info("closing high cache")
	return c.db.Close()
}
