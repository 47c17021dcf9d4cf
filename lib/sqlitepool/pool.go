// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// defaultPoolSize suits a match database: SQLite serializes writes
// regardless of pool size, so one writer plus one concurrent snapshot
// reader is all a host ever uses.
const defaultPoolSize = 2

// Config describes a match database.
type Config struct {
	// Path is the database file, created on first open. The parent
	// directory must exist. ":memory:" requires PoolSize 1, since each
	// in-memory connection is a separate database.
	Path string

	// Schema is SQL applied to every connection after the standard
	// pragmas, before the connection serves its first statement. Must
	// be idempotent (CREATE TABLE IF NOT EXISTS and friends) because
	// it runs once per connection, not once per database.
	Schema string

	// PoolSize is the number of connections. Defaults to 2.
	PoolSize int

	// Logger receives open and close events. Nil discards them.
	Logger *slog.Logger
}

// Pool is a fixed-size set of SQLite connections sharing one match
// database, each prepared with the standard pragmas and the schema.
//
// Pool is safe for concurrent use. Individual connections are not;
// each goroutine must Take its own connection and Put it back when done.
type Pool struct {
	inner  *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// Open creates the pool. Connections are dialed lazily on first Take,
// which is also when a bad Schema first surfaces. The caller owns the
// pool and must Close it.
func Open(cfg Config) (*Pool, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlitepool: Path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}

	inner, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize: poolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			return prepare(conn, cfg.Schema)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: opening %s: %w", cfg.Path, err)
	}

	logger.Info("match database opened", "path", cfg.Path, "pool_size", poolSize)
	return &Pool{inner: inner, logger: logger, path: cfg.Path}, nil
}

// Take borrows a connection, blocking until one is free or ctx is
// cancelled. Pair every Take with a Put:
//
//	conn, err := pool.Take(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pool.Put(conn)
func (p *Pool) Take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := p.inner.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: take: %w", err)
	}
	return conn, nil
}

// Put returns a borrowed connection. Nil is a no-op.
func (p *Pool) Put(conn *sqlite.Conn) {
	p.inner.Put(conn)
}

// Close closes every connection, blocking until borrowed ones come
// back. Take errors afterwards.
func (p *Pool) Close() error {
	if err := p.inner.Close(); err != nil {
		return fmt.Errorf("sqlitepool: closing %s: %w", p.path, err)
	}
	p.logger.Info("match database closed", "path", p.path)
	return nil
}

// prepare runs once per connection before its first use.
func prepare(conn *sqlite.Conn, schema string) error {
	// WAL so snapshot reads never block the move-path writer;
	// synchronous=NORMAL trades power-failure durability for not
	// fsyncing every move; busy_timeout rides out writer contention.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlitepool: %s: %w", pragma, err)
		}
	}

	if schema != "" {
		if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
			return fmt.Errorf("sqlitepool: applying schema: %w", err)
		}
	}
	return nil
}
