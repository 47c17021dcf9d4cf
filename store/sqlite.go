// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/parlor-foundation/parlor/lib/codec"
	"github.com/parlor-foundation/parlor/lib/sqlitepool"
	"github.com/parlor-foundation/parlor/wire"
)

// Compile-time interface check.
var _ MatchStore = (*SQLite)(nil)

// matchSchema creates the matches table. Seats are a CBOR-encoded
// list rather than a join table: the engine always reads and writes
// a record whole, so normalizing seats would only add queries.
const matchSchema = `
CREATE TABLE IF NOT EXISTS matches (
	match_id    TEXT PRIMARY KEY,
	game_name   TEXT NOT NULL,
	num_players INTEGER NOT NULL,
	version     INTEGER NOT NULL,
	state       BLOB NOT NULL,
	seats       BLOB NOT NULL,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
`

// SQLite is the durable MatchStore. One row per match; the game state
// and seat list are CBOR blobs, timestamps are Unix milliseconds.
type SQLite struct {
	pool *sqlitepool.Pool
}

// OpenSQLite opens (creating if needed) a match database at path.
// The returned store owns the pool; call Close when done.
func OpenSQLite(path string, logger *slog.Logger) (*SQLite, error) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   path,
		Schema: matchSchema,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening match store: %w", err)
	}
	return &SQLite{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *SQLite) Close() error {
	return s.pool.Close()
}

func (s *SQLite) Create(ctx context.Context, record *Record) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	seats, err := codec.Marshal(record.Seats)
	if err != nil {
		return fmt.Errorf("encoding seats for %s: %w", record.MatchID, err)
	}

	err = sqlitex.Execute(conn, `
		INSERT INTO matches (match_id, game_name, num_players, version, state, seats, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				string(record.MatchID),
				record.GameName,
				record.NumPlayers,
				int64(record.Version),
				[]byte(record.State),
				seats,
				record.CreatedAt.UnixMilli(),
				record.UpdatedAt.UnixMilli(),
			},
		})
	if err != nil {
		if sqlite.ErrCode(err) == sqlite.ResultConstraintPrimaryKey {
			return ErrExists
		}
		return fmt.Errorf("inserting match %s: %w", record.MatchID, err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, matchID wire.MatchID) (*Record, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var record *Record
	err = sqlitex.Execute(conn, `
		SELECT game_name, num_players, version, state, seats, created_at, updated_at
		FROM matches WHERE match_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{string(matchID)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				state := make([]byte, stmt.ColumnLen(3))
				stmt.ColumnBytes(3, state)
				seatsRaw := make([]byte, stmt.ColumnLen(4))
				stmt.ColumnBytes(4, seatsRaw)

				var seats []wire.PlayerID
				if err := codec.Unmarshal(seatsRaw, &seats); err != nil {
					return fmt.Errorf("decoding seats for %s: %w", matchID, err)
				}

				record = &Record{
					MatchID:    matchID,
					GameName:   stmt.ColumnText(0),
					NumPlayers: stmt.ColumnInt(1),
					Version:    uint64(stmt.ColumnInt64(2)),
					State:      state,
					Seats:      seats,
					CreatedAt:  time.UnixMilli(stmt.ColumnInt64(5)).UTC(),
					UpdatedAt:  time.UnixMilli(stmt.ColumnInt64(6)).UTC(),
				}
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("reading match %s: %w", matchID, err)
	}
	if record == nil {
		return nil, ErrNotFound
	}
	return record, nil
}

func (s *SQLite) Put(ctx context.Context, record *Record) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	seats, err := codec.Marshal(record.Seats)
	if err != nil {
		return fmt.Errorf("encoding seats for %s: %w", record.MatchID, err)
	}

	err = sqlitex.Execute(conn, `
		UPDATE matches
		SET game_name = ?, num_players = ?, version = ?, state = ?, seats = ?, updated_at = ?
		WHERE match_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{
				record.GameName,
				record.NumPlayers,
				int64(record.Version),
				[]byte(record.State),
				seats,
				record.UpdatedAt.UnixMilli(),
				string(record.MatchID),
			},
		})
	if err != nil {
		return fmt.Errorf("updating match %s: %w", record.MatchID, err)
	}
	if conn.Changes() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, matchID wire.MatchID) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `DELETE FROM matches WHERE match_id = ?`,
		&sqlitex.ExecOptions{Args: []any{string(matchID)}})
	if err != nil {
		return fmt.Errorf("deleting match %s: %w", matchID, err)
	}
	return nil
}
