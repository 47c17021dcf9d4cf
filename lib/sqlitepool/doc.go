// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the connection pool behind Parlor's
// durable match store.
//
// The store keeps authoritative game state in SQLite so a host can
// stop and later re-host the same match. This package wraps
// zombiezen.com/go/sqlite's sqlitex.Pool with the pragmas that suit
// that workload and applies the caller's schema to every connection:
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   "/var/lib/parlor/matches.db",
//	    Schema: matchSchema,
//	    Logger: logger,
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
// Every connection is prepared with journal_mode=WAL (snapshot reads
// never block the single writer), synchronous=NORMAL (moves survive a
// process crash; an OS crash may lose the last few, which a re-synced
// client replays), and busy_timeout=5000.
//
// Callers [Pool.Take] a connection, work, and [Pool.Put] it back.
// Connections are not safe for concurrent use: each goroutine holds
// its own for the duration of its work. The zombiezen types are
// exposed directly; the store writes plain SQL against them rather
// than going through a query layer.
package sqlitepool
