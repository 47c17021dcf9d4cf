// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"time"

	"github.com/parlor-foundation/parlor/lib/codec"
	"github.com/parlor-foundation/parlor/wire"
)

// ErrNotFound is returned by Get for an unknown match ID. The engine
// treats it as "create on next sync", so implementations must return
// exactly this sentinel (wrapped is fine) rather than a bespoke error.
var ErrNotFound = errors.New("store: match not found")

// ErrExists is returned by Create when the match ID is already taken.
var ErrExists = errors.New("store: match already exists")

// Record is the persisted form of one match.
type Record struct {
	MatchID    wire.MatchID
	GameName   string
	NumPlayers int

	// Version counts applied updates. It starts at 0 on Setup and
	// increments by exactly 1 per applied move; the engine enforces
	// monotonicity, the store just persists it.
	Version uint64

	// State is the authoritative game state, CBOR-encoded by the game
	// implementation. Opaque to the store.
	State codec.RawMessage

	// Seats lists the player IDs that have completed at least one
	// sync, in first-sync order. Presence, not authorization: tokens
	// are derived, so a seat needs no stored binding to be verified.
	Seats []wire.PlayerID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy so callers can mutate records without
// aliasing the store's memory.
func (r *Record) Clone() *Record {
	clone := *r
	clone.State = append(codec.RawMessage(nil), r.State...)
	clone.Seats = append([]wire.PlayerID(nil), r.Seats...)
	return &clone
}

// HasSeat reports whether playerID already appears in Seats.
func (r *Record) HasSeat(playerID wire.PlayerID) bool {
	for _, seat := range r.Seats {
		if seat == playerID {
			return true
		}
	}
	return false
}

// MatchStore is the persistence contract the engine writes through.
// Implementations must be safe for concurrent use; the engine
// serializes per-match mutations itself but distinct matches may hit
// the store in parallel.
type MatchStore interface {
	// Create inserts a new record. Returns ErrExists if the match ID
	// is already present.
	Create(ctx context.Context, record *Record) error

	// Get returns the record for a match ID, or ErrNotFound. The
	// returned record is the caller's to mutate.
	Get(ctx context.Context, matchID wire.MatchID) (*Record, error)

	// Put overwrites the record for record.MatchID. Returns
	// ErrNotFound if the match was never created.
	Put(ctx context.Context, record *Record) error

	// Delete removes a match. Deleting an absent match is a no-op.
	Delete(ctx context.Context, matchID wire.MatchID) error
}
