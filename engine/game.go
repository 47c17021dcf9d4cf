// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"github.com/parlor-foundation/parlor/lib/codec"
	"github.com/parlor-foundation/parlor/wire"
)

// Game is the rule set plugged into a Master. State is opaque CBOR to
// everything else in the system; only these five methods interpret it.
//
// Implementations must be deterministic and must not retain references
// to the state bytes they are given or return; the master persists
// and re-reads state between calls.
type Game interface {
	// Name identifies the game in endpoint names and match records.
	// Must satisfy wire.ValidateGameName.
	Name() string

	// Setup returns the initial state for a match with numPlayers
	// seats.
	Setup(numPlayers int) (codec.RawMessage, error)

	// Apply validates and applies one move for the acting seat,
	// returning the next state. A move the rules refuse returns
	// ErrIllegalMove (wrapped is fine); any other error is an internal
	// failure.
	Apply(state codec.RawMessage, playerID wire.PlayerID, move wire.Move) (codec.RawMessage, error)

	// PlayerView returns the portion of state the given seat may see.
	// Games without hidden information return the state unchanged.
	PlayerView(state codec.RawMessage, playerID wire.PlayerID) (codec.RawMessage, error)

	// CurrentPlayer returns the seat whose turn it is. Only meaningful
	// while the match is live.
	CurrentPlayer(state codec.RawMessage) (wire.PlayerID, error)

	// Status reports whether the match has ended and, if so, the
	// human-readable outcome.
	Status(state codec.RawMessage) (Status, error)
}

// Status is a game's completion report.
type Status struct {
	Ended bool

	// Outcome is the human-readable result ("winner 0", "draw").
	// Empty while the match is live.
	Outcome string
}

// ErrIllegalMove marks a move the game's rules refuse: wrong cell,
// occupied square, malformed arguments. Game implementations wrap it
// so the master can classify the rejection without knowing the rules.
var ErrIllegalMove = &RejectError{Code: RejectInvalidMove, Detail: "illegal move"}
