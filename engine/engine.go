// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"

	"github.com/parlor-foundation/parlor/wire"
)

// Engine is the authoritative side of a match as the host router sees
// it: one entry point per action kind, plus connection-change
// notifications. Implementations serialize their own mutations; the
// router calls these from connection-event goroutines without locking.
type Engine interface {
	// OnUpdate applies one move. The update's StateVersion must match
	// the authoritative version or the update is rejected.
	OnUpdate(ctx context.Context, update wire.Update) error

	// OnChatMessage broadcasts one chat message to every client.
	OnChatMessage(ctx context.Context, chat wire.Chat) error

	// OnSync answers with a full snapshot for the requesting player,
	// creating the match on first sync of a fresh match ID.
	OnSync(ctx context.Context, sync wire.Sync) error

	// OnConnectionChange records that one connection for a seat opened
	// (connected=true) or closed. connID distinguishes multiple
	// connections carrying the same seat.
	OnConnectionChange(ctx context.Context, matchID wire.MatchID, playerID wire.PlayerID, connID string, connected bool) error
}

// Callbacks are the push functions the router hands the engine at
// construction. The engine never touches a connection; everything it
// says leaves through these.
type Callbacks struct {
	// Send delivers a push to every live registration whose seat
	// matches playerID. Zero matching registrations is not an error.
	Send func(playerID wire.PlayerID, push wire.Push)

	// SendAll delivers a push to every live registration.
	SendAll func(push wire.Push)
}

// CredentialVerifier checks that a token authorizes a seat. Satisfied
// by *credential.Issuer; tests substitute stubs.
type CredentialVerifier interface {
	Verify(matchID wire.MatchID, playerID wire.PlayerID, token wire.Credentials) bool
}
