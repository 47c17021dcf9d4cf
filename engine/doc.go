// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine holds the authoritative side of a match.
//
// [Engine] is the contract the host router drives: one entry point per
// action kind plus connection-change notifications. [Master] is the
// production implementation. It owns nothing in memory except
// connection tracking: match state lives in a [store.MatchStore], so
// a host can crash and re-host without losing a match.
//
// The master never talks to a network. Results leave through the
// [Callbacks] push functions the router supplies at construction:
// Send(playerID, payload) for targeted pushes, SendAll(payload) for
// broadcasts. The router owns delivery and its failure semantics; the
// master owns truth.
//
// Game rules plug in behind [Game]. State is opaque CBOR to the
// master; only Setup, Apply, PlayerView, CurrentPlayer, and Ended
// interpret it. PlayerView runs on every outgoing state so a game
// with hidden information (hands, fog of war) never leaks the full
// state to a client.
//
// Rejections (bad token, stale version, out-of-turn move) are
// normal traffic, not failures. They surface as [*RejectError] with a
// [RejectCode] so the router can log them at debug level and tests
// can branch on the cause. An action is either applied and pushed, or
// rejected and silently dropped from the client's point of view;
// clients recover through their next sync.
package engine
