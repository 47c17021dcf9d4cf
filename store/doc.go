// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

// Package store persists authoritative match state for hosts.
//
// A [Record] is everything the engine needs to resume a match: the
// CBOR game state, its version, the claimed seats, and timestamps.
// [MatchStore] is the engine-facing contract; [Memory] backs casual
// hosting where a match lives and dies with the process, and [SQLite]
// (on lib/sqlitepool) lets a host stop and later re-host the same
// match with state intact.
//
// The store is deliberately dumb: it never inspects game state, never
// bumps versions, and never touches the clock. The engine owns all of
// that; the store just round-trips records keyed by match ID.
package store
