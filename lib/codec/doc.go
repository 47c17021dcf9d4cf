// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Parlor's standard CBOR encoding.
//
// Every byte that crosses a peer connection (actions, pushes, match
// snapshots) and every persisted game state goes through this package.
// Encoding is CBOR Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer forms, no indefinite-length items. The
// same logical value always produces identical bytes, so a snapshot can
// be compared or hashed without canonicalizing first.
//
// Decoding accepts standard CBOR and silently ignores unknown struct
// fields, so a newer host can push state to an older client without
// breaking it.
package codec
