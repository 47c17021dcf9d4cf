// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

// Package credential issues and verifies per-seat match tokens.
//
// Tokens are derived, not stored: a BLAKE3 keyed hash over the match
// ID and player ID under a per-host secret, with a fixed domain
// separation key so the same secret can never be coaxed into signing
// anything but seat tokens. Verification re-derives and compares in
// constant time, so the host keeps no token table and re-hosting a
// persisted match leaves every previously issued invite valid, as
// long as the host keeps its secret.
//
// The authoritative engine consults an [Issuer] on every mutating
// action. The routing layer never sees tokens at all.
package credential
