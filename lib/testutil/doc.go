// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Parlor packages.
//
// [RequireReceive], [RequireSend], and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with time.After fallback) so
// tests asserting on transport callbacks and engine pushes never hang a
// suite on a lost message. These helpers are the only place tests use
// real wall-clock timeouts; production waits go through lib/clock.
//
// [UniqueID] generates monotonically increasing identifiers so tests
// can mint match IDs and chat bodies that stay distinguishable when a
// relay or endpoint registry is shared across subtests.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no Parlor-internal dependencies.
package testutil
