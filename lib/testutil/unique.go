// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"sync/atomic"
)

var uniqueCounter atomic.Uint64

// UniqueID returns "prefix-N" with N monotonically increasing across
// the test binary. Use it instead of time.Now() when subtests sharing
// an endpoint registry or relay need match IDs and message bodies that
// cannot collide.
//
//	matchID := testutil.UniqueID("match")   // "match-1", "match-2", ...
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, uniqueCounter.Add(1))
}
