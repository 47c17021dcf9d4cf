// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time so connection timeouts are testable.
//
// The transport layer is full of waits with no natural upper bound: a
// client dialing a host that never answers, an ICE exchange that never
// completes, a relay socket that stops ponging. Every such wait goes
// through a [Clock] so production code uses [Real] and tests use [Fake]
// with explicit [FakeClock.Advance] calls, so a dial-timeout test runs in
// microseconds instead of thirty real seconds.
//
// Production functions that would call time.Now, time.After,
// time.AfterFunc, time.NewTicker, or time.Sleep accept a Clock (or sit
// on a struct holding one) instead of using the time package directly.
package clock
