// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

// Package signal exchanges WebRTC session descriptions between a match
// host and its clients.
//
// The model is vanilla ICE with named rendezvous: a host claims the
// match's deterministic endpoint name and polls it for offers; a
// client publishes a complete SDP offer at that name and polls its
// offer ID for the answer. One offer, one answer, no trickle.
//
// [Memory] brokers in-process and backs the tests. For real matches,
// [RelayServer] is a small WebSocket service holding the same broker
// state, and [RelayClient] is the [Signaler] that speaks to it. The
// relay never sees game traffic, only names, SDP blobs, and the
// client metadata carried in offers.
package signal
