// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

// parlor-relay is the signaling relay that hosts and clients use to
// find each other. It brokers endpoint-name claims and SDP
// offer/answer exchange over WebSocket connections and holds no match
// state: everything it sees is names and SDP blobs, and everything it
// holds is released when the owning connection drops.
//
// Run one instance anywhere both sides can reach:
//
//	parlor-relay --listen :8484
//
// Players point at it with relay.url in their parlor.yaml.
package main
