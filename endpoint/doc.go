// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

// Package endpoint provides named, addressable peer connections: a
// host listens on a name, clients connect to it, and each connection
// is a reliable, ordered message channel.
//
// [Memory] wires connections through in-process channels so the full
// host/client flow runs in one test binary. [WebRTC] carries the same
// contract over pion data channels, with session descriptions
// exchanged through a [signal.Signaler].
//
// Delivery is per-connection FIFO on every implementation; that is
// the ordering guarantee the rest of the system is built on.
package endpoint
