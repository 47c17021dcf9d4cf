// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

// Package peer provides the role-agnostic transport each match
// participant instantiates. A Transport decides on every Connect
// whether it is the host (its player ID equals the host seat) or a
// client, and wires itself accordingly: the host opens a listening
// endpoint, runs the authoritative engine behind a router, and attaches
// its own player as a loopback registration; a client dials the host's
// deterministic endpoint name and exchanges frames.
//
// The application sees one surface either way: SendAction, SendChat,
// RequestSync going out, pushes and status changes coming back through
// callbacks. Actions sent while no emit path is live are dropped
// silently; the sync issued after every connect restores convergence.
package peer
