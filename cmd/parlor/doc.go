// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

// parlor is the terminal client for playing Parlor matches. The host
// creates a match and hands out seat tokens; everyone else joins with
// theirs:
//
//	parlor host --players 2
//	parlor join --match <id> --seat 1 --token <token>
//
// Both subcommands open the same TUI: a tic-tac-toe board, a presence
// header, and a chat pane. With relay.url configured in parlor.yaml
// the match runs over WebRTC through the signaling relay; without it
// the endpoint is in-process only, which is just enough to inspect the
// UI.
//
// Logs go to log.file (default ~/.cache/parlor/parlor.log) so the
// alternate screen stays clean.
package main
