// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

// Package tictactoe implements m,n,k-style tic-tac-toe as an
// [engine.Game]: a square board, players alternating marks, first run
// of WinLength in a row wins. The classic 3x3 game is the default
// rule set; larger boards and longer runs load from a JSONC rules
// file.
//
// The game has no hidden information, so PlayerView returns the state
// unchanged for every seat.
package tictactoe
