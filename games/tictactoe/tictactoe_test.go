// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package tictactoe

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/parlor-foundation/parlor/engine"
	"github.com/parlor-foundation/parlor/lib/codec"
	"github.com/parlor-foundation/parlor/wire"
)

func newGame(t *testing.T) *Game {
	t.Helper()
	game, err := New(DefaultRules())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return game
}

// play applies a sequence of cell claims, alternating seats starting
// at "0", and returns the final state.
func play(t *testing.T, game *Game, cells ...int) codec.RawMessage {
	t.Helper()
	state, err := game.Setup(2)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	for i, cell := range cells {
		seat := wire.PlayerID(strconv.Itoa(i % 2))
		move, err := PlaceMove(cell, "")
		if err != nil {
			t.Fatalf("PlaceMove(%d): %v", cell, err)
		}
		state, err = game.Apply(state, seat, move)
		if err != nil {
			t.Fatalf("Apply cell %d by seat %s: %v", cell, seat, err)
		}
	}
	return state
}

func TestSetupBoard(t *testing.T) {
	game := newGame(t)
	state, err := game.Setup(2)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	var board State
	if err := codec.Unmarshal(state, &board); err != nil {
		t.Fatalf("decoding state: %v", err)
	}
	if board.Size != 3 || len(board.Cells) != 9 {
		t.Errorf("board = size %d, %d cells; want 3, 9", board.Size, len(board.Cells))
	}
	for i, cell := range board.Cells {
		if cell != emptyCell {
			t.Errorf("cell %d = %d, want empty", i, cell)
		}
	}

	current, err := game.CurrentPlayer(state)
	if err != nil {
		t.Fatalf("CurrentPlayer: %v", err)
	}
	if current != "0" {
		t.Errorf("first player = %s, want 0", current)
	}

	if _, err := game.Setup(3); err == nil {
		t.Error("Setup(3) under 2-player rules = nil, want error")
	}
}

func TestTurnAlternates(t *testing.T) {
	game := newGame(t)
	state := play(t, game, 4)

	current, err := game.CurrentPlayer(state)
	if err != nil {
		t.Fatalf("CurrentPlayer: %v", err)
	}
	if current != "1" {
		t.Errorf("player after one move = %s, want 1", current)
	}
}

func TestIllegalMoves(t *testing.T) {
	game := newGame(t)
	state := play(t, game, 4)

	tests := []struct {
		name string
		move func() (wire.Move, error)
	}{
		{"occupied cell", func() (wire.Move, error) { return PlaceMove(4, "") }},
		{"cell out of range", func() (wire.Move, error) { return PlaceMove(9, "") }},
		{"negative cell", func() (wire.Move, error) { return PlaceMove(-1, "") }},
		{"unknown move name", func() (wire.Move, error) { return wire.Move{Name: "swap"}, nil }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			move, err := test.move()
			if err != nil {
				t.Fatalf("building move: %v", err)
			}
			_, err = game.Apply(state, "1", move)
			if !engine.IsReject(err, engine.RejectInvalidMove) {
				t.Errorf("Apply = %v, want invalid-move rejection", err)
			}
		})
	}

	move, err := PlaceMove(0, "")
	if err != nil {
		t.Fatalf("PlaceMove: %v", err)
	}
	if _, err := game.Apply(state, "9", move); !engine.IsReject(err, engine.RejectInvalidMove) {
		t.Errorf("Apply by non-seat = %v, want invalid-move rejection", err)
	}
}

func TestWinDetection(t *testing.T) {
	tests := []struct {
		name    string
		cells   []int
		outcome string
	}{
		// Board indices:  0 1 2 / 3 4 5 / 6 7 8
		{"top row", []int{0, 3, 1, 4, 2}, "winner 0"},
		{"left column", []int{1, 0, 4, 3, 8, 6}, "winner 1"},
		{"main diagonal", []int{0, 1, 4, 2, 8}, "winner 0"},
		{"anti diagonal", []int{2, 1, 4, 3, 6}, "winner 0"},
		{"draw", []int{0, 1, 2, 4, 3, 5, 7, 6, 8}, "draw"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			game := newGame(t)
			state := play(t, game, test.cells...)

			status, err := game.Status(state)
			if err != nil {
				t.Fatalf("Status: %v", err)
			}
			if !status.Ended {
				t.Fatal("match not ended")
			}
			if status.Outcome != test.outcome {
				t.Errorf("outcome = %q, want %q", status.Outcome, test.outcome)
			}
		})
	}
}

func TestLiveMatchHasNoOutcome(t *testing.T) {
	game := newGame(t)
	state := play(t, game, 0, 4, 1)

	status, err := game.Status(state)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Ended || status.Outcome != "" {
		t.Errorf("live match status = %+v, want not ended", status)
	}
}

func TestPlayerViewIsIdentity(t *testing.T) {
	game := newGame(t)
	state := play(t, game, 4)

	view, err := game.PlayerView(state, "1")
	if err != nil {
		t.Fatalf("PlayerView: %v", err)
	}
	if string(view) != string(state) {
		t.Error("PlayerView altered a perfect-information state")
	}
}

func TestBiggerBoardWin(t *testing.T) {
	game, err := New(Rules{BoardSize: 5, WinLength: 4, NumPlayers: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Seat 0 builds row 0 (cells 0..3), seat 1 scatters on row 4.
	state := play(t, game, 0, 20, 1, 21, 2, 22, 3)

	status, err := game.Status(state)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Ended || status.Outcome != "winner 0" {
		t.Errorf("status = %+v, want winner 0", status)
	}
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.jsonc")
	content := `{
		// Four in a row on a 6x6 board.
		"board_size": 6,
		"win_length": 4, // trailing comma below is fine
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing rules: %v", err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if rules.BoardSize != 6 || rules.WinLength != 4 {
		t.Errorf("rules = %+v, want board 6, win 4", rules)
	}
	if rules.NumPlayers != 2 {
		t.Errorf("absent num_players = %d, want default 2", rules.NumPlayers)
	}
}

func TestLoadRulesRejectsUnplayable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.jsonc")
	if err := os.WriteFile(path, []byte(`{"board_size": 3, "win_length": 7}`), 0o644); err != nil {
		t.Fatalf("writing rules: %v", err)
	}

	_, err := LoadRules(path)
	if err == nil || !strings.Contains(err.Error(), "win_length") {
		t.Errorf("LoadRules = %v, want win_length validation error", err)
	}
}
