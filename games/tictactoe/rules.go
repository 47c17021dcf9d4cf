// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package tictactoe

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// Rules parameterizes the board. The zero value is invalid; start from
// DefaultRules or LoadRules.
type Rules struct {
	// BoardSize is the side length of the square board.
	BoardSize int `json:"board_size"`

	// WinLength is the run length (row, column, or diagonal) that
	// wins. At most BoardSize, or the game cannot be won.
	WinLength int `json:"win_length"`

	// NumPlayers is the number of seats. Classic play is 2; bigger
	// boards support up to MaxPlayers.
	NumPlayers int `json:"num_players"`
}

// MaxPlayers bounds the seat count. Four is the most the board
// rendering has distinct marks for.
const MaxPlayers = 4

// DefaultRules is the classic 3x3, 2-player game.
func DefaultRules() Rules {
	return Rules{BoardSize: 3, WinLength: 3, NumPlayers: 2}
}

// LoadRules reads a rules file. The format is JSONC (JSON with
// comments and trailing commas) so shipped rule files can document
// themselves:
//
//	{
//	  // Gomoku-ish: five in a row on a 9x9 board.
//	  "board_size": 9,
//	  "win_length": 5,
//	  "num_players": 2,
//	}
//
// Absent fields keep their defaults.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("tictactoe: reading rules: %w", err)
	}

	rules := DefaultRules()
	if err := json.Unmarshal(jsonc.ToJSON(data), &rules); err != nil {
		return Rules{}, fmt.Errorf("tictactoe: parsing rules %s: %w", path, err)
	}
	if err := rules.Validate(); err != nil {
		return Rules{}, fmt.Errorf("tictactoe: rules %s: %w", path, err)
	}
	return rules, nil
}

// Validate checks the rules for playability.
func (r Rules) Validate() error {
	if r.BoardSize < 3 || r.BoardSize > 19 {
		return fmt.Errorf("board_size %d outside 3..19", r.BoardSize)
	}
	if r.WinLength < 3 || r.WinLength > r.BoardSize {
		return fmt.Errorf("win_length %d outside 3..board_size (%d)", r.WinLength, r.BoardSize)
	}
	if r.NumPlayers < 2 || r.NumPlayers > MaxPlayers {
		return fmt.Errorf("num_players %d outside 2..%d", r.NumPlayers, MaxPlayers)
	}
	return nil
}
