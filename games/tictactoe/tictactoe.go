// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package tictactoe

import (
	"fmt"
	"strconv"

	"github.com/parlor-foundation/parlor/engine"
	"github.com/parlor-foundation/parlor/lib/codec"
	"github.com/parlor-foundation/parlor/wire"
)

// Compile-time interface check.
var _ engine.Game = (*Game)(nil)

// GameName is the identifier used in endpoint names and match records.
const GameName = "tictactoe"

// MovePlace is the only move: claim one empty cell.
const MovePlace = "place"

// emptyCell marks an unclaimed cell in State.Cells.
const emptyCell = int8(-1)

// Game is the tic-tac-toe rule set. Stateless; the board travels
// through the engine as opaque CBOR.
type Game struct {
	rules Rules
}

// New creates a game with the given rules.
func New(rules Rules) (*Game, error) {
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("tictactoe: %w", err)
	}
	return &Game{rules: rules}, nil
}

// State is the board as persisted between moves. The rules are
// embedded so a re-hosted match replays under the rules it started
// with, not whatever the new process was configured with.
type State struct {
	Size      int    `cbor:"1,keyasint"`
	WinLength int    `cbor:"2,keyasint"`
	Players   int    `cbor:"3,keyasint"`
	Turn      int    `cbor:"4,keyasint"`
	Cells     []int8 `cbor:"5,keyasint"`
}

// PlaceArgs are the arguments of a "place" move.
type PlaceArgs struct {
	Cell int `cbor:"1,keyasint"`
}

// Name implements engine.Game.
func (g *Game) Name() string { return GameName }

// Setup implements engine.Game. numPlayers zero means "use the rules
// file"; any other value must match the rules.
func (g *Game) Setup(numPlayers int) (codec.RawMessage, error) {
	if numPlayers == 0 {
		numPlayers = g.rules.NumPlayers
	}
	if numPlayers != g.rules.NumPlayers {
		return nil, fmt.Errorf("tictactoe: %d players requested, rules say %d", numPlayers, g.rules.NumPlayers)
	}

	cells := make([]int8, g.rules.BoardSize*g.rules.BoardSize)
	for i := range cells {
		cells[i] = emptyCell
	}
	return codec.Marshal(State{
		Size:      g.rules.BoardSize,
		WinLength: g.rules.WinLength,
		Players:   numPlayers,
		Turn:      0,
		Cells:     cells,
	})
}

// Apply implements engine.Game. The engine has already checked turn
// order; Apply only enforces board rules.
func (g *Game) Apply(state codec.RawMessage, playerID wire.PlayerID, move wire.Move) (codec.RawMessage, error) {
	if move.Name != MovePlace {
		return nil, fmt.Errorf("%w: no move named %q", engine.ErrIllegalMove, move.Name)
	}

	board, err := decodeState(state)
	if err != nil {
		return nil, err
	}
	seat, err := seatIndex(playerID, board.Players)
	if err != nil {
		return nil, err
	}

	var args PlaceArgs
	if err := codec.Unmarshal(move.Args, &args); err != nil {
		return nil, fmt.Errorf("%w: bad place arguments: %v", engine.ErrIllegalMove, err)
	}
	if args.Cell < 0 || args.Cell >= len(board.Cells) {
		return nil, fmt.Errorf("%w: cell %d outside the board", engine.ErrIllegalMove, args.Cell)
	}
	if board.Cells[args.Cell] != emptyCell {
		return nil, fmt.Errorf("%w: cell %d is taken", engine.ErrIllegalMove, args.Cell)
	}

	board.Cells[args.Cell] = int8(seat)
	board.Turn = (board.Turn + 1) % board.Players
	return codec.Marshal(board)
}

// PlayerView implements engine.Game. Perfect information: every seat
// sees the whole board.
func (g *Game) PlayerView(state codec.RawMessage, _ wire.PlayerID) (codec.RawMessage, error) {
	return state, nil
}

// CurrentPlayer implements engine.Game.
func (g *Game) CurrentPlayer(state codec.RawMessage) (wire.PlayerID, error) {
	board, err := decodeState(state)
	if err != nil {
		return "", err
	}
	return wire.PlayerID(strconv.Itoa(board.Turn)), nil
}

// Status implements engine.Game.
func (g *Game) Status(state codec.RawMessage) (engine.Status, error) {
	board, err := decodeState(state)
	if err != nil {
		return engine.Status{}, err
	}

	if winner, ok := board.Winner(); ok {
		return engine.Status{Ended: true, Outcome: "winner " + strconv.Itoa(winner)}, nil
	}
	if board.Full() {
		return engine.Status{Ended: true, Outcome: "draw"}, nil
	}
	return engine.Status{}, nil
}

// Winner scans the board for a run of WinLength equal marks and
// returns the owning seat index.
func (s *State) Winner() (int, bool) {
	// Right, down, down-right, down-left. Scanning only forward
	// directions from each cell visits every run exactly once.
	directions := [4][2]int{{1, 0}, {0, 1}, {1, 1}, {-1, 1}}

	for y := 0; y < s.Size; y++ {
		for x := 0; x < s.Size; x++ {
			mark := s.at(x, y)
			if mark == emptyCell {
				continue
			}
			for _, dir := range directions {
				run := 1
				for step := 1; step < s.WinLength; step++ {
					nx, ny := x+dir[0]*step, y+dir[1]*step
					if nx < 0 || nx >= s.Size || ny >= s.Size || s.at(nx, ny) != mark {
						break
					}
					run++
				}
				if run >= s.WinLength {
					return int(mark), true
				}
			}
		}
	}
	return 0, false
}

// Full reports whether every cell is claimed.
func (s *State) Full() bool {
	for _, cell := range s.Cells {
		if cell == emptyCell {
			return false
		}
	}
	return true
}

func (s *State) at(x, y int) int8 {
	return s.Cells[y*s.Size+x]
}

func decodeState(state codec.RawMessage) (*State, error) {
	var board State
	if err := codec.Unmarshal(state, &board); err != nil {
		return nil, fmt.Errorf("tictactoe: decoding state: %w", err)
	}
	if board.Size < 1 || len(board.Cells) != board.Size*board.Size {
		return nil, fmt.Errorf("tictactoe: state has %d cells for size %d", len(board.Cells), board.Size)
	}
	return &board, nil
}

// seatIndex parses a seat's decimal index and bounds-checks it.
func seatIndex(playerID wire.PlayerID, players int) (int, error) {
	seat, err := strconv.Atoi(string(playerID))
	if err != nil || seat < 0 || seat >= players {
		return 0, fmt.Errorf("%w: seat %q is not a player of this match", engine.ErrIllegalMove, playerID)
	}
	return seat, nil
}

// PlaceMove builds the wire.Move for claiming a cell. Credentials are
// attached by the caller.
func PlaceMove(cell int, credentials wire.Credentials) (wire.Move, error) {
	args, err := codec.Marshal(PlaceArgs{Cell: cell})
	if err != nil {
		return wire.Move{}, fmt.Errorf("tictactoe: encoding place args: %w", err)
	}
	return wire.Move{Name: MovePlace, Args: args, Credentials: credentials}, nil
}
