// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/parlor-foundation/parlor/lib/clock"
	"github.com/parlor-foundation/parlor/lib/codec"
	"github.com/parlor-foundation/parlor/store"
	"github.com/parlor-foundation/parlor/wire"
)

// countGame is a minimal Game for master tests: players take turns
// playing "step"; the match ends after three steps. PlayerView stamps
// the viewer's seat into the state so tests can verify redaction ran.
type countGame struct{}

type countState struct {
	Moves      int           `cbor:"1,keyasint"`
	NumPlayers int           `cbor:"2,keyasint"`
	Viewer     wire.PlayerID `cbor:"3,keyasint,omitempty"`
}

func (countGame) Name() string { return "count" }

func (countGame) Setup(numPlayers int) (codec.RawMessage, error) {
	return codec.Marshal(countState{NumPlayers: numPlayers})
}

func (countGame) Apply(state codec.RawMessage, playerID wire.PlayerID, move wire.Move) (codec.RawMessage, error) {
	if move.Name != "step" {
		return nil, fmt.Errorf("%w: no move named %q", ErrIllegalMove, move.Name)
	}
	var s countState
	if err := codec.Unmarshal(state, &s); err != nil {
		return nil, err
	}
	s.Moves++
	return codec.Marshal(s)
}

func (countGame) PlayerView(state codec.RawMessage, playerID wire.PlayerID) (codec.RawMessage, error) {
	var s countState
	if err := codec.Unmarshal(state, &s); err != nil {
		return nil, err
	}
	s.Viewer = playerID
	return codec.Marshal(s)
}

func (countGame) CurrentPlayer(state codec.RawMessage) (wire.PlayerID, error) {
	var s countState
	if err := codec.Unmarshal(state, &s); err != nil {
		return "", err
	}
	return wire.PlayerID(fmt.Sprintf("%d", s.Moves%s.NumPlayers)), nil
}

func (countGame) Status(state codec.RawMessage) (Status, error) {
	var s countState
	if err := codec.Unmarshal(state, &s); err != nil {
		return Status{}, err
	}
	if s.Moves >= 3 {
		return Status{Ended: true, Outcome: "done"}, nil
	}
	return Status{}, nil
}

// tokenVerifier accepts exactly "tok-<seat>" for every match.
type tokenVerifier struct{}

func (tokenVerifier) Verify(_ wire.MatchID, playerID wire.PlayerID, token wire.Credentials) bool {
	return token == wire.Credentials("tok-"+string(playerID))
}

// pushRecorder captures the pushes a master emits.
type pushRecorder struct {
	mu       sync.Mutex
	targeted []targetedPush
	allcast  []wire.Push
}

type targetedPush struct {
	seat wire.PlayerID
	push wire.Push
}

func (r *pushRecorder) callbacks() Callbacks {
	return Callbacks{
		Send: func(playerID wire.PlayerID, push wire.Push) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.targeted = append(r.targeted, targetedPush{seat: playerID, push: push})
		},
		SendAll: func(push wire.Push) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.allcast = append(r.allcast, push)
		},
	}
}

func (r *pushRecorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targeted = nil
	r.allcast = nil
}

func (r *pushRecorder) snapshot() ([]targetedPush, []wire.Push) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]targetedPush(nil), r.targeted...), append([]wire.Push(nil), r.allcast...)
}

func newTestMaster(t *testing.T) (*Master, *pushRecorder) {
	t.Helper()
	recorder := &pushRecorder{}
	master, err := NewMaster(MasterConfig{
		Game:      countGame{},
		Store:     store.NewMemory(),
		Verifier:  tokenVerifier{},
		Callbacks: recorder.callbacks(),
		Clock:     clock.Fake(time.Unix(1700000000, 0)),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewMaster: %v", err)
	}
	return master, recorder
}

// syncSeat issues a sync for one seat and clears the recorder, leaving
// the match created and the seat bound.
func syncSeat(t *testing.T, master *Master, recorder *pushRecorder, matchID wire.MatchID, seat wire.PlayerID) {
	t.Helper()
	err := master.OnSync(context.Background(), wire.Sync{
		MatchID:     matchID,
		PlayerID:    seat,
		Credentials: wire.Credentials("tok-" + string(seat)),
		NumPlayers:  2,
	})
	if err != nil {
		t.Fatalf("OnSync(%s): %v", seat, err)
	}
	recorder.reset()
}

func TestInitializeRejectsDuplicate(t *testing.T) {
	master, _ := newTestMaster(t)
	ctx := context.Background()

	record, err := master.Initialize(ctx, "m1", 2)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if record.Version != 0 {
		t.Errorf("initial version = %d, want 0", record.Version)
	}
	if record.GameName != "count" {
		t.Errorf("game name = %q, want %q", record.GameName, "count")
	}

	if _, err := master.Initialize(ctx, "m1", 2); !errors.Is(err, store.ErrExists) {
		t.Errorf("second Initialize = %v, want ErrExists", err)
	}
}

func TestSyncCreatesMatchAndSendsSnapshot(t *testing.T) {
	master, recorder := newTestMaster(t)

	err := master.OnSync(context.Background(), wire.Sync{
		MatchID:     "m1",
		PlayerID:    "0",
		Credentials: "tok-0",
		NumPlayers:  2,
	})
	if err != nil {
		t.Fatalf("OnSync: %v", err)
	}

	targeted, allcast := recorder.snapshot()
	if len(allcast) != 0 {
		t.Errorf("sync broadcast %d pushes, want 0", len(allcast))
	}
	if len(targeted) != 1 {
		t.Fatalf("sync sent %d targeted pushes, want 1", len(targeted))
	}
	if targeted[0].seat != "0" {
		t.Errorf("push targeted at seat %s, want 0", targeted[0].seat)
	}
	push := targeted[0].push
	if push.Kind != wire.PushSync {
		t.Fatalf("push kind = %s, want sync", push.Kind)
	}

	snapshot, err := wire.DecodeSnapshot(push.Sync.Snapshot, push.Sync.Compression)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	var view countState
	if err := codec.Unmarshal(snapshot, &view); err != nil {
		t.Fatalf("decoding view: %v", err)
	}
	if view.Viewer != "0" {
		t.Errorf("view redacted for seat %s, want 0", view.Viewer)
	}
	if view.NumPlayers != 2 {
		t.Errorf("view NumPlayers = %d, want 2", view.NumPlayers)
	}
}

func TestSyncRejectsBadCredentials(t *testing.T) {
	master, recorder := newTestMaster(t)

	err := master.OnSync(context.Background(), wire.Sync{
		MatchID:     "m1",
		PlayerID:    "0",
		Credentials: "tok-1",
		NumPlayers:  2,
	})
	if !IsReject(err, RejectBadCredentials) {
		t.Fatalf("OnSync with wrong token = %v, want bad-credentials rejection", err)
	}

	targeted, allcast := recorder.snapshot()
	if len(targeted)+len(allcast) != 0 {
		t.Errorf("rejected sync still pushed %d+%d messages", len(targeted), len(allcast))
	}
}

func TestUpdateFansOutPerSeatViews(t *testing.T) {
	master, recorder := newTestMaster(t)
	syncSeat(t, master, recorder, "m1", "0")
	syncSeat(t, master, recorder, "m1", "1")

	err := master.OnUpdate(context.Background(), wire.Update{
		Move:         wire.Move{Name: "step", Credentials: "tok-0"},
		StateVersion: 0,
		MatchID:      "m1",
		PlayerID:     "0",
	})
	if err != nil {
		t.Fatalf("OnUpdate: %v", err)
	}

	targeted, _ := recorder.snapshot()
	if len(targeted) != 2 {
		t.Fatalf("update fanned out %d pushes, want 2", len(targeted))
	}
	for _, delivery := range targeted {
		if delivery.push.Kind != wire.PushState {
			t.Fatalf("push kind = %s, want state", delivery.push.Kind)
		}
		if got := delivery.push.State.Version; got != 1 {
			t.Errorf("pushed version = %d, want 1", got)
		}
		var view countState
		if err := codec.Unmarshal(delivery.push.State.View, &view); err != nil {
			t.Fatalf("decoding view: %v", err)
		}
		if view.Viewer != delivery.seat {
			t.Errorf("seat %s received view redacted for %s", delivery.seat, view.Viewer)
		}
	}
}

func TestUpdateRejections(t *testing.T) {
	master, recorder := newTestMaster(t)
	syncSeat(t, master, recorder, "m1", "0")
	syncSeat(t, master, recorder, "m1", "1")
	ctx := context.Background()

	update := func(seat wire.PlayerID, move string, version uint64) error {
		return master.OnUpdate(ctx, wire.Update{
			Move:         wire.Move{Name: move, Credentials: wire.Credentials("tok-" + string(seat))},
			StateVersion: version,
			MatchID:      "m1",
			PlayerID:     seat,
		})
	}

	if err := update("0", "step", 5); !IsReject(err, RejectStaleVersion) {
		t.Errorf("stale version = %v, want stale-version rejection", err)
	}
	if err := update("1", "step", 0); !IsReject(err, RejectOutOfTurn) {
		t.Errorf("out of turn = %v, want out-of-turn rejection", err)
	}
	if err := update("0", "teleport", 0); !IsReject(err, RejectInvalidMove) {
		t.Errorf("illegal move = %v, want invalid-move rejection", err)
	}

	err := master.OnUpdate(ctx, wire.Update{
		Move:         wire.Move{Name: "step", Credentials: "wrong"},
		StateVersion: 0,
		MatchID:      "m1",
		PlayerID:     "0",
	})
	if !IsReject(err, RejectBadCredentials) {
		t.Errorf("bad token = %v, want bad-credentials rejection", err)
	}

	err = master.OnUpdate(ctx, wire.Update{
		Move:         wire.Move{Name: "step", Credentials: "tok-0"},
		StateVersion: 0,
		MatchID:      "missing",
		PlayerID:     "0",
	})
	if !IsReject(err, RejectUnknownMatch) {
		t.Errorf("unknown match = %v, want unknown-match rejection", err)
	}
}

func TestUpdateAfterMatchEnds(t *testing.T) {
	master, recorder := newTestMaster(t)
	syncSeat(t, master, recorder, "m1", "0")
	syncSeat(t, master, recorder, "m1", "1")
	ctx := context.Background()

	// The count game ends after three steps: seats 0, 1, 0.
	for i, seat := range []wire.PlayerID{"0", "1", "0"} {
		err := master.OnUpdate(ctx, wire.Update{
			Move:         wire.Move{Name: "step", Credentials: wire.Credentials("tok-" + string(seat))},
			StateVersion: uint64(i),
			MatchID:      "m1",
			PlayerID:     seat,
		})
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	targeted, _ := recorder.snapshot()
	final := targeted[len(targeted)-1].push
	if !final.State.Ended {
		t.Error("final push not marked ended")
	}
	if final.State.Outcome != "done" {
		t.Errorf("final outcome = %q, want %q", final.State.Outcome, "done")
	}

	err := master.OnUpdate(ctx, wire.Update{
		Move:         wire.Move{Name: "step", Credentials: "tok-1"},
		StateVersion: 3,
		MatchID:      "m1",
		PlayerID:     "1",
	})
	if !IsReject(err, RejectMatchEnded) {
		t.Errorf("move after end = %v, want match-ended rejection", err)
	}
}

func TestChatBroadcast(t *testing.T) {
	master, recorder := newTestMaster(t)
	syncSeat(t, master, recorder, "m1", "0")

	chat := wire.Chat{
		MatchID:     "m1",
		Message:     wire.ChatMessage{ID: "c1", Sender: "0", Body: "hello"},
		Credentials: "tok-0",
	}
	if err := master.OnChatMessage(context.Background(), chat); err != nil {
		t.Fatalf("OnChatMessage: %v", err)
	}

	_, allcast := recorder.snapshot()
	if len(allcast) != 1 {
		t.Fatalf("chat broadcast %d pushes, want 1", len(allcast))
	}
	if allcast[0].Kind != wire.PushChat {
		t.Fatalf("push kind = %s, want chat", allcast[0].Kind)
	}
	if got := allcast[0].Chat.Message.Body; got != "hello" {
		t.Errorf("broadcast body = %q, want %q", got, "hello")
	}

	chat.Credentials = "forged"
	if err := master.OnChatMessage(context.Background(), chat); !IsReject(err, RejectBadCredentials) {
		t.Errorf("forged chat = %v, want bad-credentials rejection", err)
	}
}

func TestConnectionChangePresence(t *testing.T) {
	master, recorder := newTestMaster(t)
	syncSeat(t, master, recorder, "m1", "0")
	syncSeat(t, master, recorder, "m1", "1")
	ctx := context.Background()

	presenceOf := func(seat wire.PlayerID) bool {
		t.Helper()
		_, allcast := recorder.snapshot()
		if len(allcast) == 0 {
			t.Fatal("no presence broadcast")
		}
		last := allcast[len(allcast)-1]
		if last.Kind != wire.PushPresence {
			t.Fatalf("push kind = %s, want presence", last.Kind)
		}
		for _, entry := range last.Presence.Seats {
			if entry.PlayerID == seat {
				return entry.Connected
			}
		}
		t.Fatalf("seat %s missing from presence", seat)
		return false
	}

	// Two connections for seat 0: presence holds until both close.
	if err := master.OnConnectionChange(ctx, "m1", "0", "conn-a", true); err != nil {
		t.Fatalf("OnConnectionChange: %v", err)
	}
	if err := master.OnConnectionChange(ctx, "m1", "0", "conn-b", true); err != nil {
		t.Fatalf("OnConnectionChange: %v", err)
	}
	if !presenceOf("0") {
		t.Error("seat 0 not connected after two connections opened")
	}

	if err := master.OnConnectionChange(ctx, "m1", "0", "conn-a", false); err != nil {
		t.Fatalf("OnConnectionChange: %v", err)
	}
	if !presenceOf("0") {
		t.Error("seat 0 dropped while one connection remains")
	}

	if err := master.OnConnectionChange(ctx, "m1", "0", "conn-b", false); err != nil {
		t.Fatalf("OnConnectionChange: %v", err)
	}
	if presenceOf("0") {
		t.Error("seat 0 still connected after all connections closed")
	}
	if presenceOf("1") {
		t.Error("seat 1 reported connected without any connection")
	}
}

func TestConnectionChangeBeforeMatchExists(t *testing.T) {
	master, recorder := newTestMaster(t)

	// Connections arrive before the first sync creates the match.
	// Nothing to broadcast, nothing to fail.
	if err := master.OnConnectionChange(context.Background(), "m1", "0", "conn-a", true); err != nil {
		t.Fatalf("OnConnectionChange before match = %v, want nil", err)
	}
	targeted, allcast := recorder.snapshot()
	if len(targeted)+len(allcast) != 0 {
		t.Errorf("pre-match connection change pushed %d+%d messages", len(targeted), len(allcast))
	}
}
