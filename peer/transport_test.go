// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/parlor-foundation/parlor/endpoint"
	"github.com/parlor-foundation/parlor/engine"
	"github.com/parlor-foundation/parlor/host"
	"github.com/parlor-foundation/parlor/lib/codec"
	"github.com/parlor-foundation/parlor/lib/testutil"
	"github.com/parlor-foundation/parlor/store"
	"github.com/parlor-foundation/parlor/wire"
)

const waitShort = 5 * time.Second

// stepGame is a minimal rule set: each seat in turn plays "step",
// which increments a counter. No hidden information, never ends.
type stepGame struct{}

type stepState struct {
	Moves      int `cbor:"1,keyasint"`
	NumPlayers int `cbor:"2,keyasint"`
}

func (stepGame) Name() string { return "step" }

func (stepGame) Setup(numPlayers int) (codec.RawMessage, error) {
	return codec.Marshal(stepState{NumPlayers: numPlayers})
}

func (stepGame) Apply(state codec.RawMessage, _ wire.PlayerID, move wire.Move) (codec.RawMessage, error) {
	if move.Name != "step" {
		return nil, fmt.Errorf("%w: unknown move %s", engine.ErrIllegalMove, move.Name)
	}
	var s stepState
	if err := codec.Unmarshal(state, &s); err != nil {
		return nil, err
	}
	s.Moves++
	return codec.Marshal(s)
}

func (stepGame) PlayerView(state codec.RawMessage, _ wire.PlayerID) (codec.RawMessage, error) {
	return state, nil
}

func (stepGame) CurrentPlayer(state codec.RawMessage) (wire.PlayerID, error) {
	var s stepState
	if err := codec.Unmarshal(state, &s); err != nil {
		return "", err
	}
	return wire.PlayerID(strconv.Itoa(s.Moves % s.NumPlayers)), nil
}

func (stepGame) Status(codec.RawMessage) (engine.Status, error) {
	return engine.Status{}, nil
}

// allowAll accepts every token. Credential rejection paths are covered
// by the engine's own tests.
type allowAll struct{}

func (allowAll) Verify(wire.MatchID, wire.PlayerID, wire.Credentials) bool { return true }

// participant is one transport under test plus channels capturing its
// callbacks.
type participant struct {
	transport *Transport
	pushes    chan wire.Push
	statuses  chan Status
}

func newParticipant(t *testing.T, registry endpoint.Endpoint, matchID wire.MatchID, playerID wire.PlayerID) *participant {
	t.Helper()

	p := &participant{
		pushes:   make(chan wire.Push, 32),
		statuses: make(chan Status, 32),
	}
	transport, err := NewTransport(Config{
		GameName:    "step",
		Endpoint:    registry,
		MatchID:     matchID,
		PlayerID:    playerID,
		Credentials: "tok",
		NumPlayers:  2,
		NewEngine: func(callbacks engine.Callbacks) (engine.Engine, error) {
			return engine.NewMaster(engine.MasterConfig{
				Game:      stepGame{},
				Store:     store.NewMemory(),
				Verifier:  allowAll{},
				Callbacks: callbacks,
				Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
			})
		},
		OnPush:   func(push wire.Push) { p.pushes <- push },
		OnStatus: func(status Status) { p.statuses <- status },
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewTransport: %v", err)
	}
	p.transport = transport
	t.Cleanup(transport.Disconnect)
	return p
}

// awaitPush receives pushes until one matches kind, failing the test
// on timeout. Interleaved presence pushes make exact sequences
// timing-dependent, so tests select the kinds they assert on.
func awaitPush(t *testing.T, p *participant, kind wire.PushKind) wire.Push {
	t.Helper()
	deadline := time.After(waitShort)
	for {
		select {
		case push := <-p.pushes:
			if push.Kind == kind {
				return push
			}
		case <-deadline:
			t.Fatalf("no %s push within %v", kind, waitShort)
		}
	}
}

func awaitStatus(t *testing.T, p *participant, want Status) {
	t.Helper()
	for {
		status := testutil.RequireReceive(t, p.statuses, waitShort, "status %s", want)
		if status == want {
			return
		}
	}
}

func decodeSyncState(t *testing.T, push wire.Push) stepState {
	t.Helper()
	snapshot, err := wire.DecodeSnapshot(push.Sync.Snapshot, push.Sync.Compression)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	var s stepState
	if err := codec.Unmarshal(snapshot, &s); err != nil {
		t.Fatalf("decoding snapshot state: %v", err)
	}
	return s
}

func TestHostConnectsImmediatelyAndSyncs(t *testing.T) {
	registry := endpoint.NewMemory()
	hostP := newParticipant(t, registry, "match-h", "0")

	if err := hostP.transport.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if got := hostP.transport.Status(); got != StatusConnected {
		t.Errorf("Status after host Connect = %s, want connected", got)
	}
	if !hostP.transport.IsHost() {
		t.Error("IsHost = false, want true for seat 0")
	}
	awaitStatus(t, hostP, StatusConnected)

	// The self-issued sync creates the match and lands as a loopback
	// snapshot push.
	push := awaitPush(t, hostP, wire.PushSync)
	if state := decodeSyncState(t, push); state.NumPlayers != 2 {
		t.Errorf("snapshot NumPlayers = %d, want 2", state.NumPlayers)
	}
}

func TestHostAndClientConverge(t *testing.T) {
	registry := endpoint.NewMemory()
	ctx := context.Background()
	hostP := newParticipant(t, registry, "match-c", "0")
	clientP := newParticipant(t, registry, "match-c", "1")

	if err := hostP.transport.Connect(ctx); err != nil {
		t.Fatalf("host Connect: %v", err)
	}
	awaitPush(t, hostP, wire.PushSync)

	if err := clientP.transport.Connect(ctx); err != nil {
		t.Fatalf("client Connect: %v", err)
	}
	if clientP.transport.IsHost() {
		t.Error("client IsHost = true, want false")
	}
	awaitStatus(t, clientP, StatusConnecting)
	awaitStatus(t, clientP, StatusConnected)
	awaitPush(t, clientP, wire.PushSync)

	// Seat 0 moves; the resulting state push reaches both players.
	hostP.transport.SendAction(wire.Move{Name: "step"}, 0)
	hostState := awaitPush(t, hostP, wire.PushState)
	clientState := awaitPush(t, clientP, wire.PushState)
	if hostState.State.Version != 1 || clientState.State.Version != 1 {
		t.Errorf("state versions = %d and %d, want 1 and 1",
			hostState.State.Version, clientState.State.Version)
	}

	// Seat 1 moves over the wire.
	clientP.transport.SendAction(wire.Move{Name: "step"}, 1)
	if push := awaitPush(t, clientP, wire.PushState); push.State.Version != 2 {
		t.Errorf("client state version = %d, want 2", push.State.Version)
	}

	// Chat broadcasts reach every participant, sender included.
	clientP.transport.SendChat(wire.ChatMessage{ID: "m1", Body: "gg"})
	for _, p := range []*participant{hostP, clientP} {
		push := awaitPush(t, p, wire.PushChat)
		if push.Chat.Message.Body != "gg" || push.Chat.Message.Sender != "1" {
			t.Errorf("chat push = %+v, want gg from seat 1", push.Chat.Message)
		}
	}
}

func TestTargetedSyncReachesOnlyRequester(t *testing.T) {
	registry := endpoint.NewMemory()
	ctx := context.Background()
	hostP := newParticipant(t, registry, "match-t", "0")
	clientP := newParticipant(t, registry, "match-t", "1")

	if err := hostP.transport.Connect(ctx); err != nil {
		t.Fatalf("host Connect: %v", err)
	}
	awaitPush(t, hostP, wire.PushSync)
	if err := clientP.transport.Connect(ctx); err != nil {
		t.Fatalf("client Connect: %v", err)
	}
	awaitPush(t, clientP, wire.PushSync)

	// Drain, then have only the client re-sync. The snapshot is
	// addressed to seat 1 and must not reach the host's loopback.
	drain(hostP.pushes)
	drain(clientP.pushes)
	clientP.transport.RequestSync()
	awaitPush(t, clientP, wire.PushSync)
	requireNoPushKind(t, hostP, wire.PushSync)
}

func TestClientSendBeforeConnectIsDropped(t *testing.T) {
	registry := endpoint.NewMemory()
	ctx := context.Background()
	hostP := newParticipant(t, registry, "match-d", "0")
	clientP := newParticipant(t, registry, "match-d", "1")

	// No emit path yet: silently dropped, no panic, no queue.
	clientP.transport.SendAction(wire.Move{Name: "step"}, 0)
	clientP.transport.SendChat(wire.ChatMessage{ID: "m0", Body: "early"})

	if err := hostP.transport.Connect(ctx); err != nil {
		t.Fatalf("host Connect: %v", err)
	}
	awaitPush(t, hostP, wire.PushSync)
	if err := clientP.transport.Connect(ctx); err != nil {
		t.Fatalf("client Connect: %v", err)
	}

	// Convergence: the post-connect sync brings current state despite
	// the dropped sends.
	push := awaitPush(t, clientP, wire.PushSync)
	if state := decodeSyncState(t, push); state.Moves != 0 {
		t.Errorf("snapshot moves = %d, want 0", state.Moves)
	}
	requireNoPushKind(t, hostP, wire.PushChat)
}

func TestDialFailureSurfacesAsDisconnected(t *testing.T) {
	registry := endpoint.NewMemory()
	clientP := newParticipant(t, registry, "match-x", "1")

	// Nobody is listening on the match endpoint.
	if err := clientP.transport.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	awaitStatus(t, clientP, StatusConnecting)
	awaitStatus(t, clientP, StatusDisconnected)
	if got := clientP.transport.Status(); got != StatusDisconnected {
		t.Errorf("Status = %s, want disconnected", got)
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	registry := endpoint.NewMemory()
	hostP := newParticipant(t, registry, "match-i", "0")

	if err := hostP.transport.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	awaitStatus(t, hostP, StatusConnected)

	hostP.transport.Disconnect()
	awaitStatus(t, hostP, StatusDisconnected)
	hostP.transport.Disconnect()
	testutil.RequireNoReceive(t, hostP.statuses, 50*time.Millisecond, "status change from second Disconnect")

	// The endpoint name is free again.
	if err := hostP.transport.Connect(context.Background()); err != nil {
		t.Fatalf("Connect after Disconnect: %v", err)
	}
}

func TestHostDisconnectClosesClients(t *testing.T) {
	registry := endpoint.NewMemory()
	ctx := context.Background()
	hostP := newParticipant(t, registry, "match-hc", "0")
	clientP := newParticipant(t, registry, "match-hc", "1")

	if err := hostP.transport.Connect(ctx); err != nil {
		t.Fatalf("host Connect: %v", err)
	}
	awaitPush(t, hostP, wire.PushSync)
	if err := clientP.transport.Connect(ctx); err != nil {
		t.Fatalf("client Connect: %v", err)
	}
	awaitStatus(t, clientP, StatusConnected)

	hostP.transport.Disconnect()
	awaitStatus(t, clientP, StatusDisconnected)
}

func TestSetPlayerIDReconnectsWithFreshSync(t *testing.T) {
	registry := endpoint.NewMemory()
	ctx := context.Background()
	hostP := newParticipant(t, registry, "match-s", "0")
	clientP := newParticipant(t, registry, "match-s", "1")

	if err := hostP.transport.Connect(ctx); err != nil {
		t.Fatalf("host Connect: %v", err)
	}
	awaitPush(t, hostP, wire.PushSync)
	if err := clientP.transport.Connect(ctx); err != nil {
		t.Fatalf("client Connect: %v", err)
	}
	awaitStatus(t, clientP, StatusConnected)
	awaitPush(t, clientP, wire.PushSync)

	// Switching seats mid-session reconnects under the new identity
	// and re-syncs.
	if err := clientP.transport.SetPlayerID(ctx, "2"); err != nil {
		t.Fatalf("SetPlayerID: %v", err)
	}
	if got := clientP.transport.PlayerID(); got != "2" {
		t.Errorf("PlayerID = %s, want 2", got)
	}
	awaitStatus(t, clientP, StatusDisconnected)
	awaitStatus(t, clientP, StatusConnected)
	awaitPush(t, clientP, wire.PushSync)
}

func TestSetMatchIDWhileDisconnectedOnlyStores(t *testing.T) {
	registry := endpoint.NewMemory()
	clientP := newParticipant(t, registry, "match-old", "1")

	if err := clientP.transport.SetMatchID(context.Background(), "match-new"); err != nil {
		t.Fatalf("SetMatchID: %v", err)
	}
	if got := clientP.transport.MatchID(); got != "match-new" {
		t.Errorf("MatchID = %s, want match-new", got)
	}
	if got := clientP.transport.Status(); got != StatusDisconnected {
		t.Errorf("Status = %s, want disconnected", got)
	}
	testutil.RequireNoReceive(t, clientP.statuses, 50*time.Millisecond, "status change from setter while disconnected")
}

// closeOnStartConn is a connection already dead by the time the host
// attaches its handler: Start delivers the close event immediately,
// the way a client closing right after its channel opens does.
type closeOnStartConn struct{}

func (closeOnStartConn) ID() string              { return "conn-dead" }
func (closeOnStartConn) Metadata() wire.Metadata { return wire.Metadata{PlayerID: "1"} }
func (closeOnStartConn) Send([]byte) error       { return endpoint.ErrClosed }
func (closeOnStartConn) Close() error            { return nil }

func (closeOnStartConn) Start(handler endpoint.Handler) {
	if handler.Close != nil {
		handler.Close()
	}
}

func TestAcceptOfClosingConnectionLeavesNoRegistration(t *testing.T) {
	registry := endpoint.NewMemory()
	hostP := newParticipant(t, registry, "match-race", "0")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := host.NewRouter("match-race", logger)
	eng, err := engine.NewMaster(engine.MasterConfig{
		Game:      stepGame{},
		Store:     store.NewMemory(),
		Verifier:  allowAll{},
		Callbacks: router.Callbacks(),
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("NewMaster: %v", err)
	}
	router.Bind(eng)

	// The close event must land as an Unregister of an entry that is
	// actually in the live set, leaving the set equal to the (empty)
	// set of open connections.
	hostP.transport.acceptRemote(router, closeOnStartConn{})
	if got := router.ClientCount(); got != 0 {
		t.Errorf("live registrations after accepting a closed connection = %d, want 0", got)
	}
}

func drain(ch chan wire.Push) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func requireNoPushKind(t *testing.T, p *participant, kind wire.PushKind) {
	t.Helper()
	deadline := time.After(150 * time.Millisecond)
	for {
		select {
		case push := <-p.pushes:
			if push.Kind == kind {
				t.Fatalf("unexpected %s push: %+v", kind, push)
			}
		case <-deadline:
			return
		}
	}
}
