// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/parlor-foundation/parlor/endpoint"
	"github.com/parlor-foundation/parlor/engine"
	"github.com/parlor-foundation/parlor/host"
	"github.com/parlor-foundation/parlor/lib/clock"
	"github.com/parlor-foundation/parlor/wire"
)

// Status is the transport's link state.
type Status int

const (
	// StatusDisconnected means no emit path is live.
	StatusDisconnected Status = iota

	// StatusConnecting means a client dial is in flight. The host path
	// never passes through this state; it listens and is Connected
	// immediately.
	StatusConnecting

	// StatusConnected means actions flow.
	StatusConnected
)

// String returns the status name for logs.
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// DefaultHostSeat is the seat whose occupant hosts the match. Seat
// zero by convention: the match creator takes it.
const DefaultHostSeat wire.PlayerID = "0"

// defaultDialTimeout bounds a client dial that neither opens nor
// errors on its own.
const defaultDialTimeout = 30 * time.Second

// Config carries a Transport's collaborators and initial identity.
type Config struct {
	// GameName names the game for endpoint naming. Required; must pass
	// wire.ValidateGameName.
	GameName string

	// Endpoint opens and dials named connections. Required.
	Endpoint endpoint.Endpoint

	// MatchID, PlayerID, Credentials are the initial identity. All
	// three can be replaced later through the setters.
	MatchID     wire.MatchID
	PlayerID    wire.PlayerID
	Credentials wire.Credentials

	// HostSeat designates which seat hosts. Defaults to
	// DefaultHostSeat.
	HostSeat wire.PlayerID

	// NumPlayers seeds match creation on the first sync. Defaults
	// to 2.
	NumPlayers int

	// NewEngine builds the authoritative engine when this transport
	// hosts, receiving the router's fan-out callbacks. Required only
	// for participants that may occupy the host seat.
	NewEngine func(callbacks engine.Callbacks) (engine.Engine, error)

	// OnPush receives every push addressed to the local player.
	// Required. Called from transport goroutines; implementations
	// that need ordering should funnel into their own loop.
	OnPush func(push wire.Push)

	// OnStatus observes link state changes. Optional.
	OnStatus func(status Status)

	// DialTimeout bounds the client dial. Defaults to 30s.
	DialTimeout time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Transport is the participant-side façade over the whole stack. One
// Transport serves one local player in one match at a time; changing
// any identity parameter while connected reconnects under the new
// parameters.
type Transport struct {
	cfg    Config
	clk    clock.Clock
	logger *slog.Logger

	mu          sync.Mutex
	status      Status
	generation  uint64
	matchID     wire.MatchID
	playerID    wire.PlayerID
	credentials wire.Credentials
	emit        func(action wire.Action)
	teardown    func()
}

// NewTransport validates cfg and returns a disconnected transport.
func NewTransport(cfg Config) (*Transport, error) {
	if err := wire.ValidateGameName(cfg.GameName); err != nil {
		return nil, fmt.Errorf("peer: %w", err)
	}
	if cfg.Endpoint == nil {
		return nil, fmt.Errorf("peer: Config.Endpoint is required")
	}
	if cfg.OnPush == nil {
		return nil, fmt.Errorf("peer: Config.OnPush is required")
	}
	if cfg.HostSeat.IsZero() {
		cfg.HostSeat = DefaultHostSeat
	}
	if cfg.NumPlayers == 0 {
		cfg.NumPlayers = 2
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Transport{
		cfg:         cfg,
		clk:         cfg.Clock,
		logger:      cfg.Logger,
		matchID:     cfg.MatchID,
		playerID:    cfg.PlayerID,
		credentials: cfg.Credentials,
	}, nil
}

// Status returns the current link state.
func (t *Transport) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// MatchID returns the current match identity.
func (t *Transport) MatchID() wire.MatchID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.matchID
}

// PlayerID returns the local player's seat.
func (t *Transport) PlayerID() wire.PlayerID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playerID
}

// IsHost reports whether the current identity makes this transport the
// host. Recomputed from the live parameters, so it is accurate even
// between a SetPlayerID and the reconnect it triggers.
func (t *Transport) IsHost() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playerID == t.cfg.HostSeat
}

// Connect establishes the transport under the current identity. The
// role is decided here: host when the local seat is the host seat,
// client otherwise.
//
// The host path is synchronous and is Connected when Connect returns.
// The client path returns once the dial is in flight; the transport is
// Connecting until the dial resolves, with the outcome reported
// through OnStatus.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.status != StatusDisconnected {
		t.mu.Unlock()
		return fmt.Errorf("peer: connect while %s", t.status)
	}
	t.generation++
	gen := t.generation
	matchID := t.matchID
	playerID := t.playerID
	hosting := playerID == t.cfg.HostSeat
	t.mu.Unlock()

	if matchID.IsZero() {
		return fmt.Errorf("peer: connect without a match ID")
	}
	if playerID.IsZero() {
		return fmt.Errorf("peer: connect without a player ID")
	}

	name := wire.EndpointName(t.cfg.GameName, matchID)
	if hosting {
		return t.connectHost(ctx, gen, name, matchID, playerID)
	}
	t.connectClient(ctx, gen, name, playerID)
	return nil
}

// connectHost stands up the authoritative side: router + engine +
// listening endpoint, with the local player attached as a loopback
// registration whose sends invoke OnPush directly.
func (t *Transport) connectHost(ctx context.Context, gen uint64, name string, matchID wire.MatchID, playerID wire.PlayerID) error {
	if t.cfg.NewEngine == nil {
		return fmt.Errorf("peer: seat %s hosts but Config.NewEngine is unset", playerID)
	}

	router := host.NewRouter(matchID, t.logger)
	eng, err := t.cfg.NewEngine(router.Callbacks())
	if err != nil {
		return fmt.Errorf("peer: building engine for match %s: %w", matchID, err)
	}
	router.Bind(eng)

	listener, err := t.cfg.Endpoint.Listen(ctx, name, func(conn endpoint.Conn) {
		t.acceptRemote(router, conn)
	})
	if err != nil {
		return fmt.Errorf("peer: listening on %s: %w", name, err)
	}

	loopback := &host.Registration{
		ID:       "loopback-" + string(playerID),
		Metadata: wire.Metadata{PlayerID: playerID},
		Send: func(push wire.Push) error {
			t.cfg.OnPush(push)
			return nil
		},
	}
	if err := router.Register(ctx, loopback); err != nil {
		t.logger.Warn("loopback presence notification failed", "error", err)
	}

	t.mu.Lock()
	if t.generation != gen {
		// Disconnected while we were setting up.
		t.mu.Unlock()
		listener.Close()
		return nil
	}
	t.emit = func(action wire.Action) {
		if err := router.ProcessAction(context.Background(), action); err != nil {
			t.logger.Debug("local action rejected", "kind", action.Kind, "error", err)
		}
	}
	t.teardown = func() {
		if err := router.Unregister(context.Background(), loopback); err != nil {
			t.logger.Debug("loopback unregister", "error", err)
		}
		listener.Close()
	}
	t.status = StatusConnected
	t.mu.Unlock()

	t.logger.Info("hosting match", "match_id", matchID, "endpoint", name)
	t.notify(StatusConnected)
	t.RequestSync()
	return nil
}

// acceptRemote attaches one inbound client connection to the router.
// The registration's lifetime is the connection's: registered here,
// unregistered by the connection's close event.
func (t *Transport) acceptRemote(router *host.Router, conn endpoint.Conn) {
	registration := &host.Registration{
		ID:       conn.ID(),
		Metadata: conn.Metadata(),
		Send: func(push wire.Push) error {
			frame, err := wire.EncodePush(push)
			if err != nil {
				return err
			}
			return conn.Send(frame)
		},
	}

	// Register before Start. The endpoint delivers Close only after
	// Start, so this order guarantees the close handler's Unregister
	// follows the Register. Started first, a connection dying in the
	// window between the two would unregister as a no-op and then
	// register an entry nothing ever removes.
	if err := router.Register(context.Background(), registration); err != nil {
		t.logger.Warn("registering client connection", "conn_id", conn.ID(), "error", err)
	}

	conn.Start(endpoint.Handler{
		Data: func(payload []byte) {
			action, err := wire.DecodeAction(payload)
			if err != nil {
				t.logger.Error("malformed action frame dropped", "conn_id", conn.ID(), "error", err)
				return
			}
			if err := router.ProcessAction(context.Background(), action); err != nil {
				t.logger.Debug("action rejected", "conn_id", conn.ID(), "kind", action.Kind, "error", err)
			}
		},
		Close: func() {
			if err := router.Unregister(context.Background(), registration); err != nil {
				t.logger.Debug("unregister on close", "conn_id", conn.ID(), "error", err)
			}
		},
	})
}

// connectClient starts the dial in the background and reports the
// outcome through OnStatus. The generation counter makes resolutions
// of an abandoned dial (a Disconnect or identity change raced it)
// harmless.
func (t *Transport) connectClient(ctx context.Context, gen uint64, name string, playerID wire.PlayerID) {
	dialCtx, cancel := context.WithCancel(ctx)
	timer := t.clk.AfterFunc(t.cfg.DialTimeout, cancel)

	t.mu.Lock()
	t.status = StatusConnecting
	t.teardown = func() {
		timer.Stop()
		cancel()
	}
	t.mu.Unlock()

	t.notify(StatusConnecting)
	go t.dial(dialCtx, gen, name, playerID, cancel, timer)
}

func (t *Transport) dial(ctx context.Context, gen uint64, name string, playerID wire.PlayerID, cancel context.CancelFunc, timer *clock.Timer) {
	defer timer.Stop()
	defer cancel()

	conn, err := t.cfg.Endpoint.Connect(ctx, name, wire.Metadata{PlayerID: playerID})
	if err != nil {
		t.logger.Warn("dial failed", "endpoint", name, "error", err)
		t.mu.Lock()
		stale := t.generation != gen
		if !stale {
			t.status = StatusDisconnected
			t.emit = nil
			t.teardown = nil
		}
		t.mu.Unlock()
		if !stale {
			t.notify(StatusDisconnected)
		}
		return
	}

	t.mu.Lock()
	if t.generation != gen {
		t.mu.Unlock()
		conn.Close()
		return
	}
	t.emit = func(action wire.Action) {
		frame, err := wire.EncodeAction(action)
		if err != nil {
			t.logger.Error("encoding action", "kind", action.Kind, "error", err)
			return
		}
		if err := conn.Send(frame); err != nil {
			t.logger.Debug("send on closed connection dropped", "kind", action.Kind, "error", err)
		}
	}
	t.teardown = func() { conn.Close() }
	t.status = StatusConnected
	t.mu.Unlock()

	conn.Start(endpoint.Handler{
		Data: func(payload []byte) {
			push, err := wire.DecodePush(payload)
			if err != nil {
				t.logger.Error("malformed push frame dropped", "error", err)
				return
			}
			t.cfg.OnPush(push)
		},
		Close: func() { t.remoteClosed(gen) },
	})

	t.logger.Info("joined match", "endpoint", name, "conn_id", conn.ID())
	t.notify(StatusConnected)
	t.RequestSync()
}

// remoteClosed handles the connection dying under us. Stale
// generations mean the close belongs to a connection we already
// replaced or tore down.
func (t *Transport) remoteClosed(gen uint64) {
	t.mu.Lock()
	if t.generation != gen || t.status == StatusDisconnected {
		t.mu.Unlock()
		return
	}
	t.generation++
	t.status = StatusDisconnected
	t.emit = nil
	t.teardown = nil
	t.mu.Unlock()

	t.logger.Warn("connection lost")
	t.notify(StatusDisconnected)
}

// Disconnect tears down the connection or listening endpoint and
// clears the emit path. Idempotent. Actions in flight may be lost; the
// sync on the next connect restores convergence.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	if t.status == StatusDisconnected {
		t.mu.Unlock()
		return
	}
	t.generation++
	teardown := t.teardown
	t.teardown = nil
	t.emit = nil
	t.status = StatusDisconnected
	t.mu.Unlock()

	if teardown != nil {
		teardown()
	}
	t.notify(StatusDisconnected)
}

// SendAction submits one move against the given state version. The
// transport stamps the move with the stored credentials. Dropped
// silently when no emit path is live.
func (t *Transport) SendAction(move wire.Move, stateVersion uint64) {
	t.mu.Lock()
	move.Credentials = t.credentials
	update := wire.Update{
		Move:         move,
		StateVersion: stateVersion,
		MatchID:      t.matchID,
		PlayerID:     t.playerID,
	}
	t.mu.Unlock()
	t.send(wire.NewUpdate(update))
}

// SendChat broadcasts one chat message. An unset sender defaults to
// the local player.
func (t *Transport) SendChat(message wire.ChatMessage) {
	t.mu.Lock()
	if message.Sender.IsZero() {
		message.Sender = t.playerID
	}
	chat := wire.Chat{
		MatchID:     t.matchID,
		Message:     message,
		Credentials: t.credentials,
	}
	t.mu.Unlock()
	t.send(wire.NewChat(chat))
}

// RequestSync asks the host for a full snapshot of the local player's
// view.
func (t *Transport) RequestSync() {
	t.mu.Lock()
	sync := wire.Sync{
		MatchID:     t.matchID,
		PlayerID:    t.playerID,
		Credentials: t.credentials,
		NumPlayers:  t.cfg.NumPlayers,
	}
	t.mu.Unlock()
	t.send(wire.NewSync(sync))
}

// send delivers through whichever emit path the last connect
// installed. No emit path means the action is dropped, by contract.
func (t *Transport) send(action wire.Action) {
	t.mu.Lock()
	emit := t.emit
	t.mu.Unlock()
	if emit == nil {
		t.logger.Debug("action dropped, transport not connected", "kind", action.Kind)
		return
	}
	emit(action)
}

// SetMatchID replaces the match identity. When connected or
// connecting, the transport reconnects under the new match; the role
// decision and endpoint name are recomputed.
func (t *Transport) SetMatchID(ctx context.Context, matchID wire.MatchID) error {
	return t.rebind(ctx, func() { t.matchID = matchID })
}

// SetPlayerID replaces the local seat, reconnecting when active. A
// seat change can flip the transport between host and client.
func (t *Transport) SetPlayerID(ctx context.Context, playerID wire.PlayerID) error {
	return t.rebind(ctx, func() { t.playerID = playerID })
}

// SetCredentials replaces the stored token, reconnecting when active
// so the post-connect sync re-authenticates under the new token.
func (t *Transport) SetCredentials(ctx context.Context, credentials wire.Credentials) error {
	return t.rebind(ctx, func() { t.credentials = credentials })
}

func (t *Transport) rebind(ctx context.Context, apply func()) error {
	t.mu.Lock()
	active := t.status != StatusDisconnected
	apply()
	t.mu.Unlock()

	if !active {
		return nil
	}
	t.Disconnect()
	return t.Connect(ctx)
}

func (t *Transport) notify(status Status) {
	if t.cfg.OnStatus != nil {
		t.cfg.OnStatus(status)
	}
}
