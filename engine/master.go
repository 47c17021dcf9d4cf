// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/parlor-foundation/parlor/lib/clock"
	"github.com/parlor-foundation/parlor/store"
	"github.com/parlor-foundation/parlor/wire"
)

// Compile-time interface check.
var _ Engine = (*Master)(nil)

// Master is the production Engine. It keeps no match state in memory
// beyond connection tracking: every action reads the record from the
// store, mutates it, and writes it back, so a host process can restart
// and re-host a match from a durable store.
//
// All mutations are serialized by a single mutex. Actions from
// different connections interleave at action granularity, which is the
// only ordering the protocol promises.
type Master struct {
	game      Game
	matches   store.MatchStore
	verifier  CredentialVerifier
	callbacks Callbacks
	clock     clock.Clock
	logger    *slog.Logger

	mu sync.Mutex

	// connections maps matchID → connID → seat. A seat counts as
	// connected while at least one of its connections is live.
	connections map[wire.MatchID]map[string]wire.PlayerID
}

// MasterConfig carries the collaborators a Master needs. Game, Store,
// Verifier, and Callbacks are required; Clock defaults to the real
// clock and Logger to slog.Default().
type MasterConfig struct {
	Game      Game
	Store     store.MatchStore
	Verifier  CredentialVerifier
	Callbacks Callbacks
	Clock     clock.Clock
	Logger    *slog.Logger
}

// NewMaster creates a Master from the given collaborators.
func NewMaster(cfg MasterConfig) (*Master, error) {
	if cfg.Game == nil {
		return nil, fmt.Errorf("engine: MasterConfig.Game is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("engine: MasterConfig.Store is required")
	}
	if cfg.Verifier == nil {
		return nil, fmt.Errorf("engine: MasterConfig.Verifier is required")
	}
	if cfg.Callbacks.Send == nil || cfg.Callbacks.SendAll == nil {
		return nil, fmt.Errorf("engine: MasterConfig.Callbacks must set Send and SendAll")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Master{
		game:        cfg.Game,
		matches:     cfg.Store,
		verifier:    cfg.Verifier,
		callbacks:   cfg.Callbacks,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		connections: make(map[wire.MatchID]map[string]wire.PlayerID),
	}, nil
}

// Initialize creates the record for a fresh match: game setup, version
// zero, no seats bound. Returns store.ErrExists if the match is
// already present.
func (m *Master) Initialize(ctx context.Context, matchID wire.MatchID, numPlayers int) (*store.Record, error) {
	if numPlayers < 1 {
		return nil, fmt.Errorf("engine: match %s needs at least one player, got %d", matchID, numPlayers)
	}

	state, err := m.game.Setup(numPlayers)
	if err != nil {
		return nil, fmt.Errorf("engine: setting up %s for match %s: %w", m.game.Name(), matchID, err)
	}

	now := m.clock.Now().UTC()
	record := &store.Record{
		MatchID:    matchID,
		GameName:   m.game.Name(),
		NumPlayers: numPlayers,
		Version:    0,
		State:      state,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := m.matches.Create(ctx, record); err != nil {
		return nil, err
	}

	m.logger.Info("match initialized",
		"match_id", matchID,
		"game", m.game.Name(),
		"players", numPlayers,
	)
	return record, nil
}

// OnUpdate applies one move: credential check, version check, turn
// check, rules check, persist, then one redacted state push per bound
// seat.
func (m *Master) OnUpdate(ctx context.Context, update wire.Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.verifier.Verify(update.MatchID, update.PlayerID, update.Move.Credentials) {
		return reject(RejectBadCredentials, "update for seat %s of match %s", update.PlayerID, update.MatchID)
	}

	record, err := m.matches.Get(ctx, update.MatchID)
	if errors.Is(err, store.ErrNotFound) {
		return reject(RejectUnknownMatch, "update for match %s", update.MatchID)
	}
	if err != nil {
		return fmt.Errorf("engine: reading match %s: %w", update.MatchID, err)
	}

	if update.StateVersion != record.Version {
		return reject(RejectStaleVersion, "update against version %d, authoritative is %d", update.StateVersion, record.Version)
	}

	status, err := m.game.Status(record.State)
	if err != nil {
		return fmt.Errorf("engine: reading status of match %s: %w", update.MatchID, err)
	}
	if status.Ended {
		return reject(RejectMatchEnded, "match %s is over: %s", update.MatchID, status.Outcome)
	}

	current, err := m.game.CurrentPlayer(record.State)
	if err != nil {
		return fmt.Errorf("engine: reading current player of match %s: %w", update.MatchID, err)
	}
	if current != update.PlayerID {
		return reject(RejectOutOfTurn, "seat %s moved on seat %s's turn", update.PlayerID, current)
	}

	next, err := m.game.Apply(record.State, update.PlayerID, update.Move)
	if err != nil {
		var rejectErr *RejectError
		if errors.As(err, &rejectErr) {
			return err
		}
		return fmt.Errorf("engine: applying %s to match %s: %w", update.Move.Name, update.MatchID, err)
	}

	record.State = next
	record.Version++
	record.UpdatedAt = m.clock.Now().UTC()
	if err := m.matches.Put(ctx, record); err != nil {
		return fmt.Errorf("engine: persisting match %s: %w", update.MatchID, err)
	}

	status, err = m.game.Status(record.State)
	if err != nil {
		return fmt.Errorf("engine: reading status of match %s: %w", update.MatchID, err)
	}

	m.logger.Debug("move applied",
		"match_id", update.MatchID,
		"seat", update.PlayerID,
		"move", update.Move.Name,
		"version", record.Version,
	)

	// Each seat gets its own view. PlayerView failures for one seat
	// must not starve the others of their push.
	for _, seat := range record.Seats {
		view, err := m.game.PlayerView(record.State, seat)
		if err != nil {
			m.logger.Error("redacting state failed, seat skipped",
				"match_id", update.MatchID,
				"seat", seat,
				"error", err,
			)
			continue
		}
		m.callbacks.Send(seat, wire.NewStatePush(wire.StatePush{
			MatchID: update.MatchID,
			Version: record.Version,
			View:    view,
			Ended:   status.Ended,
			Outcome: status.Outcome,
		}))
	}
	return nil
}

// OnChatMessage verifies the sender's token and broadcasts the message
// unchanged.
func (m *Master) OnChatMessage(ctx context.Context, chat wire.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.verifier.Verify(chat.MatchID, chat.Message.Sender, chat.Credentials) {
		return reject(RejectBadCredentials, "chat from seat %s of match %s", chat.Message.Sender, chat.MatchID)
	}

	if _, err := m.matches.Get(ctx, chat.MatchID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return reject(RejectUnknownMatch, "chat for match %s", chat.MatchID)
		}
		return fmt.Errorf("engine: reading match %s: %w", chat.MatchID, err)
	}

	m.callbacks.SendAll(wire.NewChatPush(wire.ChatPush{
		MatchID: chat.MatchID,
		Message: chat.Message,
	}))
	return nil
}

// OnSync answers with a full snapshot for the requesting seat. The
// first sync of a fresh match ID creates the match (NumPlayers seats);
// the first sync of each seat binds it into the record.
func (m *Master) OnSync(ctx context.Context, sync wire.Sync) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.verifier.Verify(sync.MatchID, sync.PlayerID, sync.Credentials) {
		return reject(RejectBadCredentials, "sync for seat %s of match %s", sync.PlayerID, sync.MatchID)
	}

	record, err := m.matches.Get(ctx, sync.MatchID)
	if errors.Is(err, store.ErrNotFound) {
		record, err = m.Initialize(ctx, sync.MatchID, sync.NumPlayers)
	}
	if err != nil {
		return fmt.Errorf("engine: syncing match %s: %w", sync.MatchID, err)
	}

	if !record.HasSeat(sync.PlayerID) {
		record.Seats = append(record.Seats, sync.PlayerID)
		record.UpdatedAt = m.clock.Now().UTC()
		if err := m.matches.Put(ctx, record); err != nil {
			return fmt.Errorf("engine: binding seat %s of match %s: %w", sync.PlayerID, sync.MatchID, err)
		}
	}

	view, err := m.game.PlayerView(record.State, sync.PlayerID)
	if err != nil {
		return fmt.Errorf("engine: redacting match %s for seat %s: %w", sync.MatchID, sync.PlayerID, err)
	}
	status, err := m.game.Status(record.State)
	if err != nil {
		return fmt.Errorf("engine: reading status of match %s: %w", sync.MatchID, err)
	}

	// view is already CBOR; the snapshot carries it as-is, compressed
	// when large.
	payload, compression := wire.EncodeSnapshot(view)

	m.logger.Debug("snapshot sent",
		"match_id", sync.MatchID,
		"seat", sync.PlayerID,
		"version", record.Version,
		"compression", compression,
		"bytes", len(payload),
	)

	m.callbacks.Send(sync.PlayerID, wire.NewSyncPush(wire.SyncPush{
		MatchID:     sync.MatchID,
		Version:     record.Version,
		Compression: compression,
		Snapshot:    payload,
		Ended:       status.Ended,
		Outcome:     status.Outcome,
	}))
	return nil
}

// OnConnectionChange tracks per-seat connection counts and broadcasts
// the resulting presence to every client. A seat is connected while at
// least one of its connections is live, so a second screen joining or
// leaving does not flap presence.
func (m *Master) OnConnectionChange(ctx context.Context, matchID wire.MatchID, playerID wire.PlayerID, connID string, connected bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conns := m.connections[matchID]
	if connected {
		if conns == nil {
			conns = make(map[string]wire.PlayerID)
			m.connections[matchID] = conns
		}
		conns[connID] = playerID
	} else {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(m.connections, matchID)
		}
	}

	record, err := m.matches.Get(ctx, matchID)
	if errors.Is(err, store.ErrNotFound) {
		// The first connection arrives before the first sync creates
		// the match. Nothing to broadcast yet.
		return nil
	}
	if err != nil {
		return fmt.Errorf("engine: reading match %s: %w", matchID, err)
	}

	live := make(map[wire.PlayerID]int)
	for _, seat := range m.connections[matchID] {
		live[seat]++
	}

	seats := make([]wire.SeatPresence, 0, len(record.Seats))
	for _, seat := range record.Seats {
		seats = append(seats, wire.SeatPresence{
			PlayerID:  seat,
			Connected: live[seat] > 0,
		})
	}

	m.logger.Debug("presence changed",
		"match_id", matchID,
		"seat", playerID,
		"conn_id", connID,
		"connected", connected,
	)

	m.callbacks.SendAll(wire.NewPresencePush(wire.PresencePush{
		MatchID: matchID,
		Seats:   seats,
	}))
	return nil
}
