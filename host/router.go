// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/parlor-foundation/parlor/engine"
	"github.com/parlor-foundation/parlor/wire"
)

// Registration is one attached connection: a send capability plus the
// metadata naming its seat. The host's own player attaches as a
// loopback registration whose Send applies pushes to local state
// directly; remote clients attach with a Send that encodes onto their
// connection.
//
// Routing is per connection. Several live registrations may carry the
// same seat (a spectating second screen); targeted sends reach all of
// them.
type Registration struct {
	// ID uniquely identifies the underlying connection.
	ID string

	// Metadata carries the seat this registration acts for.
	Metadata wire.Metadata

	// Send delivers one push. A failure affects only this
	// registration.
	Send func(push wire.Push) error
}

// Router owns the live registration set for one match and connects it
// to the authoritative engine.
//
// Construction is two-phase because the engine needs the router's
// fan-out functions before the router can hold the engine:
//
//	router := host.NewRouter(matchID, logger)
//	master, err := engine.NewMaster(engine.MasterConfig{
//	        Callbacks: router.Callbacks(),
//	        ...
//	})
//	router.Bind(master)
type Router struct {
	matchID wire.MatchID
	logger  *slog.Logger

	mu      sync.Mutex
	engine  engine.Engine
	clients map[*Registration]struct{}
}

// NewRouter creates an unbound router for one match.
func NewRouter(matchID wire.MatchID, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		matchID: matchID,
		logger:  logger.With("match_id", matchID),
		clients: make(map[*Registration]struct{}),
	}
}

// Bind attaches the engine. Must be called exactly once, before the
// first Register or ProcessAction.
func (r *Router) Bind(eng engine.Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.engine != nil {
		panic("host: Router.Bind called twice")
	}
	r.engine = eng
}

// Callbacks returns the push functions to hand the engine.
func (r *Router) Callbacks() engine.Callbacks {
	return engine.Callbacks{
		Send:    r.Send,
		SendAll: r.SendAll,
	}
}

// Register adds a registration to the live set and tells the engine
// the seat gained a connection. Callers register each connection at
// most once.
func (r *Router) Register(ctx context.Context, registration *Registration) error {
	r.mu.Lock()
	eng := r.engine
	r.clients[registration] = struct{}{}
	r.mu.Unlock()

	if eng == nil {
		panic("host: Register before Bind")
	}

	r.logger.Debug("client registered",
		"conn_id", registration.ID,
		"seat", registration.Metadata.PlayerID,
	)
	return eng.OnConnectionChange(ctx, r.matchID, registration.Metadata.PlayerID, registration.ID, true)
}

// Unregister removes a registration and tells the engine the seat lost
// a connection. A registration that was never added (or was already
// removed by a transport reset) is a no-op.
func (r *Router) Unregister(ctx context.Context, registration *Registration) error {
	r.mu.Lock()
	eng := r.engine
	_, present := r.clients[registration]
	delete(r.clients, registration)
	r.mu.Unlock()

	if !present {
		return nil
	}

	r.logger.Debug("client unregistered",
		"conn_id", registration.ID,
		"seat", registration.Metadata.PlayerID,
	)
	return eng.OnConnectionChange(ctx, r.matchID, registration.Metadata.PlayerID, registration.ID, false)
}

// ProcessAction dispatches one action into the engine. The tag set is
// closed; a tag outside it is a contract violation by the sender and
// is dropped with an error rather than crashing the host.
//
// Engine rejections (bad token, stale version, out of turn) come back
// as *engine.RejectError; callers on the connection path log them at
// debug and move on; the client recovers through its next sync.
func (r *Router) ProcessAction(ctx context.Context, action wire.Action) error {
	r.mu.Lock()
	eng := r.engine
	r.mu.Unlock()
	if eng == nil {
		panic("host: ProcessAction before Bind")
	}

	switch action.Kind {
	case wire.ActionUpdate:
		return eng.OnUpdate(ctx, *action.Update)
	case wire.ActionChat:
		return eng.OnChatMessage(ctx, *action.Chat)
	case wire.ActionSync:
		return eng.OnSync(ctx, *action.Sync)
	default:
		err := fmt.Errorf("host: action kind %d outside the closed set", uint8(action.Kind))
		r.logger.Error("malformed action dropped", "error", err)
		return err
	}
}

// Send delivers push to every live registration whose seat matches
// playerID. Zero matches is fine; a failing registration is logged and
// skipped. Delivery happens outside the lock so a slow Send cannot
// stall Register/Unregister.
func (r *Router) Send(playerID wire.PlayerID, push wire.Push) {
	for _, registration := range r.snapshot() {
		if registration.Metadata.PlayerID != playerID {
			continue
		}
		r.deliver(registration, push)
	}
}

// SendAll delivers push to every live registration exactly once.
func (r *Router) SendAll(push wire.Push) {
	for _, registration := range r.snapshot() {
		r.deliver(registration, push)
	}
}

// ClientCount returns the size of the live registration set.
func (r *Router) ClientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (r *Router) snapshot() []*Registration {
	r.mu.Lock()
	defer r.mu.Unlock()
	registrations := make([]*Registration, 0, len(r.clients))
	for registration := range r.clients {
		registrations = append(registrations, registration)
	}
	return registrations
}

// deliver pushes to one registration, isolating failures.
func (r *Router) deliver(registration *Registration, push wire.Push) {
	if err := registration.Send(push); err != nil {
		r.logger.Warn("push delivery failed",
			"conn_id", registration.ID,
			"seat", registration.Metadata.PlayerID,
			"kind", push.Kind,
			"error", err,
		)
	}
}
