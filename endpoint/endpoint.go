// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package endpoint

import (
	"context"
	"errors"

	"github.com/parlor-foundation/parlor/wire"
)

// ErrClosed is returned by Send on a connection that has closed and by
// Listen/Connect on a torn-down endpoint.
var ErrClosed = errors.New("endpoint: connection closed")

// ErrBackpressure is returned by Send when the receiver's buffer is
// full, meaning the peer has stopped draining or never started. The
// payload is not queued; delivery failures are the caller's to
// isolate.
var ErrBackpressure = errors.New("endpoint: receiver not draining")

// Endpoint opens named listening endpoints and dials them. One
// Endpoint instance serves any number of names; hosts and clients in
// the same process may share one.
type Endpoint interface {
	// Listen claims name and delivers each inbound connection to
	// onConnection (one call per connection, from the endpoint's
	// delivery goroutine). The caller must Start each connection to
	// receive its data.
	Listen(ctx context.Context, name string, onConnection func(Conn)) (Listener, error)

	// Connect dials the host listening on name, presenting metadata.
	// Blocks until the connection is open, ctx is cancelled, or the
	// implementation's dial bound expires.
	Connect(ctx context.Context, name string, metadata wire.Metadata) (Conn, error)
}

// Listener is one claimed endpoint name.
type Listener interface {
	// Name returns the claimed endpoint name.
	Name() string

	// Close releases the name and closes every connection accepted
	// through it. Safe to call more than once.
	Close() error
}

// Handler receives a connection's events. Callbacks arrive from a
// single delivery goroutine: Data calls are FIFO in send order, and
// Close is the final call, delivered exactly once.
type Handler struct {
	// Data receives one message payload.
	Data func(payload []byte)

	// Close is called when the connection closes, locally or remotely.
	Close func()
}

// Conn is one reliable, ordered message channel between two peers.
type Conn interface {
	// ID uniquely identifies this connection on both ends.
	ID() string

	// Metadata returns the dialing client's registration metadata.
	Metadata() wire.Metadata

	// Send queues one payload for delivery without blocking on the
	// receiver. Returns ErrClosed after the connection closes and
	// ErrBackpressure when the receiver's buffer is full; payloads
	// accepted just before a close may be silently lost.
	Send(payload []byte) error

	// Start installs the handler and begins delivery. Must be called
	// exactly once; messages arriving before Start are buffered, not
	// dropped.
	Start(handler Handler)

	// Close tears the connection down. The Close handler fires on both
	// ends. Safe to call more than once.
	Close() error
}
