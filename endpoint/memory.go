// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package endpoint

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/parlor-foundation/parlor/wire"
)

// Compile-time interface check.
var _ Endpoint = (*Memory)(nil)

// inboxSize bounds the per-connection receive buffer. A receiver this
// far behind has stalled; sends fail rather than block, so one stuck
// peer cannot wedge a fan-out.
const inboxSize = 64

// Memory is the in-process Endpoint: a name registry plus
// channel-backed connection pairs. Hosts and clients sharing one
// Memory instance can run a whole match without touching a socket.
type Memory struct {
	mu        sync.Mutex
	listeners map[string]*memoryListener
}

// NewMemory creates an empty in-process endpoint registry.
func NewMemory() *Memory {
	return &Memory{listeners: make(map[string]*memoryListener)}
}

func (m *Memory) Listen(_ context.Context, name string, onConnection func(Conn)) (Listener, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.listeners[name]; ok {
		return nil, fmt.Errorf("endpoint: name %q already has a listener", name)
	}

	listener := &memoryListener{
		registry:     m,
		name:         name,
		onConnection: onConnection,
	}
	m.listeners[name] = listener
	return listener, nil
}

func (m *Memory) Connect(_ context.Context, name string, metadata wire.Metadata) (Conn, error) {
	m.mu.Lock()
	listener, ok := m.listeners[name]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("endpoint: no listener on %q", name)
	}

	connID := uuid.NewString()
	client, server := newMemoryPair(connID, metadata)

	if !listener.accept(server) {
		client.Close()
		return nil, fmt.Errorf("endpoint: listener on %q is closed", name)
	}
	return client, nil
}

// memoryListener is one claimed name in the registry.
type memoryListener struct {
	registry     *Memory
	name         string
	onConnection func(Conn)

	mu       sync.Mutex
	closed   bool
	accepted []*memoryConn
}

// accept hands the server half to the listener's owner. Returns false
// when the listener has closed.
func (l *memoryListener) accept(conn *memoryConn) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.accepted = append(l.accepted, conn)
	l.mu.Unlock()

	l.onConnection(conn)
	return true
}

func (l *memoryListener) Name() string { return l.name }

func (l *memoryListener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	accepted := l.accepted
	l.accepted = nil
	l.mu.Unlock()

	l.registry.mu.Lock()
	if l.registry.listeners[l.name] == l {
		delete(l.registry.listeners, l.name)
	}
	l.registry.mu.Unlock()

	for _, conn := range accepted {
		conn.Close()
	}
	return nil
}

// connPair is the shared fate of a connection's two halves: closing
// either half closes the pair.
type connPair struct {
	done     chan struct{}
	doneOnce sync.Once
}

// memoryConn is one half of a connection pair. Sends go to the peer's
// inbox; a single delivery goroutine drains the local inbox into the
// handler, giving per-connection FIFO.
type memoryConn struct {
	id       string
	metadata wire.Metadata
	pair     *connPair
	inbox    chan []byte
	peer     *memoryConn

	mu      sync.Mutex
	started bool
	handler Handler
}

// newMemoryPair builds the two halves of a connection. The dialing
// client's metadata is visible on both halves.
func newMemoryPair(id string, metadata wire.Metadata) (client, server *memoryConn) {
	pair := &connPair{done: make(chan struct{})}
	client = &memoryConn{
		id:       id,
		metadata: metadata,
		pair:     pair,
		inbox:    make(chan []byte, inboxSize),
	}
	server = &memoryConn{
		id:       id,
		metadata: metadata,
		pair:     pair,
		inbox:    make(chan []byte, inboxSize),
	}
	client.peer = server
	server.peer = client
	return client, server
}

func (c *memoryConn) ID() string              { return c.id }
func (c *memoryConn) Metadata() wire.Metadata { return c.metadata }

func (c *memoryConn) Send(payload []byte) error {
	// Copy: the caller may reuse its buffer after Send returns.
	message := append([]byte(nil), payload...)
	select {
	case <-c.pair.done:
		return ErrClosed
	default:
	}

	select {
	case c.peer.inbox <- message:
		return nil
	case <-c.pair.done:
		return ErrClosed
	default:
		return ErrBackpressure
	}
}

func (c *memoryConn) Start(handler Handler) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		panic("endpoint: Start called twice on one connection")
	}
	c.started = true
	c.handler = handler
	c.mu.Unlock()

	go c.deliver()
}

// deliver pumps the inbox into the handler until the connection
// closes, then drains what was already queued and fires Close. The
// drain preserves the invariant that a message accepted by Send before
// the close is either delivered or lost with the connection, never
// reordered.
func (c *memoryConn) deliver() {
	for {
		select {
		case message := <-c.inbox:
			c.handler.Data(message)
		case <-c.pair.done:
			for {
				select {
				case message := <-c.inbox:
					c.handler.Data(message)
				default:
					if c.handler.Close != nil {
						c.handler.Close()
					}
					return
				}
			}
		}
	}
}

func (c *memoryConn) Close() error {
	c.pair.doneOnce.Do(func() { close(c.pair.done) })
	return nil
}
