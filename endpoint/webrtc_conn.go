// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package endpoint

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/parlor-foundation/parlor/wire"
)

// Compile-time interface check.
var _ Conn = (*webrtcConn)(nil)

// webrtcConn adapts one data channel to the Conn contract. Inbound
// messages are buffered in an inbox and drained by a single delivery
// goroutine, which both decouples pion's callback goroutine from the
// handler and preserves FIFO across the Start boundary.
type webrtcConn struct {
	id       string
	metadata wire.Metadata
	pc       *webrtc.PeerConnection
	logger   *slog.Logger

	inbox     chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	channel *webrtc.DataChannel
	started bool
	handler Handler
}

// webrtcInboxSize bounds the receive buffer. Larger than the memory
// endpoint's because pion's callback must never block; beyond this the
// connection is torn down as broken rather than silently dropping
// mid-stream messages (which would violate FIFO).
const webrtcInboxSize = 256

func newWebRTCConn(id string, metadata wire.Metadata, pc *webrtc.PeerConnection, logger *slog.Logger) *webrtcConn {
	conn := &webrtcConn{
		id:       id,
		metadata: metadata,
		pc:       pc,
		logger:   logger,
		inbox:    make(chan []byte, webrtcInboxSize),
		done:     make(chan struct{}),
	}

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			conn.Close()
		}
	})
	return conn
}

// attach wires the data channel's events into the inbox. Called as
// soon as the channel exists, which may be before it opens, so no
// early message can arrive at an unset handler.
func (c *webrtcConn) attach(dc *webrtc.DataChannel) {
	c.mu.Lock()
	c.channel = dc
	c.mu.Unlock()

	dc.OnMessage(func(message webrtc.DataChannelMessage) {
		select {
		case c.inbox <- message.Data:
		case <-c.done:
		default:
			// A consumer this far behind has effectively stalled.
			// Dropping one message mid-stream would silently corrupt
			// ordering for the application, so fail the whole
			// connection instead; the peer sees a close and the
			// client recovers via sync on reconnect.
			c.logger.Error("receive buffer overflow, closing connection", "conn_id", c.id)
			c.Close()
		}
	})
	dc.OnClose(func() {
		c.Close()
	})
}

func (c *webrtcConn) ID() string              { return c.id }
func (c *webrtcConn) Metadata() wire.Metadata { return c.metadata }

func (c *webrtcConn) Send(payload []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.mu.Lock()
	dc := c.channel
	c.mu.Unlock()
	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrClosed
	}
	if err := dc.Send(payload); err != nil {
		return fmt.Errorf("endpoint: sending on %s: %w", c.id, err)
	}
	return nil
}

func (c *webrtcConn) Start(handler Handler) {
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

// deliver mirrors the memory endpoint: pump until closed, drain the
// queue, then fire the close handler exactly once.
func (c *webrtcConn) deliver() {
	for {
		select {
		case message := <-c.inbox:
			c.handler.Data(message)
		case <-c.done:
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

func (c *webrtcConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		if err := c.pc.Close(); err != nil {
			c.logger.Debug("closing PeerConnection", "conn_id", c.id, "error", err)
		}
	})
	return nil
}
