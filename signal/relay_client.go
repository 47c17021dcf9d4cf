// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package signal

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parlor-foundation/parlor/lib/clock"
)

// Compile-time interface check.
var _ Signaler = (*RelayClient)(nil)

// Client-side relay timing. Pings keep NATs and the relay's read
// window alive; a request that gets no response within requestTimeout
// counts as a dead relay.
const (
	pingInterval    = 20 * time.Second
	pingWriteBudget = 10 * time.Second
	requestTimeout  = 15 * time.Second
)

// RelayClient is the Signaler backed by a relay over one WebSocket.
// Safe for concurrent use; requests are serialized because the
// protocol is strict request/response.
type RelayClient struct {
	conn   *websocket.Conn
	clock  clock.Clock
	logger *slog.Logger

	// reqMu admits one in-flight request at a time, pairing each
	// request with the next frame the read pump delivers. stale counts
	// response frames owed to requests abandoned on context
	// cancellation; they must be drained before the pairing holds
	// again.
	reqMu     sync.Mutex
	stale     int
	responses chan relayResponse

	closed    chan struct{}
	closeOnce sync.Once
}

// DialRelay connects to a relay's /signal endpoint. url uses the ws or
// wss scheme ("wss://relay.example.org/signal"). clk may be nil for
// the real clock.
func DialRelay(ctx context.Context, url string, clk clock.Clock, logger *slog.Logger) (*RelayClient, error) {
	if clk == nil {
		clk = clock.Real()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("signal: dialing relay %s: %w", url, err)
	}

	client := &RelayClient{
		conn:      conn,
		clock:     clk,
		logger:    logger,
		responses: make(chan relayResponse),
		closed:    make(chan struct{}),
	}
	go client.readPump()
	go client.pinger()
	return client, nil
}

// Close tears down the relay connection. Pending requests fail with a
// connection-closed error.
func (c *RelayClient) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
	return nil
}

// readPump delivers response frames to roundTrip in arrival order.
// WebSocket control frames (the relay's pongs) are handled inside
// ReadJSON's frame loop.
func (c *RelayClient) readPump() {
	defer c.Close()
	for {
		var response relayResponse
		if err := c.conn.ReadJSON(&response); err != nil {
			select {
			case <-c.closed:
			default:
				c.logger.Warn("relay connection lost", "error", err)
			}
			return
		}
		select {
		case c.responses <- response:
		case <-c.closed:
			return
		}
	}
}

// pinger keeps the connection alive. A failed ping write means the
// relay is gone; the read pump will notice and shut down.
func (c *RelayClient) pinger() {
	ticker := c.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			deadline := time.Now().Add(pingWriteBudget)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Warn("relay ping failed", "error", err)
				c.Close()
				return
			}
		}
	}
}

// roundTrip sends one request and waits for its response.
func (c *RelayClient) roundTrip(ctx context.Context, request relayRequest) (relayResponse, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	select {
	case <-c.closed:
		return relayResponse{}, net.ErrClosed
	default:
	}

	// Requests abandoned on cancellation left their responses on the
	// socket. Discard them, or this request would be answered with a
	// frame meant for an earlier one.
	for c.stale > 0 {
		select {
		case <-c.responses:
			c.stale--
		case <-c.clock.After(requestTimeout):
			c.Close()
			return relayResponse{}, fmt.Errorf("signal: relay went quiet before %s request", request.Kind)
		case <-c.closed:
			return relayResponse{}, net.ErrClosed
		}
	}

	c.conn.SetWriteDeadline(time.Now().Add(requestTimeout))
	if err := c.conn.WriteJSON(request); err != nil {
		c.Close()
		return relayResponse{}, fmt.Errorf("signal: writing %s request: %w", request.Kind, err)
	}

	select {
	case response := <-c.responses:
		if response.ErrorCode != "" {
			return relayResponse{}, decodeError(response)
		}
		return response, nil
	case <-c.clock.After(requestTimeout):
		c.Close()
		return relayResponse{}, fmt.Errorf("signal: %s request timed out after %s", request.Kind, requestTimeout)
	case <-ctx.Done():
		// The response is still in flight. Record the debt so the next
		// request drains it instead of consuming it as its own.
		c.stale++
		return relayResponse{}, ctx.Err()
	case <-c.closed:
		return relayResponse{}, net.ErrClosed
	}
}

// decodeError maps a relay error response back to the package's
// sentinel errors so callers can errors.Is across the wire.
func decodeError(response relayResponse) error {
	switch response.ErrorCode {
	case errCodeNameClaimed:
		return ErrNameClaimed
	case errCodeNotClaimed:
		return ErrNotClaimed
	default:
		return fmt.Errorf("signal: relay rejected request: %s", response.ErrorMessage)
	}
}

func (c *RelayClient) Claim(ctx context.Context, name string) error {
	_, err := c.roundTrip(ctx, relayRequest{Kind: kindClaim, Name: name})
	return err
}

func (c *RelayClient) Release(ctx context.Context, name string) error {
	_, err := c.roundTrip(ctx, relayRequest{Kind: kindRelease, Name: name})
	return err
}

func (c *RelayClient) PollOffers(ctx context.Context, name string) ([]Offer, error) {
	response, err := c.roundTrip(ctx, relayRequest{Kind: kindPollOffers, Name: name})
	if err != nil {
		return nil, err
	}
	return response.Offers, nil
}

func (c *RelayClient) PublishAnswer(ctx context.Context, offerID, sdp string) error {
	_, err := c.roundTrip(ctx, relayRequest{Kind: kindPublishAnswer, OfferID: offerID, SDP: sdp})
	return err
}

func (c *RelayClient) PublishOffer(ctx context.Context, offer Offer) error {
	_, err := c.roundTrip(ctx, relayRequest{Kind: kindPublishOffer, Offer: &offer})
	return err
}

func (c *RelayClient) PollAnswer(ctx context.Context, offerID string) (string, bool, error) {
	response, err := c.roundTrip(ctx, relayRequest{Kind: kindPollAnswer, OfferID: offerID})
	if err != nil {
		return "", false, err
	}
	return response.SDP, response.Found, nil
}
