// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package endpoint

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/parlor-foundation/parlor/lib/clock"
	"github.com/parlor-foundation/parlor/signal"
	"github.com/parlor-foundation/parlor/wire"
)

// Compile-time interface check.
var _ Endpoint = (*WebRTC)(nil)

// matchChannelLabel is the single data channel each connection
// carries. Ordered and reliable, so the channel itself provides the
// FIFO guarantee.
const matchChannelLabel = "match"

// Timeouts holds the bounds on connection establishment. The original
// protocol specified none; these are the chosen policy, all driven
// through the injected clock so tests can fire them instantly.
type Timeouts struct {
	// Gather bounds ICE candidate gathering before the SDP is
	// published (vanilla ICE gathers everything up front).
	Gather time.Duration

	// Answer bounds a dialing client's wait for the host's SDP answer.
	Answer time.Duration

	// Establish bounds the wait for an accepted or dialed connection
	// to reach an open data channel.
	Establish time.Duration

	// OfferPoll is the host's poll interval for inbound offers.
	OfferPoll time.Duration

	// AnswerPoll is the client's poll interval for its answer.
	AnswerPoll time.Duration
}

// DefaultTimeouts matches the documented policy: 15s gathering, 30s
// for answer and establishment, sub-second polling.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Gather:     15 * time.Second,
		Answer:     30 * time.Second,
		Establish:  30 * time.Second,
		OfferPoll:  2 * time.Second,
		AnswerPoll: 500 * time.Millisecond,
	}
}

// WebRTC is the production Endpoint: one pion PeerConnection per
// host/client pair, one ordered reliable data channel per connection,
// session descriptions exchanged through the signaler. Connection
// establishment is vanilla ICE: all candidates are gathered before
// the SDP is published, so signaling needs exactly one round trip.
type WebRTC struct {
	signaler signal.Signaler
	ice      ICEConfig
	timeouts Timeouts
	clock    clock.Clock
	logger   *slog.Logger
}

// WebRTCConfig carries the collaborators for NewWebRTC. Signaler is
// required; zero-value timeouts become DefaultTimeouts, a nil clock
// the real clock, a nil logger slog.Default().
type WebRTCConfig struct {
	Signaler signal.Signaler
	ICE      ICEConfig
	Timeouts Timeouts
	Clock    clock.Clock
	Logger   *slog.Logger
}

// NewWebRTC creates a WebRTC endpoint.
func NewWebRTC(cfg WebRTCConfig) (*WebRTC, error) {
	if cfg.Signaler == nil {
		return nil, fmt.Errorf("endpoint: WebRTCConfig.Signaler is required")
	}
	if cfg.Timeouts == (Timeouts{}) {
		cfg.Timeouts = DefaultTimeouts()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &WebRTC{
		signaler: cfg.Signaler,
		ice:      cfg.ICE,
		timeouts: cfg.Timeouts,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
	}, nil
}

// Listen claims name with the signaler and starts polling it for
// offers. Each answered offer that reaches an open data channel is
// handed to onConnection.
func (w *WebRTC) Listen(ctx context.Context, name string, onConnection func(Conn)) (Listener, error) {
	if err := w.signaler.Claim(ctx, name); err != nil {
		return nil, fmt.Errorf("endpoint: claiming %q: %w", name, err)
	}

	listener := &webrtcListener{
		endpoint:     w,
		name:         name,
		onConnection: onConnection,
		closed:       make(chan struct{}),
	}
	go listener.pollOffers(ctx)
	return listener, nil
}

// webrtcListener polls for offers on one claimed name.
type webrtcListener struct {
	endpoint     *WebRTC
	name         string
	onConnection func(Conn)

	mu       sync.Mutex
	accepted []*webrtcConn

	closed    chan struct{}
	closeOnce sync.Once
}

func (l *webrtcListener) Name() string { return l.name }

func (l *webrtcListener) Close() error {
	l.closeOnce.Do(func() {
		close(l.closed)

		// Best-effort release; a relay also releases on disconnect.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.endpoint.signaler.Release(releaseCtx, l.name); err != nil {
			l.endpoint.logger.Warn("releasing endpoint name failed", "name", l.name, "error", err)
		}

		l.mu.Lock()
		accepted := l.accepted
		l.accepted = nil
		l.mu.Unlock()
		for _, conn := range accepted {
			conn.Close()
		}
	})
	return nil
}

// pollOffers answers inbound offers until the listener closes.
func (l *webrtcListener) pollOffers(ctx context.Context) {
	ticker := l.endpoint.clock.NewTicker(l.endpoint.timeouts.OfferPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.closed:
			return
		case <-ticker.C:
			offers, err := l.endpoint.signaler.PollOffers(ctx, l.name)
			if err != nil {
				l.endpoint.logger.Warn("polling offers failed", "name", l.name, "error", err)
				continue
			}
			for _, offer := range offers {
				// Answer concurrently: one slow client's ICE gathering
				// must not delay the next client's dial.
				go l.answerOffer(ctx, offer)
			}
		}
	}
}

// answerOffer runs the host side of one dial: set the remote offer,
// gather a complete answer, publish it, then wait for the data channel
// the client created to open.
func (l *webrtcListener) answerOffer(ctx context.Context, offer signal.Offer) {
	logger := l.endpoint.logger.With("name", l.name, "conn_id", offer.OfferID)

	pc, err := l.endpoint.newPeerConnection()
	if err != nil {
		logger.Error("creating PeerConnection failed", "error", err)
		return
	}

	conn := newWebRTCConn(offer.OfferID, offer.Metadata, pc, logger)

	// The client opens the match channel. Attach the message pump the
	// moment the channel is announced, before it opens, so nothing
	// the client sends right after its own open event can slip past an
	// unset handler.
	channelOpen := make(chan struct{}, 1)
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != matchChannelLabel {
			logger.Warn("unexpected data channel ignored", "label", dc.Label())
			return
		}
		conn.attach(dc)
		dc.OnOpen(func() {
			select {
			case channelOpen <- struct{}{}:
			default:
			}
		})
	})

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offer.SDP,
	}); err != nil {
		logger.Error("setting remote offer failed", "error", err)
		pc.Close()
		return
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		logger.Error("creating answer failed", "error", err)
		pc.Close()
		return
	}

	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		logger.Error("setting local answer failed", "error", err)
		pc.Close()
		return
	}
	select {
	case <-gatherComplete:
	case <-l.endpoint.clock.After(l.endpoint.timeouts.Gather):
		logger.Warn("ICE gathering timed out", "timeout", l.endpoint.timeouts.Gather)
		pc.Close()
		return
	case <-ctx.Done():
		pc.Close()
		return
	}

	if err := l.endpoint.signaler.PublishAnswer(ctx, offer.OfferID, pc.LocalDescription().SDP); err != nil {
		logger.Error("publishing answer failed", "error", err)
		pc.Close()
		return
	}

	select {
	case <-channelOpen:
	case <-l.endpoint.clock.After(l.endpoint.timeouts.Establish):
		logger.Warn("data channel never opened", "timeout", l.endpoint.timeouts.Establish)
		pc.Close()
		return
	case <-l.closed:
		pc.Close()
		return
	case <-ctx.Done():
		pc.Close()
		return
	}

	l.mu.Lock()
	if isClosed(l.closed) {
		l.mu.Unlock()
		conn.Close()
		return
	}
	l.accepted = append(l.accepted, conn)
	l.mu.Unlock()

	logger.Info("client connected", "seat", offer.Metadata.PlayerID)
	l.onConnection(conn)
}

// Connect runs the client side: create the match channel, publish a
// complete offer at name, poll for the answer, and wait for the
// channel to open.
func (w *WebRTC) Connect(ctx context.Context, name string, metadata wire.Metadata) (Conn, error) {
	offerID := uuid.NewString()
	logger := w.logger.With("name", name, "conn_id", offerID)

	pc, err := w.newPeerConnection()
	if err != nil {
		return nil, fmt.Errorf("endpoint: creating PeerConnection: %w", err)
	}

	success := false
	defer func() {
		if !success {
			pc.Close()
		}
	}()

	ordered := true
	dc, err := pc.CreateDataChannel(matchChannelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return nil, fmt.Errorf("endpoint: creating data channel: %w", err)
	}

	conn := newWebRTCConn(offerID, metadata, pc, logger)
	conn.attach(dc)
	channelOpen := make(chan struct{})
	dc.OnOpen(func() { close(channelOpen) })

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("endpoint: creating offer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return nil, fmt.Errorf("endpoint: setting local offer: %w", err)
	}
	select {
	case <-gatherComplete:
	case <-w.clock.After(w.timeouts.Gather):
		return nil, fmt.Errorf("endpoint: ICE gathering timed out after %s", w.timeouts.Gather)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	err = w.signaler.PublishOffer(ctx, signal.Offer{
		OfferID:      offerID,
		EndpointName: name,
		SDP:          pc.LocalDescription().SDP,
		Metadata:     metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("endpoint: publishing offer to %q: %w", name, err)
	}

	answerSDP, err := w.waitForAnswer(ctx, offerID)
	if err != nil {
		return nil, fmt.Errorf("endpoint: waiting for answer from %q: %w", name, err)
	}
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answerSDP,
	}); err != nil {
		return nil, fmt.Errorf("endpoint: setting remote answer: %w", err)
	}

	select {
	case <-channelOpen:
	case <-w.clock.After(w.timeouts.Establish):
		return nil, fmt.Errorf("endpoint: data channel did not open within %s", w.timeouts.Establish)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	success = true
	logger.Info("connected to host")
	return conn, nil
}

// waitForAnswer polls the signaler until the host answers or the
// answer timeout expires.
func (w *WebRTC) waitForAnswer(ctx context.Context, offerID string) (string, error) {
	deadline := w.clock.After(w.timeouts.Answer)
	ticker := w.clock.NewTicker(w.timeouts.AnswerPoll)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			return "", fmt.Errorf("timed out after %s", w.timeouts.Answer)
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
			sdp, found, err := w.signaler.PollAnswer(ctx, offerID)
			if err != nil {
				w.logger.Warn("polling answer failed", "conn_id", offerID, "error", err)
				continue
			}
			if found {
				return sdp, nil
			}
		}
	}
}

// newPeerConnection creates a pion PeerConnection with loopback
// candidates enabled, so same-machine matches and test environments
// work without any ICE servers.
func (w *WebRTC) newPeerConnection() (*webrtc.PeerConnection, error) {
	settingEngine := webrtc.SettingEngine{}
	settingEngine.SetIncludeLoopbackCandidate(true)

	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))
	return api.NewPeerConnection(webrtc.Configuration{ICEServers: w.ice.Servers})
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
