// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package signal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Relay timing. The client pings every pingInterval; the server drops
// a connection that stays silent (no frames, no pongs) for readWindow.
const (
	readWindow     = 60 * time.Second
	writeDeadline  = 10 * time.Second
	maxMessageSize = 64 * 1024
)

// RelayServer brokers offers and answers between hosts and clients. It
// is an http.Handler; mount it wherever the relay should live (the
// parlor-relay binary serves it at /signal).
//
// Names claimed over a connection are released when that connection
// drops, so a crashed host does not strand its match name.
type RelayServer struct {
	broker   *Memory
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewRelayServer creates a relay with an empty broker.
func NewRelayServer(logger *slog.Logger) *RelayServer {
	return &RelayServer{
		broker: NewMemory(),
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The relay carries no credentials and no game state, and
			// its clients are peer processes, not browsers with
			// cookies. Origin checking would only break non-browser
			// dialers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request to a WebSocket and serves the relay
// protocol until the connection drops.
func (s *RelayServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Warn("relay upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	s.serveConn(r.Context(), conn)
}

// serveConn runs the request/response loop for one client.
func (s *RelayServer) serveConn(ctx context.Context, conn *websocket.Conn) {
	remote := conn.RemoteAddr().String()
	logger := s.logger.With("remote", remote)
	logger.Debug("relay client connected")

	// Names this connection has claimed, released on disconnect.
	var claimed []string
	defer func() {
		for _, name := range claimed {
			if err := s.broker.Release(ctx, name); err == nil {
				logger.Debug("claim released on disconnect", "name", name)
			}
		}
		conn.Close()
		logger.Debug("relay client disconnected")
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(readWindow))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWindow))
	})

	for {
		var request relayRequest
		if err := conn.ReadJSON(&request); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("relay read failed", "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readWindow))

		response := s.handle(ctx, &request, &claimed)

		conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := conn.WriteJSON(response); err != nil {
			logger.Warn("relay write failed", "error", err)
			return
		}
	}
}

// handle executes one request against the broker. claimed accumulates
// this connection's names for cleanup.
func (s *RelayServer) handle(ctx context.Context, request *relayRequest, claimed *[]string) relayResponse {
	switch request.Kind {
	case kindClaim:
		if request.Name == "" {
			return badRequest("claim needs a name")
		}
		if err := s.broker.Claim(ctx, request.Name); err != nil {
			return errorResponse(err)
		}
		*claimed = append(*claimed, request.Name)
		s.logger.Info("endpoint name claimed", "name", request.Name)
		return relayResponse{}

	case kindRelease:
		if request.Name == "" {
			return badRequest("release needs a name")
		}
		if err := s.broker.Release(ctx, request.Name); err != nil {
			return errorResponse(err)
		}
		for i, name := range *claimed {
			if name == request.Name {
				*claimed = append((*claimed)[:i], (*claimed)[i+1:]...)
				break
			}
		}
		return relayResponse{}

	case kindPollOffers:
		if request.Name == "" {
			return badRequest("poll_offers needs a name")
		}
		offers, err := s.broker.PollOffers(ctx, request.Name)
		if err != nil {
			return errorResponse(err)
		}
		return relayResponse{Offers: offers}

	case kindPublishAnswer:
		if request.OfferID == "" || request.SDP == "" {
			return badRequest("publish_answer needs offer_id and sdp")
		}
		if err := s.broker.PublishAnswer(ctx, request.OfferID, request.SDP); err != nil {
			return errorResponse(err)
		}
		return relayResponse{}

	case kindPublishOffer:
		if request.Offer == nil || request.Offer.OfferID == "" || request.Offer.EndpointName == "" {
			return badRequest("publish_offer needs an offer with offer_id and endpoint_name")
		}
		if err := s.broker.PublishOffer(ctx, *request.Offer); err != nil {
			return errorResponse(err)
		}
		return relayResponse{}

	case kindPollAnswer:
		if request.OfferID == "" {
			return badRequest("poll_answer needs offer_id")
		}
		sdp, found, err := s.broker.PollAnswer(ctx, request.OfferID)
		if err != nil {
			return errorResponse(err)
		}
		return relayResponse{SDP: sdp, Found: found}

	default:
		return badRequest("unknown request kind %q", request.Kind)
	}
}

func badRequest(format string, args ...any) relayResponse {
	return relayResponse{
		ErrorCode:    errCodeBadRequest,
		ErrorMessage: fmt.Sprintf(format, args...),
	}
}

func errorResponse(err error) relayResponse {
	switch {
	case errors.Is(err, ErrNameClaimed):
		return relayResponse{ErrorCode: errCodeNameClaimed, ErrorMessage: err.Error()}
	case errors.Is(err, ErrNotClaimed):
		return relayResponse{ErrorCode: errCodeNotClaimed, ErrorMessage: err.Error()}
	default:
		return relayResponse{ErrorCode: errCodeBadRequest, ErrorMessage: err.Error()}
	}
}

// ListenAndServe serves the relay at path /signal on addr until ctx is
// cancelled. Convenience wrapper for the parlor-relay binary; embeds a
// plain http.Server with conservative timeouts.
func (s *RelayServer) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/signal", s)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
		// No WriteTimeout: WebSocket connections are long-lived and
		// manage their own deadlines per frame.
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("relay listening", "addr", addr)
	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
