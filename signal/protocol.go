// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package signal

// The relay protocol is strict request/response JSON over one
// WebSocket: the client writes a request, the server writes exactly
// one response, in order. No server-initiated frames besides WebSocket
// control frames, so the client can match responses to requests by
// position alone.

// Request kinds.
const (
	kindClaim         = "claim"
	kindRelease       = "release"
	kindPollOffers    = "poll_offers"
	kindPublishAnswer = "publish_answer"
	kindPublishOffer  = "publish_offer"
	kindPollAnswer    = "poll_answer"
)

// Error codes carried in responses.
const (
	errCodeNameClaimed = "name-claimed"
	errCodeNotClaimed  = "not-claimed"
	errCodeBadRequest  = "bad-request"
)

// relayRequest is one client→relay frame. Kind selects the operation;
// the other fields are that operation's arguments.
type relayRequest struct {
	Kind    string `json:"kind"`
	Name    string `json:"name,omitempty"`
	OfferID string `json:"offer_id,omitempty"`
	SDP     string `json:"sdp,omitempty"`
	Offer   *Offer `json:"offer,omitempty"`
}

// relayResponse is one relay→client frame. ErrorCode is empty on
// success.
type relayResponse struct {
	ErrorCode    string  `json:"error_code,omitempty"`
	ErrorMessage string  `json:"error_message,omitempty"`
	Offers       []Offer `json:"offers,omitempty"`
	SDP          string  `json:"sdp,omitempty"`
	Found        bool    `json:"found,omitempty"`
}
