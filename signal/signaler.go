// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package signal

import (
	"context"
	"errors"

	"github.com/parlor-foundation/parlor/wire"
)

// ErrNameClaimed is returned by Claim when another host already holds
// the endpoint name. Two processes deciding they are the host of the
// same match is a configuration error; the second claim loses.
var ErrNameClaimed = errors.New("signal: endpoint name already claimed")

// ErrNotClaimed is returned by PublishOffer when no host has claimed
// the target name. The client should treat it as a dial failure: the
// host is not (yet) listening.
var ErrNotClaimed = errors.New("signal: endpoint name not claimed")

// Offer is a client's complete SDP offer addressed to an endpoint
// name.
type Offer struct {
	// OfferID is a client-minted unique ID. The answer is keyed by it,
	// and both sides reuse it as the connection ID.
	OfferID string `json:"offer_id"`

	// EndpointName is the deterministic name of the host being dialed.
	EndpointName string `json:"endpoint_name"`

	// SDP is the complete session description with all ICE candidates
	// embedded.
	SDP string `json:"sdp"`

	// Metadata is the dialing client's registration metadata, carried
	// here so the host knows the seat before any game traffic flows.
	Metadata wire.Metadata `json:"metadata"`
}

// Signaler is the offer/answer exchange between one host and its
// clients. Hosts call Claim, PollOffers, PublishAnswer, and Release;
// clients call PublishOffer and PollAnswer.
//
// Polls consume: a message is returned to exactly one poll. Per
// endpoint name there is exactly one legitimate consumer (the claiming
// host), and per offer ID exactly one (the offerer), so consuming
// polls need no read-tracking.
type Signaler interface {
	// Claim registers this caller as the host behind name. Returns
	// ErrNameClaimed if the name is already held.
	Claim(ctx context.Context, name string) error

	// Release frees a claimed name and drops its pending offers.
	// Releasing an unclaimed name is a no-op.
	Release(ctx context.Context, name string) error

	// PollOffers returns and consumes the offers addressed to name
	// since the previous poll. Empty result, nil error when there are
	// none.
	PollOffers(ctx context.Context, name string) ([]Offer, error)

	// PublishAnswer publishes the SDP answer for one offer.
	PublishAnswer(ctx context.Context, offerID, sdp string) error

	// PublishOffer publishes a client offer addressed to
	// offer.EndpointName. Returns ErrNotClaimed if no host holds the
	// name.
	PublishOffer(ctx context.Context, offer Offer) error

	// PollAnswer returns the answer SDP for offerID if one has been
	// published, consuming it. found is false while the host has not
	// answered yet.
	PollAnswer(ctx context.Context, offerID string) (sdp string, found bool, err error)
}
