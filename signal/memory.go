// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package signal

import (
	"context"
	"sync"
)

// Compile-time interface check.
var _ Signaler = (*Memory)(nil)

// Memory is the in-process Signaler. It backs same-process matches and
// tests directly, and holds the broker state inside RelayServer.
type Memory struct {
	mu sync.Mutex

	// claims maps endpoint name → pending offers for the claiming
	// host. A name is claimed iff it has an entry.
	claims map[string][]Offer

	// answers maps offer ID → answer SDP.
	answers map[string]string
}

// NewMemory creates an empty in-process signaler.
func NewMemory() *Memory {
	return &Memory{
		claims:  make(map[string][]Offer),
		answers: make(map[string]string),
	}
}

func (m *Memory) Claim(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.claims[name]; ok {
		return ErrNameClaimed
	}
	m.claims[name] = nil
	return nil
}

func (m *Memory) Release(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.claims, name)
	return nil
}

func (m *Memory) PollOffers(_ context.Context, name string) ([]Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	offers, ok := m.claims[name]
	if !ok || len(offers) == 0 {
		return nil, nil
	}
	m.claims[name] = nil
	return offers, nil
}

func (m *Memory) PublishAnswer(_ context.Context, offerID, sdp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.answers[offerID] = sdp
	return nil
}

func (m *Memory) PublishOffer(_ context.Context, offer Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	offers, ok := m.claims[offer.EndpointName]
	if !ok {
		return ErrNotClaimed
	}
	m.claims[offer.EndpointName] = append(offers, offer)
	return nil
}

func (m *Memory) PollAnswer(_ context.Context, offerID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sdp, ok := m.answers[offerID]
	if !ok {
		return "", false, nil
	}
	delete(m.answers, offerID)
	return sdp, true, nil
}
