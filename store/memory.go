// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"sync"

	"github.com/parlor-foundation/parlor/wire"
)

// Compile-time interface check.
var _ MatchStore = (*Memory)(nil)

// Memory is the in-process MatchStore. Matches vanish when the host
// process exits; casual hosting and tests want exactly that.
type Memory struct {
	mu      sync.Mutex
	records map[wire.MatchID]*Record
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[wire.MatchID]*Record)}
}

func (m *Memory) Create(_ context.Context, record *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[record.MatchID]; ok {
		return ErrExists
	}
	m.records[record.MatchID] = record.Clone()
	return nil
}

func (m *Memory) Get(_ context.Context, matchID wire.MatchID) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[matchID]
	if !ok {
		return nil, ErrNotFound
	}
	return record.Clone(), nil
}

func (m *Memory) Put(_ context.Context, record *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[record.MatchID]; !ok {
		return ErrNotFound
	}
	m.records[record.MatchID] = record.Clone()
	return nil
}

func (m *Memory) Delete(_ context.Context, matchID wire.MatchID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, matchID)
	return nil
}
