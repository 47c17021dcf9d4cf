// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"

	"github.com/parlor-foundation/parlor/lib/codec"
)

// PushKind tags the variants of the host-to-client Push union.
type PushKind uint8

const (
	// PushState carries a per-player view of the match state after an
	// update was applied.
	PushState PushKind = 1

	// PushSync carries a full snapshot in answer to a Sync action.
	PushSync PushKind = 2

	// PushChat broadcasts one chat message.
	PushChat PushKind = 3

	// PushPresence broadcasts per-seat connectivity.
	PushPresence PushKind = 4
)

// String returns the kind's wire name for logs.
func (k PushKind) String() string {
	switch k {
	case PushState:
		return "state"
	case PushSync:
		return "sync"
	case PushChat:
		return "chat"
	case PushPresence:
		return "presence"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// StatePush is the incremental result of one applied move: the
// receiving player's view of the new state, already redacted by the
// game's PlayerView.
type StatePush struct {
	MatchID MatchID          `cbor:"1,keyasint"`
	Version uint64           `cbor:"2,keyasint"`
	View    codec.RawMessage `cbor:"3,keyasint"`

	// Ended and Outcome report match completion. Outcome is the
	// game's human-readable result ("winner 0", "draw") and is empty
	// while the match is live.
	Ended   bool   `cbor:"4,keyasint,omitempty"`
	Outcome string `cbor:"5,keyasint,omitempty"`
}

// SyncPush is the full snapshot answering a Sync action. Snapshot is
// the CBOR encoding of the requesting player's view, compressed
// according to Compression (see snapshot.go). It always reflects the
// version it names, so a client can discard any state it held before.
type SyncPush struct {
	MatchID     MatchID             `cbor:"1,keyasint"`
	Version     uint64              `cbor:"2,keyasint"`
	Compression SnapshotCompression `cbor:"3,keyasint"`
	Snapshot    []byte              `cbor:"4,keyasint"`

	Ended   bool   `cbor:"5,keyasint,omitempty"`
	Outcome string `cbor:"6,keyasint,omitempty"`
}

// ChatPush broadcasts one chat message to every client.
type ChatPush struct {
	MatchID MatchID     `cbor:"1,keyasint"`
	Message ChatMessage `cbor:"2,keyasint"`
}

// SeatPresence is one seat's connectivity as the host sees it. A seat
// counts as connected while at least one of its connections is live.
type SeatPresence struct {
	PlayerID  PlayerID `cbor:"1,keyasint"`
	Connected bool     `cbor:"2,keyasint"`
}

// PresencePush broadcasts the connectivity of every seat after a
// connection opens or closes.
type PresencePush struct {
	MatchID MatchID        `cbor:"1,keyasint"`
	Seats   []SeatPresence `cbor:"2,keyasint"`
}

// Push is the tagged union delivered from the host to clients.
// Exactly one variant field matching Kind is non-nil.
type Push struct {
	Kind     PushKind      `cbor:"1,keyasint"`
	State    *StatePush    `cbor:"2,keyasint,omitempty"`
	Sync     *SyncPush     `cbor:"3,keyasint,omitempty"`
	Chat     *ChatPush     `cbor:"4,keyasint,omitempty"`
	Presence *PresencePush `cbor:"5,keyasint,omitempty"`
}

// NewStatePush wraps a StatePush into a tagged Push.
func NewStatePush(p StatePush) Push { return Push{Kind: PushState, State: &p} }

// NewSyncPush wraps a SyncPush into a tagged Push.
func NewSyncPush(p SyncPush) Push { return Push{Kind: PushSync, Sync: &p} }

// NewChatPush wraps a ChatPush into a tagged Push.
func NewChatPush(p ChatPush) Push { return Push{Kind: PushChat, Chat: &p} }

// NewPresencePush wraps a PresencePush into a tagged Push.
func NewPresencePush(p PresencePush) Push { return Push{Kind: PushPresence, Presence: &p} }

// Validate checks that the push carries exactly the variant its tag
// names.
func (p Push) Validate() error {
	var want string
	populated := 0
	if p.State != nil {
		populated++
	}
	if p.Sync != nil {
		populated++
	}
	if p.Chat != nil {
		populated++
	}
	if p.Presence != nil {
		populated++
	}

	switch p.Kind {
	case PushState:
		if p.State == nil {
			want = "state"
		}
	case PushSync:
		if p.Sync == nil {
			want = "sync"
		}
	case PushChat:
		if p.Chat == nil {
			want = "chat"
		}
	case PushPresence:
		if p.Presence == nil {
			want = "presence"
		}
	default:
		return fmt.Errorf("push kind %d outside the closed set", uint8(p.Kind))
	}

	if want != "" {
		return fmt.Errorf("push tagged %s is missing its %s payload", p.Kind, want)
	}
	if populated != 1 {
		return fmt.Errorf("push tagged %s carries %d payloads, want exactly 1", p.Kind, populated)
	}
	return nil
}

// EncodePush marshals a push for delivery.
func EncodePush(p Push) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("encoding push: %w", err)
	}
	data, err := codec.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding %s push: %w", p.Kind, err)
	}
	return data, nil
}

// DecodePush unmarshals and validates a push frame received from the
// host.
func DecodePush(data []byte) (Push, error) {
	var p Push
	if err := codec.Unmarshal(data, &p); err != nil {
		return Push{}, fmt.Errorf("decoding push frame: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Push{}, err
	}
	return p, nil
}
