// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"

	"github.com/parlor-foundation/parlor/lib/codec"
)

// ActionKind tags the variants of the client-to-host Action union.
// The set is closed: the router dispatches with an exhaustive switch,
// and a kind outside this set is a protocol violation, not an
// extension point.
type ActionKind uint8

const (
	// ActionUpdate applies a game move against a specific state
	// version.
	ActionUpdate ActionKind = 1

	// ActionChat broadcasts a chat message to every connected client.
	ActionChat ActionKind = 2

	// ActionSync requests a full snapshot of the match state, creating
	// the match on first sync.
	ActionSync ActionKind = 3
)

// String returns the kind's wire name for logs.
func (k ActionKind) String() string {
	switch k {
	case ActionUpdate:
		return "update"
	case ActionChat:
		return "chat"
	case ActionSync:
		return "sync"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Move is a game move together with the acting player's token. Name
// selects the move in the game's rule set; Args is opaque to
// everything except the game implementation. Credentials ride inside
// the move because a move is a mutating action.
type Move struct {
	Name        string           `cbor:"1,keyasint"`
	Args        codec.RawMessage `cbor:"2,keyasint,omitempty"`
	Credentials Credentials      `cbor:"3,keyasint,omitempty"`
}

// Update carries one move to apply. StateVersion is the version the
// client applied the move against; the engine rejects the update when
// it no longer matches the authoritative version.
type Update struct {
	Move         Move     `cbor:"1,keyasint"`
	StateVersion uint64   `cbor:"2,keyasint"`
	MatchID      MatchID  `cbor:"3,keyasint"`
	PlayerID     PlayerID `cbor:"4,keyasint"`
}

// ChatMessage is one chat entry. ID is client-assigned (the engine
// broadcasts it unchanged) so a sender can recognize its own message
// coming back.
type ChatMessage struct {
	ID     string   `cbor:"1,keyasint"`
	Sender PlayerID `cbor:"2,keyasint"`
	Body   string   `cbor:"3,keyasint"`
}

// Chat carries one chat message for broadcast.
type Chat struct {
	MatchID     MatchID     `cbor:"1,keyasint"`
	Message     ChatMessage `cbor:"2,keyasint"`
	Credentials Credentials `cbor:"3,keyasint,omitempty"`
}

// Sync requests the authoritative snapshot for one player. NumPlayers
// is used only when the sync creates the match (first sync on a fresh
// match ID); afterwards the stored player count wins.
type Sync struct {
	MatchID     MatchID     `cbor:"1,keyasint"`
	PlayerID    PlayerID    `cbor:"2,keyasint"`
	Credentials Credentials `cbor:"3,keyasint,omitempty"`
	NumPlayers  int         `cbor:"4,keyasint,omitempty"`
}

// Action is the tagged union sent from a client (or the host's own
// loopback) to the host router. Exactly one variant field matching
// Kind is non-nil; Validate enforces the invariant at decode
// boundaries.
type Action struct {
	Kind   ActionKind `cbor:"1,keyasint"`
	Update *Update    `cbor:"2,keyasint,omitempty"`
	Chat   *Chat      `cbor:"3,keyasint,omitempty"`
	Sync   *Sync      `cbor:"4,keyasint,omitempty"`
}

// NewUpdate wraps an Update into a tagged Action.
func NewUpdate(u Update) Action { return Action{Kind: ActionUpdate, Update: &u} }

// NewChat wraps a Chat into a tagged Action.
func NewChat(c Chat) Action { return Action{Kind: ActionChat, Chat: &c} }

// NewSync wraps a Sync into a tagged Action.
func NewSync(s Sync) Action { return Action{Kind: ActionSync, Sync: &s} }

// Validate checks that the action carries exactly the variant its tag
// names. Decoders call this before dispatch so a malformed frame is
// rejected in one place.
func (a Action) Validate() error {
	var want string
	populated := 0
	if a.Update != nil {
		populated++
	}
	if a.Chat != nil {
		populated++
	}
	if a.Sync != nil {
		populated++
	}

	switch a.Kind {
	case ActionUpdate:
		if a.Update == nil {
			want = "update"
		}
	case ActionChat:
		if a.Chat == nil {
			want = "chat"
		}
	case ActionSync:
		if a.Sync == nil {
			want = "sync"
		}
	default:
		return fmt.Errorf("action kind %d outside the closed set", uint8(a.Kind))
	}

	if want != "" {
		return fmt.Errorf("action tagged %s is missing its %s payload", a.Kind, want)
	}
	if populated != 1 {
		return fmt.Errorf("action tagged %s carries %d payloads, want exactly 1", a.Kind, populated)
	}
	return nil
}

// EncodeAction marshals an action for transmission.
func EncodeAction(a Action) ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("encoding action: %w", err)
	}
	data, err := codec.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encoding %s action: %w", a.Kind, err)
	}
	return data, nil
}

// DecodeAction unmarshals and validates an action frame received from
// a connection.
func DecodeAction(data []byte) (Action, error) {
	var a Action
	if err := codec.Unmarshal(data, &a); err != nil {
		return Action{}, fmt.Errorf("decoding action frame: %w", err)
	}
	if err := a.Validate(); err != nil {
		return Action{}, err
	}
	return a, nil
}
