// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"
	"strings"
)

// MatchID identifies one authoritative match session. Opaque to the
// transport; the reference tooling mints UUIDv4 strings but any
// non-empty string without "/" works.
type MatchID string

// IsZero reports whether the ID is unset.
func (id MatchID) IsZero() bool { return id == "" }

func (id MatchID) String() string { return string(id) }

// PlayerID identifies a seat within a match. Seats are conventionally
// the decimal strings "0", "1", ... with seat "0" designating the
// match creator, but the transport treats them as opaque.
type PlayerID string

// IsZero reports whether the ID is unset.
func (id PlayerID) IsZero() bool { return id == "" }

func (id PlayerID) String() string { return string(id) }

// Credentials is the opaque token proving a player's right to act in a
// match. It rides on every mutating action and is checked only by the
// authoritative engine; the routing layer never inspects it.
type Credentials string

// IsZero reports whether no token is set.
func (c Credentials) IsZero() bool { return c == "" }

// Metadata is the per-connection descriptor a client presents when it
// connects to a host. It travels in the signaling offer and is echoed
// into the host's client registration. Exactly one PlayerID; two live
// connections may legally carry the same PlayerID (a second screen
// spectating a seat) and are routed independently.
type Metadata struct {
	PlayerID PlayerID `cbor:"1,keyasint" json:"playerID"`
}

// namespacePrefix is the leading component of every endpoint name.
// Part of the wire contract; changing it strands every client on the
// old address scheme.
const namespacePrefix = "parlor"

// EndpointName derives the deterministic listening-endpoint name for a
// match: "parlor-<gameName>-matchid-<matchID>". Hosts listen on it,
// clients dial it; both sides must compute the identical string, so
// the format is fixed.
func EndpointName(gameName string, matchID MatchID) string {
	return fmt.Sprintf("%s-%s-matchid-%s", namespacePrefix, gameName, matchID)
}

// ValidateGameName rejects game names that would make endpoint names
// ambiguous or unprintable. Letters, digits, and hyphens only; the
// "-matchid-" separator stays unambiguous because game names cannot
// contain the word boundary pattern used by EndpointName.
func ValidateGameName(name string) error {
	if name == "" {
		return fmt.Errorf("game name is empty")
	}
	if strings.Contains(name, "-matchid-") {
		return fmt.Errorf("game name %q contains reserved separator %q", name, "-matchid-")
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return fmt.Errorf("game name %q contains invalid character %q", name, r)
		}
	}
	return nil
}
