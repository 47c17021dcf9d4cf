// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/parlor-foundation/parlor/wire"
)

// SecretSize is the required host secret length in bytes, matching the
// BLAKE3 keyed-mode key size.
const SecretSize = 32

// tokenSize is the derived token length in bytes. 16 bytes (32 hex
// characters) keeps invite strings typeable while leaving forgery a
// 2^128 search.
const tokenSize = 16

// seatDomainKey separates seat-token derivation from any other use of
// BLAKE3 in the process. The bytes are the ASCII domain name,
// zero-padded to 32: readable in a hex dump, opaque to the hash.
var seatDomainKey = [32]byte{
	'p', 'a', 'r', 'l', 'o', 'r', '.', 'c', 'r', 'e', 'd', 'e', 'n', 't', 'i', 'a',
	'l', '.', 's', 'e', 'a', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Issuer derives and verifies seat tokens under one host secret. The
// zero value is unusable; construct with NewIssuer or GenerateIssuer.
type Issuer struct {
	secret [SecretSize]byte
}

// NewIssuer creates an issuer from an existing host secret. The secret
// must be exactly SecretSize bytes; anything shorter weakens every
// derived token, so it is rejected rather than padded.
func NewIssuer(secret []byte) (*Issuer, error) {
	if len(secret) != SecretSize {
		return nil, fmt.Errorf("host secret is %d bytes, want %d", len(secret), SecretSize)
	}
	issuer := &Issuer{}
	copy(issuer.secret[:], secret)
	return issuer, nil
}

// GenerateIssuer creates an issuer with a fresh random secret. Use for
// casual hosting where invites only need to outlive the process; a
// host that persists matches should persist the secret too and use
// NewIssuer.
func GenerateIssuer() (*Issuer, error) {
	var secret [SecretSize]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return nil, fmt.Errorf("generating host secret: %w", err)
	}
	return &Issuer{secret: secret}, nil
}

// Secret returns the host secret in hex for persistence. Treat the
// result like a password: anyone holding it can mint tokens for every
// seat of every match this host runs.
func (i *Issuer) Secret() string {
	return hex.EncodeToString(i.secret[:])
}

// ParseSecret decodes a hex-encoded host secret as produced by Secret.
func ParseSecret(hexSecret string) ([]byte, error) {
	secret, err := hex.DecodeString(hexSecret)
	if err != nil {
		return nil, fmt.Errorf("parsing host secret: %w", err)
	}
	if len(secret) != SecretSize {
		return nil, fmt.Errorf("host secret is %d bytes, want %d", len(secret), SecretSize)
	}
	return secret, nil
}

// Issue derives the token for one seat of one match. Deterministic:
// the same issuer, match, and seat always yield the same token.
func (i *Issuer) Issue(matchID wire.MatchID, playerID wire.PlayerID) wire.Credentials {
	return wire.Credentials(hex.EncodeToString(i.derive(matchID, playerID)))
}

// Verify reports whether token is the credential for the given seat.
// Comparison is constant-time; a forged token learns nothing from
// timing. Empty tokens never verify.
func (i *Issuer) Verify(matchID wire.MatchID, playerID wire.PlayerID, token wire.Credentials) bool {
	if token.IsZero() {
		return false
	}
	presented, err := hex.DecodeString(string(token))
	if err != nil || len(presented) != tokenSize {
		return false
	}
	expected := i.derive(matchID, playerID)
	return subtle.ConstantTimeCompare(presented, expected) == 1
}

// derive computes the keyed hash chain: domain key over the host
// secret yields the per-host key; that key over "matchID\x00playerID"
// yields the token bytes. The NUL separator keeps (m, p) pairs
// unambiguous; match IDs cannot contain NUL because UUIDs and
// reasonable opaque strings never do, and a hostile local caller only
// collides tokens it could already request.
func (i *Issuer) derive(matchID wire.MatchID, playerID wire.PlayerID) []byte {
	outer, err := blake3.NewKeyed(seatDomainKey[:])
	if err != nil {
		panic("credential: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	outer.Write(i.secret[:])
	hostKey := outer.Sum(nil)

	inner, err := blake3.NewKeyed(hostKey)
	if err != nil {
		panic("credential: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	inner.Write([]byte(matchID))
	inner.Write([]byte{0})
	inner.Write([]byte(playerID))
	return inner.Sum(nil)[:tokenSize]
}

// NewMatchID mints a fresh random match identifier (UUIDv4).
func NewMatchID() wire.MatchID {
	return wire.MatchID(uuid.NewString())
}
