// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire defines the messages that cross a peer connection.
//
// Clients send [Action] values to the host: a closed tagged union of
// Update (apply a move), Chat (broadcast a message), and Sync (request
// a full snapshot). The host answers with [Push] values: per-player
// state views, match snapshots, chat broadcasts, and presence changes.
// Both directions are encoded with lib/codec's deterministic CBOR.
//
// The union is closed by construction: [ActionKind] and [PushKind]
// enumerate every legal tag, and the dispatch sites switch over them
// exhaustively. Extending the protocol means adding a kind constant,
// a payload struct, and a case at each dispatch site together.
//
// [EndpointName] derives the host's listening address from the game
// name and match ID. The format is a wire-level compatibility
// contract: every client computes the host's address locally, so no
// discovery step exists to paper over a mismatch.
//
// Game moves and game states pass through as [codec.RawMessage]. The
// transport never decodes them; only the game implementation on the
// host and the application on each client know their shape.
package wire
