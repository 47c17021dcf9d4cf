// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// SnapshotCompression identifies the compression applied to a
// SyncPush snapshot. The values are protocol constants; changing
// them breaks snapshot compatibility between host and client
// versions.
type SnapshotCompression uint8

const (
	// SnapshotRaw indicates an uncompressed snapshot. Used below
	// CompressThreshold, where zstd overhead outweighs the savings on
	// a board-game state.
	SnapshotRaw SnapshotCompression = 0

	// SnapshotZstd indicates a zstd-compressed snapshot. CBOR game
	// states are repetitive (map keys, seat IDs) and compress well
	// once they outgrow a single network frame.
	SnapshotZstd SnapshotCompression = 1
)

// CompressThreshold is the snapshot size in bytes above which
// EncodeSnapshot switches to zstd.
const CompressThreshold = 4096

// String returns the human-readable name of a compression value.
func (c SnapshotCompression) String() string {
	switch c {
	case SnapshotRaw:
		return "raw"
	case SnapshotZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// snapshotEncoder and snapshotDecoder are reused across calls. Both
// are safe for concurrent use via EncodeAll/DecodeAll with a nil
// destination.
var (
	snapshotEncoder *zstd.Encoder
	snapshotDecoder *zstd.Decoder
)

func init() {
	var err error
	snapshotEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic("wire: zstd encoder initialization failed: " + err.Error())
	}

	snapshotDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("wire: zstd decoder initialization failed: " + err.Error())
	}
}

// EncodeSnapshot prepares state bytes for a SyncPush: states up to
// CompressThreshold ship raw, larger ones ship zstd-compressed.
// Returns the payload and the compression that was applied.
func EncodeSnapshot(state []byte) ([]byte, SnapshotCompression) {
	if len(state) <= CompressThreshold {
		return state, SnapshotRaw
	}
	return snapshotEncoder.EncodeAll(state, nil), SnapshotZstd
}

// DecodeSnapshot reverses EncodeSnapshot on the receiving client.
func DecodeSnapshot(payload []byte, compression SnapshotCompression) ([]byte, error) {
	switch compression {
	case SnapshotRaw:
		return payload, nil
	case SnapshotZstd:
		state, err := snapshotDecoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("decompressing snapshot: %w", err)
		}
		return state, nil
	default:
		return nil, fmt.Errorf("snapshot compression %d outside the closed set", uint8(compression))
	}
}
