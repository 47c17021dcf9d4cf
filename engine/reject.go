// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"errors"
	"fmt"
)

// RejectCode classifies why the master refused an action. Rejections
// are expected traffic (a stale client, a retried move), so callers
// branch on the code instead of string-matching.
type RejectCode uint8

const (
	// RejectBadCredentials: the token does not verify for the seat.
	RejectBadCredentials RejectCode = iota + 1

	// RejectUnknownMatch: the match ID has no record and the action
	// cannot create one (only Sync creates).
	RejectUnknownMatch

	// RejectStaleVersion: the update's StateVersion is not the
	// authoritative version. The client should sync and retry.
	RejectStaleVersion

	// RejectOutOfTurn: the acting seat is not the current player.
	RejectOutOfTurn

	// RejectMatchEnded: the match is over; no further moves apply.
	RejectMatchEnded

	// RejectInvalidMove: the game's rules refused the move.
	RejectInvalidMove
)

// String returns the code's name for logs.
func (c RejectCode) String() string {
	switch c {
	case RejectBadCredentials:
		return "bad-credentials"
	case RejectUnknownMatch:
		return "unknown-match"
	case RejectStaleVersion:
		return "stale-version"
	case RejectOutOfTurn:
		return "out-of-turn"
	case RejectMatchEnded:
		return "match-ended"
	case RejectInvalidMove:
		return "invalid-move"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// RejectError reports a refused action. The client sees nothing; it
// recovers through its next sync.
type RejectError struct {
	Code   RejectCode
	Detail string
}

func (e *RejectError) Error() string {
	if e.Detail == "" {
		return "engine: rejected: " + e.Code.String()
	}
	return "engine: rejected: " + e.Code.String() + ": " + e.Detail
}

// reject builds a RejectError with an optional formatted detail.
func reject(code RejectCode, format string, args ...any) *RejectError {
	return &RejectError{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// IsReject reports whether err is a rejection with the given code.
func IsReject(err error, code RejectCode) bool {
	var rejectErr *RejectError
	return errors.As(err, &rejectErr) && rejectErr.Code == code
}
