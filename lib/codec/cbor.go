// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding. Initialized once; encoding options are never changed at
// runtime because snapshot bytes must stay comparable for the lifetime
// of a match.
var encMode cbor.EncMode

// decMode is the CBOR decoder. Unknown fields are ignored for forward
// compatibility between hosts and clients on different versions.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Parlor wire maps always use string keys. When the decode
		// target is any (game states are opaque to the transport), the
		// decoder must pick a concrete map type; the CBOR default of
		// map[interface{}]interface{} is unusable by ordinary Go code,
		// so force map[string]any. Struct decoding is unaffected.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// RawMessage is a raw encoded CBOR value. Use it to carry opaque game
// moves and states through the transport without decoding them, and to
// delay decoding until the game type is known.
type RawMessage = cbor.RawMessage
