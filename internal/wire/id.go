// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wire implements the newline-delimited JSON-RPC 2.0 framing used
// on both the downstream (client-facing) and upstream (subprocess-facing)
// sides of the bridge.
package wire

import (
	"encoding/json"
	"fmt"
)

// ID is a JSON-RPC request identifier: a string, a number, or null.
// A zero ID is invalid and represents the absence of an id (a notification).
type ID struct {
	value any
}

// StringID creates a string request identifier.
func StringID(s string) ID { return ID{value: s} }

// IntID creates a numeric request identifier.
func IntID(i int64) ID { return ID{value: i} }

// NullID returns the explicit JSON null identifier, distinct from the zero
// value (no identifier at all): it marshals to "id":null rather than
// omitting the field.
func NullID() ID { return ID{value: jsonNull{}} }

type jsonNull struct{}

// IsValid reports whether id carries a concrete value (string, number, or
// explicit null) as opposed to being entirely absent.
func (id ID) IsValid() bool { return id.value != nil }

// IsNull reports whether id is the explicit JSON null identifier.
func (id ID) IsNull() bool {
	_, ok := id.value.(jsonNull)
	return ok
}

// Raw returns the underlying value: string, int64, nil (explicit null), or
// nil (absent) — use IsValid/IsNull to disambiguate the latter two.
func (id ID) Raw() any {
	if id.IsNull() {
		return nil
	}
	return id.value
}

// MakeID coerces a decoded JSON value (nil, float64, string, or bool) into an
// ID. boolean ids are strictly rejected.
func MakeID(v any) (ID, error) {
	switch v := v.(type) {
	case nil:
		return NullID(), nil
	case float64:
		return IntID(int64(v)), nil
	case string:
		return StringID(v), nil
	case bool:
		return ID{}, fmt.Errorf("invalid request id: boolean is not a valid id type")
	default:
		return ID{}, fmt.Errorf("invalid request id type %T", v)
	}
}

func (id ID) MarshalJSON() ([]byte, error) {
	if !id.IsValid() {
		return []byte("null"), nil
	}
	if id.IsNull() {
		return []byte("null"), nil
	}
	return json.Marshal(id.value)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	coerced, err := MakeID(v)
	if err != nil {
		return err
	}
	*id = coerced
	return nil
}

func (id ID) String() string {
	if !id.IsValid() {
		return "<absent>"
	}
	if id.IsNull() {
		return "null"
	}
	return fmt.Sprintf("%v", id.value)
}
