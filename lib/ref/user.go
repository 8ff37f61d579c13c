// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// UserID is the canonical string form of a portal user identifier.
// The zero value is not valid; use IsZero to check.
type UserID string

// UserIDOf coerces a stable identifier of any supported representation
// into its canonical UserID. Strings are trimmed; integers of every
// width and integral json.Number values are formatted in base 10;
// fmt.Stringer values use their String form. Returns an error for empty
// values, for values containing RoomSeparator, and for kinds that have
// no stable textual form (floats, maps, slices).
func UserIDOf(value any) (UserID, error) {
	var raw string
	switch typed := value.(type) {
	case UserID:
		raw = string(typed)
	case string:
		raw = typed
	case json.Number:
		if strings.ContainsAny(typed.String(), ".eE") {
			return "", fmt.Errorf("ref: non-integer user identifier %s", typed)
		}
		raw = typed.String()
	case int:
		raw = strconv.FormatInt(int64(typed), 10)
	case int8:
		raw = strconv.FormatInt(int64(typed), 10)
	case int16:
		raw = strconv.FormatInt(int64(typed), 10)
	case int32:
		raw = strconv.FormatInt(int64(typed), 10)
	case int64:
		raw = strconv.FormatInt(typed, 10)
	case uint:
		raw = strconv.FormatUint(uint64(typed), 10)
	case uint8:
		raw = strconv.FormatUint(uint64(typed), 10)
	case uint16:
		raw = strconv.FormatUint(uint64(typed), 10)
	case uint32:
		raw = strconv.FormatUint(uint64(typed), 10)
	case uint64:
		raw = strconv.FormatUint(typed, 10)
	case fmt.Stringer:
		raw = typed.String()
	case nil:
		return "", fmt.Errorf("ref: nil user identifier")
	default:
		return "", fmt.Errorf("ref: unsupported user identifier type %T", value)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("ref: empty user identifier")
	}
	if strings.Contains(raw, RoomSeparator) {
		return "", fmt.Errorf("ref: user identifier %q contains the room separator %q", raw, RoomSeparator)
	}
	return UserID(raw), nil
}

// MustUserID is UserIDOf for values known to be valid (tests, constants).
// Panics on error.
func MustUserID(value any) UserID {
	id, err := UserIDOf(value)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the canonical identifier.
func (u UserID) String() string { return string(u) }

// IsZero reports whether the UserID is empty.
func (u UserID) IsZero() bool { return u == "" }

// UnmarshalJSON accepts both JSON strings and JSON numbers. Backends
// that store identifiers as integers emit numbers; the canonical form is
// the same either way.
func (u *UserID) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(strings.NewReader(string(data)))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return fmt.Errorf("ref: decoding user identifier: %w", err)
	}
	if value == nil {
		*u = ""
		return nil
	}
	id, err := UserIDOf(value)
	if err != nil {
		return err
	}
	*u = id
	return nil
}
