// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "strings"

// RoomSeparator joins the two participant identifiers of a RoomID.
const RoomSeparator = "_"

// RoomID identifies the one-to-one conversation between two users.
type RoomID string

// RoomFor returns the canonical room for a pair of users. The canonical
// strings are ordered lexicographically, so RoomFor(a, b) == RoomFor(b, a)
// for every pair. Distinct pairs map to distinct rooms only while
// neither identifier contains RoomSeparator; UserIDOf rejects such
// identifiers, and the portal's ids (integers and hex object ids) never
// contain one.
func RoomFor(a, b UserID) RoomID {
	first, second := string(a), string(b)
	if second < first {
		first, second = second, first
	}
	return RoomID(first + RoomSeparator + second)
}

// RoomForValues coerces both identifiers with UserIDOf before deriving
// the room, so a numeric and a string form of the same identifier
// produce the same room.
func RoomForValues(a, b any) (RoomID, error) {
	first, err := UserIDOf(a)
	if err != nil {
		return "", err
	}
	second, err := UserIDOf(b)
	if err != nil {
		return "", err
	}
	return RoomFor(first, second), nil
}

// String returns the room identifier.
func (r RoomID) String() string { return string(r) }

// IsZero reports whether the RoomID is empty.
func (r RoomID) IsZero() bool { return r == "" }

// Includes reports whether user is one of the room's participants.
func (r RoomID) Includes(user UserID) bool {
	raw := string(r)
	name := string(user)
	if strings.HasPrefix(raw, name+RoomSeparator) {
		other := UserID(raw[len(name)+len(RoomSeparator):])
		return RoomFor(user, other) == r
	}
	if strings.HasSuffix(raw, RoomSeparator+name) {
		other := UserID(raw[:len(raw)-len(name)-len(RoomSeparator)])
		return RoomFor(user, other) == r
	}
	return false
}

// Counterpart returns the participant that is not me. The second return
// value is false when me is not a participant.
func (r RoomID) Counterpart(me UserID) (UserID, bool) {
	raw := string(r)
	name := string(me)
	if strings.HasPrefix(raw, name+RoomSeparator) {
		other := UserID(raw[len(name)+len(RoomSeparator):])
		if RoomFor(me, other) == r {
			return other, true
		}
	}
	if strings.HasSuffix(raw, RoomSeparator+name) {
		other := UserID(raw[:len(raw)-len(name)-len(RoomSeparator)])
		if RoomFor(me, other) == r {
			return other, true
		}
	}
	return "", false
}
