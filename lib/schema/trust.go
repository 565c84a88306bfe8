// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "fmt"

// TrustLevel expresses how strongly an identity has been verified.
// Levels are totally ordered by their numeric value, so policy
// preconditions compare with >=.
type TrustLevel uint8

const (
	TrustUntrusted TrustLevel = iota
	TrustLow
	TrustMedium
	TrustHigh
	TrustCritical
)

var trustLevelNames = [...]string{
	TrustUntrusted: "untrusted",
	TrustLow:       "low",
	TrustMedium:    "medium",
	TrustHigh:      "high",
	TrustCritical:  "critical",
}

// String returns the lowercase level name.
func (l TrustLevel) String() string {
	if !l.Valid() {
		return fmt.Sprintf("trust(%d)", uint8(l))
	}
	return trustLevelNames[l]
}

// Valid reports whether level is one of the five defined levels.
func (l TrustLevel) Valid() bool {
	return int(l) < len(trustLevelNames)
}

// AtLeast reports whether level meets the minimum.
func (l TrustLevel) AtLeast(minimum TrustLevel) bool {
	return l >= minimum
}

// MarshalText encodes the level as its name. JSON, YAML, and CBOR all
// pick this up.
func (l TrustLevel) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("trust level %d: %w", uint8(l), ErrValidation)
	}
	return []byte(trustLevelNames[l]), nil
}

// UnmarshalText parses a level name.
func (l *TrustLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseTrustLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseTrustLevel converts a level name into a TrustLevel.
func ParseTrustLevel(name string) (TrustLevel, error) {
	for index, candidate := range trustLevelNames {
		if candidate == name {
			return TrustLevel(index), nil
		}
	}
	return 0, fmt.Errorf("unknown trust level %q: %w", name, ErrValidation)
}
