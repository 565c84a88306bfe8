// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"fmt"
	"time"
)

// IdentityKind classifies a principal. The kind decides which
// credentials the principal can hold and whether it gets a structured
// identifier.
type IdentityKind string

const (
	KindWorkload       IdentityKind = "workload"
	KindHuman          IdentityKind = "human"
	KindAIAgent        IdentityKind = "ai_agent"
	KindServiceAccount IdentityKind = "service_account"
)

// IdentityKinds lists every kind in declaration order.
var IdentityKinds = []IdentityKind{KindWorkload, KindHuman, KindAIAgent, KindServiceAccount}

// Valid reports whether kind is a known identity kind.
func (k IdentityKind) Valid() bool {
	switch k {
	case KindWorkload, KindHuman, KindAIAgent, KindServiceAccount:
		return true
	}
	return false
}

// PathSegment returns the structured identifier segment that precedes
// the name ("sa" or "agent"). Humans have no structured identifier and
// return "".
func (k IdentityKind) PathSegment() string {
	switch k {
	case KindWorkload, KindServiceAccount:
		return "sa"
	case KindAIAgent:
		return "agent"
	}
	return ""
}

// ParseIdentityKind validates a kind name.
func ParseIdentityKind(name string) (IdentityKind, error) {
	kind := IdentityKind(name)
	if !kind.Valid() {
		return "", fmt.Errorf("unknown identity kind %q: %w", name, ErrValidation)
	}
	return kind, nil
}

// Identity is one registered principal.
type Identity struct {
	// ID is the store-assigned UUID.
	ID string `json:"id"`

	Name      string       `json:"name"`
	Kind      IdentityKind `json:"kind"`
	Namespace string       `json:"namespace"`

	TrustLevel TrustLevel `json:"trust_level"`

	// StructuredID is spiffe://{domain}/ns/{namespace}/{segment}/{name}
	// for non-human kinds and empty for humans. It is derived from
	// the other fields at registration and never changes.
	StructuredID string `json:"structured_id,omitempty"`

	// Contact is an email or similar handle, set for humans only.
	Contact string `json:"contact,omitempty"`

	Labels map[string]string `json:"labels,omitempty"`

	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
}

