// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"encoding/hex"
	"fmt"
	"time"
)

// EventKind groups audit events by the subsystem that produced them.
type EventKind string

const (
	EventIdentity   EventKind = "identity"
	EventCredential EventKind = "credential"
	EventPolicy     EventKind = "policy"
	EventDecision   EventKind = "decision"
)

// Outcome is the result recorded by an audit event.
type Outcome string

const (
	OutcomeAllow Outcome = "allow"
	OutcomeDeny  Outcome = "deny"
	OutcomeError Outcome = "error"
)

// Audit action names.
const (
	ActionIdentityRegister   = "identity.register"
	ActionIdentityPromote    = "identity.promote"
	ActionIdentityDeactivate = "identity.deactivate"
	ActionDocumentIssue      = "credential.document.issue"
	ActionTokenIssue         = "credential.token.issue"
	ActionPolicyCreate       = "policy.create"
	ActionPolicyActivate     = "policy.activate"
	ActionPolicyDisable      = "policy.disable"
	ActionDecisionEvaluate   = "decision.evaluate"
)

// AuditEvent is one entry in the append-only audit trail. Sequence,
// PreviousHash, and Hash are assigned by the trail at append time; the
// producer fills in everything else (Timestamp may be left zero to use
// the trail's clock).
type AuditEvent struct {
	Sequence uint64    `json:"sequence"`
	Kind     EventKind `json:"kind"`
	Action   string    `json:"action"`

	// Actor is who caused the event. Decisions use the request subject.
	Actor string `json:"actor,omitempty"`

	// Target describes what the event acted on: an identity ID, a
	// policy ID, or "resource:action" for decisions.
	Target string `json:"target"`

	Namespace string  `json:"namespace,omitempty"`
	Outcome   Outcome `json:"outcome"`
	Reason    string  `json:"reason,omitempty"`

	Timestamp time.Time `json:"timestamp"`

	DecisionID   uint64 `json:"decision_id,omitempty"`
	CredentialID string `json:"credential_id,omitempty"`

	PreviousHash Hash `json:"previous_hash"`
	Hash         Hash `json:"hash"`
}

// Hash is a 32-byte audit chain digest. It text-marshals as lowercase
// hex.
type Hash [32]byte

// IsZero reports whether the hash is all zeroes (the genesis link).
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String returns the hex form.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// MarshalText encodes the hash as hex.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText decodes a 64-character hex hash.
func (h *Hash) UnmarshalText(text []byte) error {
	if hex.DecodedLen(len(text)) != len(h) {
		return fmt.Errorf("hash: want %d hex characters, got %d: %w", 2*len(h), len(text), ErrValidation)
	}
	if _, err := hex.Decode(h[:], text); err != nil {
		return fmt.Errorf("hash: %w", err)
	}
	return nil
}
