// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "time"

// Decision is the immutable outcome of one evaluation.
type Decision struct {
	// ID is monotonically increasing within a process.
	ID uint64 `json:"id"`

	Subject   string         `json:"subject"`
	Resource  string         `json:"resource"`
	Action    string         `json:"action"`
	Namespace string         `json:"namespace"`
	Context   map[string]any `json:"context,omitempty"`

	Allowed bool `json:"allowed"`

	// PolicyID and PolicyName identify the policy that decided the
	// request: the allowing policy, or the policy whose deny rule
	// fired. Both are empty for implicit and fail-closed denies.
	PolicyID   string `json:"policy_id,omitempty"`
	PolicyName string `json:"policy_name,omitempty"`

	Reason string `json:"reason"`

	// TrustLevel is the subject's level at evaluation time. Zero
	// (untrusted) when the subject did not resolve.
	TrustLevel TrustLevel `json:"trust_level"`

	Duration  time.Duration `json:"duration_ns"`
	Timestamp time.Time     `json:"timestamp"`
}

// Outcome returns the audit outcome for the decision.
func (d Decision) Outcome() Outcome {
	if d.Allowed {
		return OutcomeAllow
	}
	return OutcomeDeny
}
