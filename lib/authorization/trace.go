// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authorization

import (
	"fmt"

	"github.com/bureau-foundation/trustplane/lib/schema"
)

// StepResult is how one policy fared against a request.
type StepResult int

const (
	// StepNotReached means an earlier policy decided the request.
	StepNotReached StepResult = iota

	StepSubjectMismatch
	StepResourceMismatch
	StepActionMismatch

	// StepTrustTooLow means the patterns matched but the identity's
	// trust level is below the policy minimum.
	StepTrustTooLow

	// StepExplicitDeny means the policy matched and one of its deny
	// rules triggered.
	StepExplicitDeny

	// StepAllow means the policy matched and allowed the request.
	StepAllow
)

var stepResultNames = [...]string{
	StepNotReached:       "not reached",
	StepSubjectMismatch:  "subject mismatch",
	StepResourceMismatch: "resource mismatch",
	StepActionMismatch:   "action mismatch",
	StepTrustTooLow:      "trust too low",
	StepExplicitDeny:     "explicit deny",
	StepAllow:            "allow",
}

func (r StepResult) String() string {
	if r < 0 || int(r) >= len(stepResultNames) {
		return fmt.Sprintf("step(%d)", int(r))
	}
	return stepResultNames[r]
}

// MarshalText renders the result name in JSON traces.
func (r StepResult) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Step records one candidate policy's evaluation.
type Step struct {
	PolicyID   string     `json:"policy_id"`
	PolicyName string     `json:"policy_name"`
	Result     StepResult `json:"result"`

	// SubjectPattern and ResourcePattern are the patterns that
	// matched, as far as evaluation got.
	SubjectPattern  string `json:"subject_pattern,omitempty"`
	ResourcePattern string `json:"resource_pattern,omitempty"`

	DenyRule string `json:"deny_rule,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Trace is the full account of an evaluation.
type Trace struct {
	Request   Request `json:"request"`
	Namespace string  `json:"namespace"`

	// Identity is the record the subject resolved to, active or not.
	// Resolved is true only for an active identity.
	Identity *schema.Identity `json:"identity,omitempty"`
	Resolved bool             `json:"resolved"`

	// Steps lists every candidate policy in evaluation order. Empty
	// when the subject did not resolve.
	Steps []Step `json:"steps"`

	Allowed    bool   `json:"allowed"`
	PolicyID   string `json:"policy_id,omitempty"`
	PolicyName string `json:"policy_name,omitempty"`
	Reason     string `json:"reason"`
}
