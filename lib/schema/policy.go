// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"fmt"
	"time"
)

// GlobalNamespace is the policy namespace that applies to every
// evaluation namespace.
const GlobalNamespace = "*"

// PolicyStatus is the lifecycle state of a policy. Only active
// policies participate in evaluation.
type PolicyStatus string

const (
	PolicyDraft    PolicyStatus = "draft"
	PolicyActive   PolicyStatus = "active"
	PolicyDisabled PolicyStatus = "disabled"
)

// AccessModel is an informational tag describing the style of policy.
type AccessModel string

const (
	AccessRBAC      AccessModel = "rbac"
	AccessABAC      AccessModel = "abac"
	AccessZeroTrust AccessModel = "zero_trust"
)

// Valid reports whether model is a known access model. The empty
// model is accepted and defaults to zero_trust at creation.
func (m AccessModel) Valid() bool {
	switch m {
	case AccessRBAC, AccessABAC, AccessZeroTrust:
		return true
	}
	return false
}

// PolicyLanguage names the concrete language a policy's Content is
// rendered in. The engine never interprets Content; it evaluates the
// structured predicates only.
type PolicyLanguage string

const (
	LanguageRego       PolicyLanguage = "rego"
	LanguageCedar      PolicyLanguage = "cedar"
	LanguageRBACYAML   PolicyLanguage = "rbac_yaml"
	LanguageIstioAuthz PolicyLanguage = "istio_authz"
)

// Valid reports whether language is a known policy language.
func (l PolicyLanguage) Valid() bool {
	switch l {
	case LanguageRego, LanguageCedar, LanguageRBACYAML, LanguageIstioAuthz:
		return true
	}
	return false
}

// Policy is a stored policy document.
type Policy struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	Status PolicyStatus `json:"status"`

	// Namespace scopes the policy. GlobalNamespace applies everywhere.
	Namespace string `json:"namespace"`

	AccessModel AccessModel    `json:"access_model"`
	Language    PolicyLanguage `json:"language,omitempty"`
	Content     string         `json:"content,omitempty"`

	// Subjects, Resources, and Actions are match patterns. A request
	// must match at least one entry of each. See lib/policy for the
	// pattern grammar.
	Subjects  []string `json:"subjects"`
	Resources []string `json:"resources"`
	Actions   []string `json:"actions"`

	// MinTrust is the lowest identity trust level the policy allows.
	MinTrust TrustLevel `json:"min_trust"`

	// DenyRules are evaluated after a structural match and override
	// the allow when any of them triggers.
	DenyRules []DenyRule `json:"deny_rules,omitempty"`

	Tags      []string  `json:"tags,omitempty"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Version starts at 1 and increments on every status change.
	Version int `json:"version"`

	// Sequence is the store-assigned creation order. Evaluation scans
	// policies by ascending Sequence.
	Sequence uint64 `json:"sequence"`
}

// DenyRule is an explicit-deny predicate. Exactly one of the three
// fields is set.
type DenyRule struct {
	// ContextEquals triggers when the request context holds Key with
	// a value equal to Value.
	ContextEquals *ContextEquals `yaml:"context_equals,omitempty" json:"context_equals,omitempty"`

	// TrustBelow triggers when the identity's trust level is strictly
	// below this floor.
	TrustBelow *TrustLevel `yaml:"trust_below,omitempty" json:"trust_below,omitempty"`

	// Expression is a boolean expr-lang expression over the request.
	Expression string `yaml:"expression,omitempty" json:"expression,omitempty"`
}

// ContextEquals is the payload of a context-equality deny rule.
type ContextEquals struct {
	Key   string `yaml:"key" json:"key"`
	Value any    `yaml:"value" json:"value"`
}

// Validate checks that exactly one predicate is set and that it is
// well formed. Expression syntax is checked by the policy store, which
// owns the compiler.
func (r DenyRule) Validate() error {
	set := 0
	if r.ContextEquals != nil {
		set++
		if r.ContextEquals.Key == "" {
			return fmt.Errorf("deny rule context_equals: empty key: %w", ErrValidation)
		}
	}
	if r.TrustBelow != nil {
		set++
		if !r.TrustBelow.Valid() {
			return fmt.Errorf("deny rule trust_below: %w", ErrValidation)
		}
	}
	if r.Expression != "" {
		set++
	}
	if set != 1 {
		return fmt.Errorf("deny rule must set exactly one predicate, got %d: %w", set, ErrValidation)
	}
	return nil
}

// String describes the rule for decision reasons.
func (r DenyRule) String() string {
	switch {
	case r.ContextEquals != nil:
		return fmt.Sprintf("context.%s == %v", r.ContextEquals.Key, r.ContextEquals.Value)
	case r.TrustBelow != nil:
		return "trust level below " + r.TrustBelow.String()
	case r.Expression != "":
		return r.Expression
	}
	return "empty deny rule"
}

// ContextIs returns a deny rule triggered by context[key] == value.
func ContextIs(key string, value any) DenyRule {
	return DenyRule{ContextEquals: &ContextEquals{Key: key, Value: value}}
}

// TrustFloor returns a deny rule triggered by trust below level.
func TrustFloor(level TrustLevel) DenyRule {
	return DenyRule{TrustBelow: &level}
}

// DenyWhen returns a deny rule triggered by an expression.
func DenyWhen(expression string) DenyRule {
	return DenyRule{Expression: expression}
}
