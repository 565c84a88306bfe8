// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authorization

import (
	"fmt"

	"github.com/bureau-foundation/trustplane/lib/schema"
)

// Request is an access question.
type Request struct {
	Subject  string `json:"subject"`
	Resource string `json:"resource"`
	Action   string `json:"action"`

	// Namespace selects the policies to evaluate. Empty means the
	// subject identity's own namespace.
	Namespace string `json:"namespace,omitempty"`

	// Context carries request attributes for deny rules.
	Context map[string]any `json:"context,omitempty"`
}

// Validate checks the required fields.
func (r Request) Validate() error {
	switch {
	case r.Subject == "":
		return fmt.Errorf("request subject is empty: %w", schema.ErrValidation)
	case r.Resource == "":
		return fmt.Errorf("request resource is empty: %w", schema.ErrValidation)
	case r.Action == "":
		return fmt.Errorf("request action is empty: %w", schema.ErrValidation)
	}
	return nil
}
