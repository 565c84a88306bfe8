// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"regexp"
	"slices"
	"strings"

	"github.com/bureau-foundation/trustplane/lib/schema"
)

// Coverage scores reported by Validate.
const (
	CoverageComplete = 1.0
	CoveragePartial  = 0.8
	CoverageNone     = 0.0
)

// ValidationReport is the result of a static policy review. Errors
// make the policy unusable; warnings flag policies that are legal but
// likely broader than intended.
type ValidationReport struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Coverage float64  `json:"coverage"`
}

var (
	regoPackage  = regexp.MustCompile(`(?m)^\s*package\s+\S+`)
	regoDecision = regexp.MustCompile(`\b(allow|deny)\b`)
	cedarEffect  = regexp.MustCompile(`\b(permit|forbid)\s*\(`)
)

// Validate reviews a policy without storing it. It runs the same
// checks as Store.Create, then inspects the content for the declared
// language. Content is descriptive only; the engine never executes it.
func Validate(policy schema.Policy) ValidationReport {
	report := ValidationReport{Errors: []string{}, Warnings: []string{}}

	if policy.AccessModel == "" {
		policy.AccessModel = schema.AccessZeroTrust
	}
	if err := check(policy); err != nil {
		report.Errors = append(report.Errors, err.Error())
	}
	if _, err := Compile(policy); err != nil {
		report.Errors = append(report.Errors, err.Error())
	}

	if len(policy.Subjects) == 0 || slices.Contains(policy.Subjects, "*") {
		report.Warnings = append(report.Warnings, "matches every subject; policy may be overly broad")
	}
	if len(policy.Resources) == 0 || slices.Contains(policy.Resources, "*") {
		report.Warnings = append(report.Warnings, "matches every resource; policy may be overly broad")
	}
	if policy.Namespace == schema.GlobalNamespace && policy.MinTrust == schema.TrustUntrusted {
		report.Warnings = append(report.Warnings, "global policy admits untrusted identities")
	}

	if policy.Language != "" {
		content := strings.TrimSpace(policy.Content)
		switch {
		case content == "":
			report.Errors = append(report.Errors, "policy content is empty")
		case policy.Language == schema.LanguageRego:
			if !regoPackage.MatchString(content) {
				report.Errors = append(report.Errors, "rego policy must declare a package")
			}
			if !regoDecision.MatchString(content) {
				report.Warnings = append(report.Warnings, "rego policy defines no allow or deny rule")
			}
		case policy.Language == schema.LanguageCedar:
			if !cedarEffect.MatchString(content) {
				report.Errors = append(report.Errors, "cedar policy must contain a permit or forbid statement")
			}
		}
	}

	report.Valid = len(report.Errors) == 0
	switch {
	case !report.Valid:
		report.Coverage = CoverageNone
	case len(report.Warnings) > 0:
		report.Coverage = CoveragePartial
	default:
		report.Coverage = CoverageComplete
	}
	return report
}
