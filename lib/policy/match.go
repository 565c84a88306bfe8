// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"
	"strings"

	"github.com/bureau-foundation/trustplane/lib/schema"
)

type patternKind uint8

const (
	patternExact patternKind = iota
	patternAny
	patternSegment
	patternPrefix
)

// Pattern is a parsed subject or resource pattern.
type Pattern struct {
	raw    string
	kind   patternKind
	prefix string
}

// ParsePattern parses a subject or resource pattern.
func ParsePattern(raw string) (Pattern, error) {
	if raw == "" {
		return Pattern{}, fmt.Errorf("empty pattern: %w", schema.ErrValidation)
	}
	if raw == "*" {
		return Pattern{raw: raw, kind: patternAny}, nil
	}

	wildcards := strings.Count(raw, "*")
	if wildcards == 0 {
		return Pattern{raw: raw, kind: patternExact}, nil
	}
	if wildcards > 1 || !strings.HasSuffix(raw, "*") {
		return Pattern{}, fmt.Errorf("pattern %q: wildcard is only allowed as the final character: %w", raw, schema.ErrValidation)
	}

	prefix := strings.TrimSuffix(raw, "*")
	if strings.HasSuffix(prefix, "/") {
		return Pattern{raw: raw, kind: patternSegment, prefix: prefix}, nil
	}
	return Pattern{raw: raw, kind: patternPrefix, prefix: prefix}, nil
}

// Match reports whether value matches the pattern.
func (p Pattern) Match(value string) bool {
	switch p.kind {
	case patternAny:
		return true
	case patternSegment:
		return len(value) > len(p.prefix) && strings.HasPrefix(value, p.prefix)
	case patternPrefix:
		return strings.HasPrefix(value, p.prefix)
	default:
		return value == p.raw
	}
}

// String returns the pattern as written.
func (p Pattern) String() string {
	return p.raw
}

// PatternSet is a compiled pattern list. The empty set matches every
// value.
type PatternSet []Pattern

// ParsePatterns compiles a pattern list.
func ParsePatterns(field string, raw []string) (PatternSet, error) {
	set := make(PatternSet, 0, len(raw))
	for _, entry := range raw {
		pattern, err := ParsePattern(entry)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		set = append(set, pattern)
	}
	return set, nil
}

// Match returns the first matching pattern. The empty set matches with
// the pattern "*".
func (ps PatternSet) Match(value string) (string, bool) {
	if len(ps) == 0 {
		return "*", true
	}
	for _, pattern := range ps {
		if pattern.Match(value) {
			return pattern.raw, true
		}
	}
	return "", false
}

// ActionSet is a compiled action list.
type ActionSet struct {
	any     bool
	actions map[string]struct{}
}

// ParseActions compiles an action list. Each entry is an exact token
// or "*".
func ParseActions(raw []string) (ActionSet, error) {
	set := ActionSet{any: len(raw) == 0, actions: make(map[string]struct{}, len(raw))}
	for _, action := range raw {
		switch {
		case action == "*":
			set.any = true
		case action == "":
			return ActionSet{}, fmt.Errorf("actions: empty action: %w", schema.ErrValidation)
		case strings.Contains(action, "*"):
			return ActionSet{}, fmt.Errorf("actions: %q: only exact actions or * are allowed: %w", action, schema.ErrValidation)
		default:
			set.actions[action] = struct{}{}
		}
	}
	return set, nil
}

// Match reports whether action is in the set.
func (as ActionSet) Match(action string) bool {
	if as.any {
		return true
	}
	_, ok := as.actions[action]
	return ok
}
