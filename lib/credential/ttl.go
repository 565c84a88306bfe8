// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"time"

	"github.com/bureau-foundation/trustplane/lib/schema"
)

const (
	// MinTTL is the shortest lifetime any credential is issued with.
	MinTTL = time.Minute

	// DefaultTTL applies when the requested TTL is zero or negative.
	DefaultTTL = time.Hour
)

// DocumentCeilings are the maximum document lifetimes per kind. Humans
// are absent: they cannot hold documents.
var DocumentCeilings = map[schema.IdentityKind]time.Duration{
	schema.KindWorkload:       time.Hour,
	schema.KindAIAgent:        4 * time.Hour,
	schema.KindServiceAccount: time.Hour,
}

// TokenCeilings are the maximum token lifetimes per kind.
var TokenCeilings = map[schema.IdentityKind]time.Duration{
	schema.KindHuman:          8 * time.Hour,
	schema.KindAIAgent:        4 * time.Hour,
	schema.KindWorkload:       time.Hour,
	schema.KindServiceAccount: time.Hour,
}

// ClampTTL returns the effective lifetime for a request and whether
// it differs from what was asked for. A non-positive request takes
// defaultTTL without counting as clamped, though defaultTTL itself is
// still bounded. The result is whole seconds, matching the resolution
// of token timestamps; dropping a fractional second is not clamping.
func ClampTTL(requested, defaultTTL, ceiling time.Duration) (time.Duration, bool) {
	ttl := requested
	if ttl <= 0 {
		ttl = defaultTTL
	}
	ttl = ttl.Truncate(time.Second)

	effective := min(max(ttl, MinTTL), ceiling)
	return effective, requested > 0 && effective != ttl
}
