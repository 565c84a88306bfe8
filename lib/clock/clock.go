// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts reading the current time. Production code injects
// Real(); tests inject Fake() with deterministic time control.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the time elapsed since t. Equivalent to
	// Now().Sub(t).
	Since(t time.Time) time.Duration
}

// Or returns c, or Real() if c is nil. Constructors use it to default
// an optional Clock field in their config structs.
func Or(c Clock) Clock {
	if c == nil {
		return Real()
	}
	return c
}
