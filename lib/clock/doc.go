// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for testability.
//
// Every component that stamps records with a time (identity creation,
// credential issuance and expiry, audit timestamps, decision duration)
// takes a Clock instead of calling time.Now directly. In production,
// Real() provides the standard library behavior. In tests, Fake()
// provides a clock that moves only when Advance or Set is called, so
// expiry boundaries and audit ordering can be checked exactly.
//
// # Wiring Pattern
//
// Add a Clock field to structs that use time:
//
//	type Issuer struct {
//	    clock clock.Clock
//	    // ...
//	}
//
// In production:
//
//	issuer := &Issuer{clock: clock.Real()}
//
// In tests:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	issuer := &Issuer{clock: c}
//	c.Advance(time.Hour) // every credential with a 1h TTL is now expired
//
// The core never schedules timers: nothing in the control plane runs in
// the background, so the interface is limited to reading time.
package clock
