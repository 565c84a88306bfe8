// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds key material outside the Go heap.
//
// A [Buffer] is an anonymous mmap region that is mlocked (never
// swapped), marked MADV_DONTDUMP (absent from core dumps), and zeroed
// and unmapped on Close. The garbage collector never sees it, so the
// document signing key, the token master secret, and the derived HMAC
// key never leave copies behind in heap memory.
//
//   - [New] allocates a zero-filled buffer
//   - [NewFromBytes] moves a heap slice into a buffer and zeroes the slice
//   - [ReadFromPath] reads a secret from a file or stdin
//
// Access after Close panics. Close is idempotent.
package secret
