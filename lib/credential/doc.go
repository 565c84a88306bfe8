// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package credential issues short-lived credentials derived from
// identity records.
//
// Two credential kinds exist:
//
//   - [Document]: a certificate-style verifiable identity document for
//     workloads, service accounts, and agents. It binds a structured
//     identifier to an Ed25519 signature over the deterministic CBOR
//     encoding of (subject, issuer, issued_at, expires_at, serial).
//   - [Token]: an HS256 JWT bearer token for every kind, carrying the
//     identity's name, namespace, kind, and trust level as claims. The
//     HMAC key is derived from the keyring's master secret with
//     HKDF-SHA256.
//
// Requested lifetimes are clamped, never rejected: zero or negative
// means the default TTL, anything below one minute is raised to one
// minute, and anything above the per-kind ceiling is lowered to it.
// The issued credential reports the effective TTL and whether it was
// clamped.
//
// The [Issuer] stores nothing. Every issuance attempt, successful or
// not, is appended to the audit trail; verification is not audited.
//
// Key material lives in a [Keyring] backed by lib/secret buffers. A
// keyring can be persisted as plain files (0600) or sealed to operator
// age recipients through lib/sealed.
package credential
