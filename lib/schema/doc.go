// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the data model shared by every control plane
// component: trust levels, identity kinds, [Identity], [Policy] with
// its [DenyRule] predicates, [Decision], and [AuditEvent].
//
// Types that appear in CLI output and policy bundles carry `json` tags.
// Types that are also hashed or persisted as CBOR rely on the CBOR
// library's json-tag fallback (see lib/codec), so a single set of tags
// governs both encodings.
//
// The error taxonomy lives here too ([ErrNotFound], [ErrValidation],
// [ErrInvalidTransition], [ErrIdentityInactive], [ErrSignatureInvalid],
// [ErrExpired], [ErrUnsupportedKind], [ErrAlreadyExists]). Component
// packages wrap these sentinels with context and callers test with
// errors.Is.
//
// This package depends on no other trustplane packages.
package schema
