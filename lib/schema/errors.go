// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "errors"

// Sentinel errors. None is fatal to the process; every one describes a
// rejected request that the caller can correct.
var (
	// ErrNotFound means a referenced identity or policy does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation means a registration, policy, or evaluation request
	// has malformed or missing fields.
	ErrValidation = errors.New("validation failed")

	// ErrAlreadyExists means a registration would duplicate a
	// structured identifier or a human contact.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidTransition means a lifecycle operation would violate a
	// monotonic state rule (promotion to an equal or lower trust level).
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrIdentityInactive means the identity has been deactivated.
	ErrIdentityInactive = errors.New("identity inactive")

	// ErrSignatureInvalid means a credential failed signature,
	// algorithm, issuer, or audience verification.
	ErrSignatureInvalid = errors.New("signature invalid")

	// ErrExpired means a credential's expiry is at or before now.
	ErrExpired = errors.New("credential expired")

	// ErrUnsupportedKind means the identity kind cannot receive the
	// requested credential (humans receive tokens only).
	ErrUnsupportedKind = errors.New("unsupported identity kind")
)
