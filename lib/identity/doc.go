// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity implements the identity store: registration,
// lookup, trust promotion, and deactivation of principals.
//
// Non-human identities receive a SPIFFE structured identifier,
//
//	spiffe://{trust-domain}/ns/{namespace}/sa/{name}     workload, service_account
//	spiffe://{trust-domain}/ns/{namespace}/agent/{name}  ai_agent
//
// built with go-spiffe's spiffeid package. A hierarchical namespace
// ("production/payments") contributes one path segment per level.
// Components that are not valid SPIFFE segments are formatted verbatim
// rather than refused. Structured identifiers are unique within the
// store; a deactivated identity keeps its identifier reserved.
//
// The store is guarded by a sync.RWMutex. Lookups used on the
// decision path ([Store.Resolve], [Store.Touch]) take the read lock
// only. Every mutation appends one audit event after the lock is
// released.
package identity
