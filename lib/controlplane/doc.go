// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package controlplane assembles one instance of each trustplane
// component from a [config.Config]: the identity store, the policy
// store, the credential issuer, the decision engine, and the audit
// trail they all record into.
//
// A [Plane] owns the resources it opens (the keyring and, when audit
// persistence is enabled, the SQLite pool) and releases them in
// [Plane.Close]. Identities and policies are held in memory and are
// loaded from bundles on each start; the audit chain is the only state
// that survives a restart, and only when persisted.
//
// [Plane.Apply] loads a [policy.Bundle]: identities are registered,
// policies are created, and each policy is moved to its declared
// status. [Plane.SeedDemo] applies a built-in bundle of sample
// workloads, agents, humans, and policies.
package controlplane
