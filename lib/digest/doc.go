// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package digest provides BLAKE3 content digests for files trustplane
// loads or runs from: identity and policy bundles, and its own binary.
// Operators compare these digests against the ones logged at startup
// to confirm which bundle revision is in force.
//
//   - [File] streams a file through BLAKE3 with constant memory use
//   - [Format] renders a digest as lowercase hex
//   - [Parse] reverses Format, validating length and encoding
//
// This package has no dependencies on other trustplane packages.
package digest
