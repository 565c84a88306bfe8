// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the control plane's standard CBOR encoding
// configuration.
//
// Two serialization formats are used, with a clear boundary:
//
//   - JSON for external interfaces: CLI output, policy bundles and
//     token claims (JWT is JSON by definition).
//   - CBOR for everything that is hashed, signed or stored: the
//     verifiable document signing payload, the audit hash chain, the
//     audit SQLite sink payload column and audit exports.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. The
// same logical value always produces identical bytes, which is what
// makes signatures and chain hashes reproducible by a verifier that
// decodes and re-encodes a record.
//
// Timestamps are encoded as RFC 3339 text with nanoseconds so that a
// decoded record compares equal to the record that was written.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For CBOR sequences (audit exports):
//
//	encoder := codec.NewEncoder(w)
//	decoder := codec.NewDecoder(r)
//
// # Struct Tag Rules
//
// Types that only ever appear as CBOR carry `cbor` tags. Types that are
// also printed as JSON carry `json` tags only; fxamacker/cbor falls back
// to `json` tags when `cbor` tags are absent. Never put both on one
// field.
package codec
