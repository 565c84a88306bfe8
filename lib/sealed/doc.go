// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed encrypts key material at rest with age.
//
// The credential keyring can be written as a single armored age file
// sealed to one or more operator recipients (age1... public keys).
// Opening it requires the matching AGE-SECRET-KEY-1... identity, which
// is handled as a [secret.Buffer] and never copied into long-lived
// heap memory.
//
//   - [GenerateKeypair] creates an x25519 identity and recipient
//   - [Seal] encrypts plaintext to recipients, ASCII-armored
//   - [Open] decrypts into a secret.Buffer
//   - [ParseRecipients] validates recipient strings
package sealed
