// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the trustplane
// binary.
//
// The central type is [Command], which represents a named subcommand with
// optional nested [Command.Subcommands], a flag set (built by
// [Command.Flags] or bound from a tagged struct via [Command.Params]),
// and a Run function. Commands are assembled into a tree in
// cmd/trustplane/commands and dispatched via [Command.Execute], which
// handles flag parsing, subcommand routing, and structured help output
// with examples.
//
// When a user types an unknown subcommand or flag, the framework computes
// Levenshtein edit distance against all known names and suggests the
// closest match (threshold: distance <= 3).
//
// [NewLogger] builds the slog logger from the logging section of the
// configuration file. [JSONOutput] adds a --json flag to commands whose
// results are structured.
package cli
