// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for trustplane.
//
// Configuration is loaded from a single file specified by either the
// TRUSTPLANE_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There are no fallbacks and no automatic file
// search, so the configuration in effect is always the one named.
//
// The file supports environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches. Production defaults are stricter:
// the audit trail is persisted and logging drops to info.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${TRUSTPLANE_ROOT}, and ${VAR:-default} patterns are
// expanded. No other environment variables override config values.
//
// Durations (credential TTLs and ceilings) are strings in
// time.ParseDuration syntax, e.g. "90m" or "4h". Ceiling tables are
// keyed by identity kind name; the kinds themselves are checked by the
// components that consume them.
//
// This package depends on no other trustplane packages.
package config
