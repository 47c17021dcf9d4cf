// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for Parlor
// commands.
//
// Configuration is loaded from a single file specified by either the
// PARLOR_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search; an unset PARLOR_CONFIG simply yields
// [Default], which is enough to play on one machine.
//
// Variable expansion is performed on path fields after loading:
// ${HOME} and ${VAR:-default} patterns are expanded. No other
// environment variables override config values, so a loaded file is
// the single auditable source of truth.
//
// Key exports:
//
//   - [Config] -- master struct with Relay, ICE, Store, Game, Log,
//     Timeouts
//   - [Default] -- returns a Config usable without any file
//   - [Load] and [LoadFile] -- the two entry points for loading
package config
