// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the chat client configuration.
//
// Configuration comes from exactly one file, named by the --config flag
// or the ALUMNET_CONFIG environment variable. There is no discovery and
// environment variables never override individual keys; the only
// expansion is ${VAR} and ${VAR:-default} inside path values.
//
// Files ending in .yaml or .yml are parsed as YAML. Files ending in
// .json or .jsonc are stripped of comments and trailing commas first and
// then parsed by the same decoder, so both formats share one schema.
//
// An environment-specific section (development, staging, production)
// overrides base values when the environment key matches.
package config
