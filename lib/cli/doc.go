// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli holds what the alumnet-chat binaries share around their
// main functions: categorized errors with exit codes and hints, the
// command logger, and log fan-out to a file.
package cli
