// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides channel assertions and identifier helpers
// shared by the chat packages' tests.
//
// The Require helpers wrap the timeout-guarded select every concurrent
// test otherwise repeats. The timeouts are hang prevention only; tests
// that depend on timing use the fake clock in lib/clock instead.
package testutil
