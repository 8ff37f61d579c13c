// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens pooled SQLite databases with a fixed set of
// pragmas and versioned schema migrations.
//
// Migrations are an ordered list of SQL scripts. The database's
// PRAGMA user_version records how many have been applied; opening a
// database runs the remainder inside one savepoint per step. A database
// whose user_version is ahead of the binary's list is refused rather
// than silently read with a schema the code does not know.
package sqlitepool
