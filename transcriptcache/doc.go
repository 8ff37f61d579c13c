// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package transcriptcache keeps the last confirmed transcript of each
// conversation on disk so that reopening a conversation after a
// restart shows its previous contents while the history fetch runs.
//
// Each account gets its own SQLite database (see [PathFor]). A
// transcript is stored as one row: the CBOR encoding of the confirmed
// messages, compressed with the configured [Compression]. Pending
// messages are never written.
//
// [Cache] implements conversation.Cache.
package transcriptcache
