// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package transcriptcache

import (
	"encoding/hex"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/alumnet-portal/chatsync/lib/ref"
)

// pathDomainKey separates cache file names from any other BLAKE3 use.
// Changing it orphans every existing cache file.
var pathDomainKey = [32]byte{
	'a', 'l', 'u', 'm', 'n', 'e', 't', '.', 't', 'r', 'a', 'n', 's', 'c', 'r', 'i',
	'p', 't', '.', 'c', 'a', 'c', 'h', 'e', 0, 0, 0, 0, 0, 0, 0, 0,
}

// PathFor returns the database path for one account on one portal.
// The file name is a keyed hash of the normalized base URL and the
// user, so two accounts never share a file and the directory listing
// does not reveal who uses the machine.
func PathFor(directory, baseURL string, user ref.UserID) string {
	hasher, err := blake3.NewKeyed(pathDomainKey[:])
	if err != nil {
		// NewKeyed only fails for keys that are not 32 bytes.
		panic("transcriptcache: " + err.Error())
	}
	hasher.Write([]byte(strings.TrimRight(strings.ToLower(baseURL), "/")))
	hasher.Write([]byte{0})
	hasher.Write([]byte(user))
	digest := hasher.Sum(nil)
	return filepath.Join(directory, hex.EncodeToString(digest[:12])+".db")
}
