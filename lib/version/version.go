// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the chat binaries.
//
// Values are injected with -ldflags:
//
//	go build -ldflags "-X github.com/alumnet-portal/chatsync/lib/version.GitCommit=$(git rev-parse --short HEAD)"
package version

import (
	"fmt"
	"runtime"
)

var (
	GitCommit = "unknown"
	GitDirty  = "false"
	BuildTime = "unknown"
	Version   = "0.1.0-dev"
)

// Info returns the --version line.
func Info() string {
	dirty := ""
	if GitDirty == "true" {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, GitCommit, dirty, BuildTime)
}

// Full adds the Go toolchain and platform to Info.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// UserAgent identifies the client to the portal API and event channel.
func UserAgent(product string) string {
	return fmt.Sprintf("%s/%s (%s; %s/%s)", product, Version, GitCommit, runtime.GOOS, runtime.GOARCH)
}
