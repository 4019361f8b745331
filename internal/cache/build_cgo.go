//go:build cgo && !purego
// +build cgo,!purego

package cache

// This file is compiled when building with CGO available.
//
// Build command:
//   CGO_ENABLED=1 go build ./...
//
// The mattn driver is the C SQLite implementation: fastest option and the
// recommended production deployment.
//
// Driver used: github.com/mattn/go-sqlite3

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
