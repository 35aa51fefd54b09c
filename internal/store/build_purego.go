//go:build !cgo_sqlite
// +build !cgo_sqlite

package store

// Compiled when building without the cgo_sqlite tag. Uses the pure Go SQLite
// implementation so no C compiler is required.
//
// Build command:
//
//	CGO_ENABLED=0 go build ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver registered for this build.
	DriverName = "sqlite"

	// BuildMode describes the current build configuration.
	BuildMode = "purego"
)
