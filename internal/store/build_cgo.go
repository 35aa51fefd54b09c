//go:build cgo_sqlite
// +build cgo_sqlite

package store

// Compiled when building with CGO and the cgo_sqlite tag. Uses the C SQLite
// driver for the SQLite persistence adapter.
//
// Build command:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver registered for this build.
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration.
	BuildMode = "cgo"
)
