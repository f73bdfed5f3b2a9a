// Package sqliteexternal provides optional external SQLite drivers.
//
// This package is part of the github.com/FocuswithJustin/sqlclient module
// and links the CGO-based driver for file databases.
//
// # CGO SQLite Driver
//
// To use the CGO driver (github.com/mattn/go-sqlite3) for sqlite.OpenFile:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite ./...
//
// core/sqlite then registers "sqlite3" as the file driver and maps
// sqlite3.Error codes through ErrorCode. In-memory databases keep using the
// pure Go driver in both modes.
//
// # Default Pure Go Driver
//
// Without the tag, file databases use modernc.org/sqlite. See
// github.com/FocuswithJustin/sqlclient/core/sqlite for details.
package sqliteexternal
