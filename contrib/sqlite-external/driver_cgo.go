//go:build cgo_sqlite

// Package sqliteexternal provides a CGO-based SQLite driver using mattn/go-sqlite3.
// This is an optional external dependency for performance-critical applications.
//
// Build with: go build -tags cgo_sqlite
// Requires: CGO_ENABLED=1
package sqliteexternal

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQL driver name to use with database/sql.
	DriverName = "sqlite3"

	// DriverType identifies this as the CGO implementation.
	DriverType = "cgo"

	// DriverPackage is the import path of the underlying driver.
	DriverPackage = "github.com/mattn/go-sqlite3"
)

// ErrorCode extracts the SQLite result code from a mattn/go-sqlite3 error.
// The extended code is preferred when the driver reports one.
func ErrorCode(err error) (int, string, bool) {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return 0, "", false
	}
	if se.ExtendedCode != 0 {
		return int(se.ExtendedCode), se.Error(), true
	}
	return int(se.Code), se.Error(), true
}
