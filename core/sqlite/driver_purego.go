//go:build !cgo_sqlite

package sqlite

const (
	driverName    = "sqlite"
	driverType    = "purego"
	driverPackage = "modernc.org/sqlite"
)

// externalErrorCode is only needed when the CGO driver is linked in.
func externalErrorCode(error) (int, string, bool) {
	return 0, "", false
}
