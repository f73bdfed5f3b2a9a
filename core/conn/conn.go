// Package conn defines the connection capability the client runs statements
// through, together with the per-connection transaction lock and the busy
// retry policy shared by the engine adapters.
package conn

import (
	"context"
)

// Row is one result row keyed by column name.
type Row = map[string]any

// BindValues maps parameter names (without the $ sigil) to stored values.
type BindValues = map[string]any

// Connection executes statements against one database.
//
// Statements submitted through one Connection run in call order. The
// connection is owned by whoever opened it; the client never closes it.
type Connection interface {
	// Name identifies the database.
	Name() string

	// Execute runs one statement and returns its rows (empty for statements
	// that produce none). Failures are normalized engine errors.
	Execute(ctx context.Context, query string, bind BindValues) ([]Row, error)

	// Export returns a serialized image of the whole database.
	Export(ctx context.Context) ([]byte, error)

	// TxLock returns the lock that serializes transactions on this connection.
	TxLock() *TxLock
}
