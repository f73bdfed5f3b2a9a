// Package sqlite provides the SQLite engine adapters behind conn.Connection,
// supporting both pure Go (modernc.org/sqlite) and CGO (mattn/go-sqlite3)
// implementations.
//
// Build modes:
//   - Default (CGO_ENABLED=0): file databases use pure Go modernc.org/sqlite
//   - CGO mode (CGO_ENABLED=1 -tags cgo_sqlite): file databases use mattn/go-sqlite3 via contrib/sqlite-external
//
// In-memory databases always use modernc.org/sqlite.
//
// Every adapter holds exactly one engine connection. Statements are executed
// one at a time in call order, with $name parameters bound by name.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/FocuswithJustin/sqlclient/core/conn"
	sqlerrors "github.com/FocuswithJustin/sqlclient/core/errors"
	"github.com/FocuswithJustin/sqlclient/internal/logging"
)

// memoryDriverName is the modernc.org/sqlite driver, registered in both build modes.
const memoryDriverName = "sqlite"

// DriverName returns the SQL driver name used for file databases.
func DriverName() string {
	return driverName
}

// DriverType returns a string identifying the underlying implementation.
// Returns "cgo" for mattn/go-sqlite3, "purego" for modernc.org/sqlite.
func DriverType() string {
	return driverType
}

// IsCGO returns true if the CGO implementation is being used.
func IsCGO() bool {
	return driverType == "cgo"
}

// Open opens a raw file database handle using the build-selected driver.
func Open(dataSourceName string) (*sql.DB, error) {
	return sql.Open(driverName, dataSourceName)
}

// Info contains information about the SQLite driver configuration.
type Info struct {
	DriverName string `json:"driver_name"`
	DriverType string `json:"driver_type"`
	IsCGO      bool   `json:"is_cgo"`
	Package    string `json:"package"`
}

// GetInfo returns information about the current SQLite configuration.
func GetInfo() Info {
	return Info{
		DriverName: driverName,
		DriverType: driverType,
		IsCGO:      IsCGO(),
		Package:    driverPackage,
	}
}

// Options configures an adapter.
type Options struct {
	// InitialData is a serialized database image restored on open
	// (in-memory databases only).
	InitialData []byte

	// Retry bounds SQLITE_BUSY retries. The zero value selects
	// conn.DefaultRetryPolicy.
	Retry conn.RetryPolicy

	// Logger receives statement and retry logs. Nil selects the global logger.
	Logger *slog.Logger
}

// Conn is a conn.Connection backed by a single SQLite connection.
type Conn struct {
	name   string
	db     *sql.DB
	retry  conn.RetryPolicy
	logger *slog.Logger
	lock   *conn.TxLock

	mu     sync.Mutex
	raw    *sql.Conn
	closed bool
}

var _ conn.Connection = (*Conn)(nil)

// OpenMemory opens a private in-memory database named name.
func OpenMemory(ctx context.Context, name string, opts Options) (*Conn, error) {
	db, err := sql.Open(memoryDriverName, ":memory:")
	if err != nil {
		return nil, sqlerrors.NewIO("open", ":memory:", err)
	}
	return open(ctx, name, db, opts)
}

// MustOpenMemory opens an in-memory database and panics on error.
// This is intended for use in tests or initialization code.
func MustOpenMemory(name string) *Conn {
	c, err := OpenMemory(context.Background(), name, Options{})
	if err != nil {
		panic(fmt.Sprintf("sqlite: failed to open in-memory database %s: %v", name, err))
	}
	return c
}

// OpenFile opens (creating if needed) the database file at path.
func OpenFile(ctx context.Context, name, path string, opts Options) (*Conn, error) {
	if len(opts.InitialData) > 0 {
		return nil, sqlerrors.NewUsage("open", "", "", "initial data is only supported for in-memory databases")
	}
	db, err := Open(path)
	if err != nil {
		return nil, sqlerrors.NewIO("open", path, err)
	}
	return open(ctx, name, db, opts)
}

func open(ctx context.Context, name string, db *sql.DB, opts Options) (*Conn, error) {
	// One connection: an in-memory database exists only inside it, and
	// statements must run in order.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	raw, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, sqlerrors.NewClient(normalizeError(err), "", nil)
	}
	if err := raw.PingContext(ctx); err != nil {
		raw.Close()
		db.Close()
		return nil, sqlerrors.NewClient(normalizeError(err), "", nil)
	}

	c := &Conn{
		name:   name,
		db:     db,
		retry:  opts.Retry,
		logger: opts.Logger,
		lock:   conn.NewTxLock(),
		raw:    raw,
	}
	if c.retry.MaxAttempts == 0 {
		c.retry = conn.DefaultRetryPolicy()
	}

	if len(opts.InitialData) > 0 {
		if err := c.restore(opts.InitialData); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

// Name identifies the database.
func (c *Conn) Name() string { return c.name }

// TxLock returns the transaction lock of this connection.
func (c *Conn) TxLock() *conn.TxLock { return c.lock }

// Execute runs one statement, retrying while the engine reports SQLITE_BUSY.
func (c *Conn) Execute(ctx context.Context, query string, bind conn.BindValues) ([]conn.Row, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, sqlerrors.NewClient(sqlerrors.NewEngine(21, "connection is closed"), query, bind)
	}

	start := time.Now()
	var rows []conn.Row
	onRetry := func(attempt int, delay time.Duration, err error) {
		logging.BusyRetry(ctx, c.logger, c.name, attempt, delay, err)
	}
	err := conn.Retry(ctx, c.retry, onRetry, func() error {
		var err error
		rows, err = c.query(ctx, query, bind)
		return err
	})
	if err != nil {
		return nil, sqlerrors.NewClient(err, query, bind)
	}

	logging.Statement(ctx, c.logger, c.name, query, len(rows), time.Since(start))
	return rows, nil
}

func (c *Conn) query(ctx context.Context, query string, bind conn.BindValues) ([]conn.Row, error) {
	rs, err := c.raw.QueryContext(ctx, query, namedArgs(bind)...)
	if err != nil {
		return nil, normalizeError(err)
	}
	defer rs.Close()

	cols, err := rs.Columns()
	if err != nil {
		return nil, normalizeError(err)
	}

	out := make([]conn.Row, 0)
	values := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}
	for rs.Next() {
		if err := rs.Scan(dest...); err != nil {
			return nil, normalizeError(err)
		}
		row := make(conn.Row, len(cols))
		for i, name := range cols {
			row[name] = values[i]
		}
		out = append(out, row)
	}
	if err := rs.Err(); err != nil {
		return nil, normalizeError(err)
	}
	return out, nil
}

// namedArgs binds parameters by name in a stable order.
func namedArgs(bind conn.BindValues) []any {
	names := make([]string, 0, len(bind))
	for name := range bind {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]any, len(names))
	for i, name := range names {
		args[i] = sql.Named(name, bind[name])
	}
	return args
}

// Export serializes the whole database. Drivers without serialization support
// fail with an error matching errors.ErrUnsupported.
func (c *Conn) Export(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, sqlerrors.NewClient(sqlerrors.NewEngine(21, "connection is closed"), "", nil)
	}

	var image []byte
	err := c.raw.Raw(func(driverConn any) error {
		var err error
		switch s := driverConn.(type) {
		case interface{ Serialize() ([]byte, error) }:
			image, err = s.Serialize()
		case interface{ Serialize(string) ([]byte, error) }:
			image, err = s.Serialize("main")
		default:
			return sqlerrors.NewUnsupported("export", fmt.Sprintf("driver %T cannot serialize", driverConn))
		}
		return normalizeError(err)
	})
	if err != nil {
		return nil, sqlerrors.WithOp(sqlerrors.NewClient(err, "", nil), "export", "")
	}

	logging.Export(ctx, c.logger, c.name, len(image))
	return image, nil
}

func (c *Conn) restore(image []byte) error {
	err := c.raw.Raw(func(driverConn any) error {
		switch d := driverConn.(type) {
		case interface{ Deserialize([]byte) error }:
			return normalizeError(d.Deserialize(image))
		case interface{ Deserialize([]byte, string) error }:
			return normalizeError(d.Deserialize(image, "main"))
		}
		return sqlerrors.NewUnsupported("initial data", fmt.Sprintf("driver %T cannot deserialize", driverConn))
	})
	if err != nil {
		return sqlerrors.WithOp(sqlerrors.NewClient(err, "", nil), "open", "")
	}
	return nil
}

// Close releases the engine connection. Closing twice is a no-op.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	rawErr := c.raw.Close()
	if err := c.db.Close(); err != nil {
		return sqlerrors.Wrap(err, "close database")
	}
	return sqlerrors.Wrap(rawErr, "close connection")
}
