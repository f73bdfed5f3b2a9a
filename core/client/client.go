// Package client is the schema-aware facade over a conn.Connection. Callers
// describe operations with table names and logical values; the client builds
// the statements, runs them, and decodes rows through the column codecs.
//
// Every execute-path failure is an *errors.ClientError carrying the operation,
// table, query and bind values. Contract violations are *errors.UsageError and
// codec failures are *errors.DecodeError; neither is wrapped.
package client

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/FocuswithJustin/sqlclient/core/conn"
	sqlerrors "github.com/FocuswithJustin/sqlclient/core/errors"
	"github.com/FocuswithJustin/sqlclient/core/query"
	"github.com/FocuswithJustin/sqlclient/core/schema"
)

// Client runs schema-checked operations against one connection.
type Client struct {
	conn         conn.Connection
	schema       *schema.Schema
	logger       *slog.Logger
	maxVariables int
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger for transaction and migration events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMaxVariables sets the bind parameter limit used to chunk CreateMany.
func WithMaxVariables(n int) Option {
	return func(c *Client) { c.maxVariables = n }
}

// New returns a Client for c described by s.
func New(c conn.Connection, s *schema.Schema, opts ...Option) (*Client, error) {
	if c == nil {
		return nil, sqlerrors.NewUsage("new", "", "", "connection is nil")
	}
	if s == nil {
		return nil, sqlerrors.NewUsage("new", "", "", "schema is nil")
	}
	cl := &Client{conn: c, schema: s, maxVariables: query.MaxVariables}
	for _, opt := range opts {
		opt(cl)
	}
	if cl.maxVariables <= 0 {
		return nil, sqlerrors.NewUsage("new", "", "", fmt.Sprintf("max variables must be positive, got %d", cl.maxVariables))
	}
	return cl, nil
}

// Schema returns the schema the client was built with.
func (c *Client) Schema() *schema.Schema { return c.schema }

// Conn returns the underlying connection.
func (c *Client) Conn() conn.Connection { return c.conn }

func (c *Client) table(op, name string) (*schema.Table, error) {
	t, ok := c.schema.Table(name)
	if !ok {
		return nil, sqlerrors.NewUsage(op, name, "", "table is not part of the schema")
	}
	return t, nil
}

func (c *Client) exec(ctx context.Context, op, table, sql string, bind conn.BindValues) ([]conn.Row, error) {
	rows, err := c.conn.Execute(ctx, sql, bind)
	if err != nil {
		return nil, sqlerrors.WithOp(sqlerrors.NewClient(err, sql, bind), op, table)
	}
	return rows, nil
}

// FindMany returns the decoded rows of table matching where. A limit of zero
// or less returns every match.
func (c *Client) FindMany(ctx context.Context, table string, where query.Where, limit int) ([]conn.Row, error) {
	const op = "findMany"
	t, err := c.table(op, table)
	if err != nil {
		return nil, err
	}
	sql, bind, err := query.FindManyRows(t, where, limit)
	if err != nil {
		return nil, err
	}
	raw, err := c.exec(ctx, op, table, sql, bind)
	if err != nil {
		return nil, err
	}

	rows := make([]conn.Row, len(raw))
	for i, r := range raw {
		if rows[i], err = c.DecodeRow(table, r); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// Find returns the first row of table matching where.
func (c *Client) Find(ctx context.Context, table string, where query.Where) (conn.Row, bool, error) {
	rows, err := c.FindMany(ctx, table, where, 1)
	if err != nil || len(rows) == 0 {
		return nil, false, err
	}
	return rows[0], true, nil
}

// Exists reports whether any row of table matches where.
func (c *Client) Exists(ctx context.Context, table string, where query.Where) (bool, error) {
	_, found, err := c.Find(ctx, table, where)
	return found, err
}

// Count returns the number of rows of table matching where.
func (c *Client) Count(ctx context.Context, table string, where query.Where) (int64, error) {
	const op = "count"
	t, err := c.table(op, table)
	if err != nil {
		return 0, err
	}
	sql, bind, err := query.CountRows(t, where)
	if err != nil {
		return 0, err
	}
	rows, err := c.exec(ctx, op, table, sql, bind)
	if err != nil {
		return 0, err
	}
	if len(rows) != 1 || len(rows[0]) != 1 {
		return 0, sqlerrors.WithOp(sqlerrors.NewClient(fmt.Errorf("count returned %d rows", len(rows)), sql, bind), op, table)
	}
	for _, v := range rows[0] {
		if n, ok := v.(int64); ok {
			return n, nil
		}
		return 0, &sqlerrors.DecodeError{Table: table, Column: "count(1)", Format: "integer", Err: fmt.Errorf("unexpected %T", v)}
	}
	return 0, nil
}

type createOptions struct {
	orReplace bool
}

// CreateOption configures Create.
type CreateOption func(*createOptions)

// OrReplace replaces an existing row that conflicts with the new one.
func OrReplace() CreateOption {
	return func(o *createOptions) { o.orReplace = true }
}

// Create inserts one row. Columns left out take their DDL default or NULL.
func (c *Client) Create(ctx context.Context, table string, values query.Values, opts ...CreateOption) error {
	const op = "create"
	var o createOptions
	for _, opt := range opts {
		opt(&o)
	}
	t, err := c.table(op, table)
	if err != nil {
		return err
	}
	sql, bind, err := query.InsertRow(t, values, o.orReplace)
	if err != nil {
		return err
	}
	_, err = c.exec(ctx, op, table, sql, bind)
	return err
}

// CreateOrIgnore inserts one row unless it conflicts with an existing one.
func (c *Client) CreateOrIgnore(ctx context.Context, table string, values query.Values) error {
	const op = "createOrIgnore"
	t, err := c.table(op, table)
	if err != nil {
		return err
	}
	sql, bind, err := query.InsertOrIgnoreRow(t, values)
	if err != nil {
		return err
	}
	_, err = c.exec(ctx, op, table, sql, bind)
	return err
}

// CreateMany inserts rows with as few multi-row statements as the bind
// parameter limit allows. Every statement is built before the first one
// runs. Statements run in order and the first failure stops the rest; rows of
// earlier chunks stay inserted unless the call runs inside Transaction.
func (c *Client) CreateMany(ctx context.Context, table string, rows []query.Values) error {
	const op = "createMany"
	t, err := c.table(op, table)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return sqlerrors.NewUsage(op, table, "", "no rows given")
	}
	perRow, err := query.ColumnsPerRow(t, rows)
	if err != nil {
		return err
	}
	chunks, err := query.ChunkRows(rows, perRow, c.maxVariables)
	if err != nil {
		var ue *sqlerrors.UsageError
		if sqlerrors.As(err, &ue) {
			ue.Table = table
		}
		return err
	}

	type statement struct {
		sql  string
		bind conn.BindValues
	}
	stmts := make([]statement, len(chunks))
	for i, chunk := range chunks {
		sql, bind, err := query.InsertRows(t, chunk)
		if err != nil {
			return err
		}
		stmts[i] = statement{sql: sql, bind: bind}
	}

	for i, s := range stmts {
		chunkOp := fmt.Sprintf("%s[chunk %d/%d]", op, i+1, len(stmts))
		if _, err := c.exec(ctx, chunkOp, table, s.sql, s.bind); err != nil {
			return err
		}
	}
	return nil
}

// Update sets values on every row of table matching where. Matching no row is
// not an error.
func (c *Client) Update(ctx context.Context, table string, values query.Values, where query.Where) error {
	const op = "update"
	t, err := c.table(op, table)
	if err != nil {
		return err
	}
	sql, bind, err := query.UpdateRows(t, values, where)
	if err != nil {
		return err
	}
	_, err = c.exec(ctx, op, table, sql, bind)
	return err
}

// UpsertArgs describes an insert-or-update. The keys of Where name the
// conflict target and must match the primary key or a unique index.
type UpsertArgs struct {
	Create query.Values
	Update query.Values
	Where  query.Where
}

// Upsert inserts Create, or applies Update to the conflicting row, in one
// statement. An empty Update keeps the existing row untouched.
func (c *Client) Upsert(ctx context.Context, table string, args UpsertArgs) error {
	const op = "upsert"
	t, err := c.table(op, table)
	if err != nil {
		return err
	}
	sql, bind, err := query.UpsertRow(t, args.Create, args.Update, args.Where)
	if err != nil {
		return err
	}
	_, err = c.exec(ctx, op, table, sql, bind)
	return err
}

// ExecuteRaw runs a caller-written statement and returns its undecoded rows.
func (c *Client) ExecuteRaw(ctx context.Context, sql string, bind conn.BindValues) ([]conn.Row, error) {
	return c.exec(ctx, "executeRaw", "", sql, bind)
}

// Export returns a serialized image of the whole database.
func (c *Client) Export(ctx context.Context) ([]byte, error) {
	image, err := c.conn.Export(ctx)
	if err != nil {
		return nil, sqlerrors.WithOp(sqlerrors.NewClient(err, "", nil), "export", "")
	}
	return image, nil
}

// DecodeRow decodes the stored values of raw through the codecs of table.
// Columns the table does not declare are passed through unchanged.
func (c *Client) DecodeRow(table string, raw conn.Row) (conn.Row, error) {
	t, err := c.table("decode", table)
	if err != nil {
		return nil, err
	}
	codecs, _ := c.schema.Codecs(table)

	row := make(conn.Row, len(raw))
	for name, stored := range raw {
		codec, ok := codecs[name]
		if !ok || stored == nil {
			row[name] = stored
			continue
		}
		v, err := codec.Decode(stored)
		if err != nil {
			return nil, decodeError(t, name, err)
		}
		row[name] = v
	}
	return row, nil
}

func decodeError(t *schema.Table, column string, err error) error {
	var de *sqlerrors.DecodeError
	if sqlerrors.As(err, &de) {
		out := *de
		out.Table = t.Name
		out.Column = column
		return &out
	}
	format := "value"
	if col, ok := t.Column(column); ok {
		format = col.Type.Name()
	}
	return &sqlerrors.DecodeError{Table: t.Name, Column: column, Format: format, Err: err}
}
