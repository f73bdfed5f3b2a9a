package client

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/FocuswithJustin/sqlclient/core/conn"
	sqlerrors "github.com/FocuswithJustin/sqlclient/core/errors"
	"github.com/FocuswithJustin/sqlclient/core/query"
)

// tagName is the struct tag mapping fields to columns, e.g. `db:"createdAt"`.
// Options after the name: omitempty leaves zero values out of inserts.
const tagName = "db"

// Table binds a struct type to one table. Fields without a db tag are
// ignored. Nil pointer fields are left out of inserts so the column takes
// its default or NULL.
type Table[T any] struct {
	client *Client
	name   string
}

// NewTable returns a typed view of table. T must be a struct whose db tags
// all name columns of the table.
func NewTable[T any](c *Client, table string) (*Table[T], error) {
	const op = "table"
	t, err := c.table(op, table)
	if err != nil {
		return nil, err
	}
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if typ.Kind() != reflect.Struct {
		return nil, sqlerrors.NewUsage(op, table, "", fmt.Sprintf("%s is not a struct", typ))
	}
	for _, f := range taggedFields(typ) {
		if _, ok := t.Column(f.column); !ok {
			return nil, sqlerrors.NewUsage(op, table, f.column, fmt.Sprintf("field %s.%s names an unknown column", typ.Name(), f.name))
		}
	}
	return &Table[T]{client: c, name: table}, nil
}

// Name returns the bound table name.
func (t *Table[T]) Name() string { return t.name }

// FindMany returns the rows matching where as T values.
func (t *Table[T]) FindMany(ctx context.Context, where query.Where, limit int) ([]T, error) {
	rows, err := t.client.FindMany(ctx, t.name, where, limit)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(rows))
	for i, row := range rows {
		if err := t.decode(row, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Find returns the first row matching where.
func (t *Table[T]) Find(ctx context.Context, where query.Where) (T, bool, error) {
	var out T
	row, found, err := t.client.Find(ctx, t.name, where)
	if err != nil || !found {
		return out, false, err
	}
	if err := t.decode(row, &out); err != nil {
		return out, false, err
	}
	return out, true, nil
}

// Count returns the number of rows matching where.
func (t *Table[T]) Count(ctx context.Context, where query.Where) (int64, error) {
	return t.client.Count(ctx, t.name, where)
}

// Create inserts v.
func (t *Table[T]) Create(ctx context.Context, v T, opts ...CreateOption) error {
	return t.client.Create(ctx, t.name, Encode(v), opts...)
}

// CreateMany inserts vs in chunks.
func (t *Table[T]) CreateMany(ctx context.Context, vs []T) error {
	rows := make([]query.Values, len(vs))
	for i, v := range vs {
		rows[i] = Encode(v)
	}
	return t.client.CreateMany(ctx, t.name, rows)
}

// Upsert inserts v, or applies update to the row conflicting on the where keys.
func (t *Table[T]) Upsert(ctx context.Context, v T, update query.Values, where query.Where) error {
	return t.client.Upsert(ctx, t.name, UpsertArgs{Create: Encode(v), Update: update, Where: where})
}

func (t *Table[T]) decode(row conn.Row, out *T) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:              tagName,
		IgnoreUntaggedFields: true,
		Result:               out,
	})
	if err != nil {
		return sqlerrors.Wrap(err, "build row decoder")
	}
	if err := dec.Decode(row); err != nil {
		return &sqlerrors.DecodeError{Table: t.name, Format: reflect.TypeOf((*T)(nil)).Elem().String(), Err: err}
	}
	return nil
}

type field struct {
	index     []int
	name      string
	column    string
	omitEmpty bool
}

func taggedFields(typ reflect.Type) []field {
	var fields []field
	for _, sf := range reflect.VisibleFields(typ) {
		if !sf.IsExported() {
			continue
		}
		tag, ok := sf.Tag.Lookup(tagName)
		if !ok || tag == "-" {
			continue
		}
		column, opts, _ := strings.Cut(tag, ",")
		if column == "" {
			column = sf.Name
		}
		fields = append(fields, field{
			index:     sf.Index,
			name:      sf.Name,
			column:    column,
			omitEmpty: opts == "omitempty",
		})
	}
	return fields
}

// Encode maps the db-tagged fields of a struct to column values. Nil pointers
// are left out, as are zero values of omitempty fields; other pointers are
// dereferenced.
func Encode(v any) query.Values {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return query.Values{}
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return query.Values{}
	}

	values := make(query.Values)
	for _, f := range taggedFields(rv.Type()) {
		fv, err := rv.FieldByIndexErr(f.index)
		if err != nil {
			// Field of a nil embedded pointer.
			continue
		}
		if fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		}
		if f.omitEmpty && fv.IsZero() {
			continue
		}
		values[f.column] = fv.Interface()
	}
	return values
}
