// Package schema describes tables, their columns and the codec used for every
// column. A Schema is declared once and shared by the query builder (for DDL
// and bind values) and the client (for decoding rows).
package schema

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/FocuswithJustin/sqlclient/core/cache"
)

// Column describes one column of a table.
type Column struct {
	Name       string
	Type       FieldType
	Nullable   bool
	PrimaryKey bool
	// Default is a stored value rendered into DDL. It is never injected at
	// insert time; the engine applies it when the column is omitted.
	Default any
}

// HasDefault reports whether a DDL default is declared.
func (c Column) HasDefault() bool { return c.Default != nil }

// Index describes a secondary index.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// Table describes one table. Columns keep their declaration order, which is the
// order generated SQL lists them in.
type Table struct {
	Name    string
	Columns []Column
	Indexes []Index
}

// Column returns the column named name.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// PrimaryKey returns the primary key column names in declaration order.
func (t *Table) PrimaryKey() []string {
	var pk []string
	for _, c := range t.Columns {
		if c.PrimaryKey {
			pk = append(pk, c.Name)
		}
	}
	return pk
}

// IsUniqueKey reports whether cols (in any order) is exactly the primary key or
// the column set of a unique index.
func (t *Table) IsUniqueKey(cols []string) bool {
	if len(cols) == 0 {
		return false
	}
	if sameSet(cols, t.PrimaryKey()) {
		return true
	}
	for _, idx := range t.Indexes {
		if idx.Unique && sameSet(cols, idx.Columns) {
			return true
		}
	}
	return false
}

// Codecs returns the column codecs of t keyed by column name. The mapping is
// derived once per (schema, table) and cached.
func (s *Schema) Codecs(table string) (map[string]Codec, bool) {
	t, ok := s.Table(table)
	if !ok {
		return nil, false
	}
	key := cache.CodecKey{Schema: s, Table: table}
	if codecs, ok := codecCache.Get(key); ok {
		return codecs, true
	}
	codecs := make(map[string]Codec, len(t.Columns))
	for _, c := range t.Columns {
		codecs[c.Name] = c.Type.Codec()
	}
	codecCache.Put(key, codecs)
	return codecs, true
}

var codecCache = cache.NewCodecCache[Codec](cache.DefaultConfig())

// CodecCacheStats reports hits, misses and size of the codec map cache shared
// by every schema in the process.
func CodecCacheStats() cache.Stats { return codecCache.Stats() }

// Schema is an immutable set of table definitions.
type Schema struct {
	tables []Table
	byName map[string]int
}

// Define validates the given tables and returns them as a Schema. The
// declarations are copied; later changes to the arguments have no effect.
func Define(tables ...Table) (*Schema, error) {
	s := &Schema{
		tables: make([]Table, 0, len(tables)),
		byName: make(map[string]int, len(tables)),
	}
	for _, t := range tables {
		if err := validateTable(t); err != nil {
			return nil, err
		}
		if _, dup := s.byName[t.Name]; dup {
			return nil, fmt.Errorf("schema: duplicate table %q", t.Name)
		}
		s.byName[t.Name] = len(s.tables)
		s.tables = append(s.tables, cloneTable(t))
	}
	return s, nil
}

// MustDefine is like Define but panics on an invalid schema.
// This is intended for package-level schema declarations.
func MustDefine(tables ...Table) *Schema {
	s, err := Define(tables...)
	if err != nil {
		panic(err)
	}
	return s
}

// Table returns the table named name.
func (s *Schema) Table(name string) (*Table, bool) {
	i, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return &s.tables[i], true
}

// Tables returns copies of all tables in declaration order.
func (s *Schema) Tables() []Table {
	out := make([]Table, len(s.tables))
	for i, t := range s.tables {
		out[i] = cloneTable(t)
	}
	return out
}

// TableNames returns the table names in declaration order.
func (s *Schema) TableNames() []string {
	names := make([]string, len(s.tables))
	for i, t := range s.tables {
		names[i] = t.Name
	}
	return names
}

// Len returns the number of tables.
func (s *Schema) Len() int { return len(s.tables) }

func validateTable(t Table) error {
	if !validIdent(t.Name) {
		return fmt.Errorf("schema: invalid table name %q", t.Name)
	}
	if IsKeyword(t.Name) {
		return fmt.Errorf("schema: table name %q is an SQL keyword", t.Name)
	}
	if strings.HasPrefix(strings.ToLower(t.Name), "sqlite_") {
		return fmt.Errorf("schema: table name %q is reserved", t.Name)
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("schema: table %q has no columns", t.Name)
	}

	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if !validIdent(c.Name) {
			return fmt.Errorf("schema: invalid column name %q in table %q", c.Name, t.Name)
		}
		if IsKeyword(c.Name) {
			return fmt.Errorf("schema: column name %q in table %q is an SQL keyword", c.Name, t.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("schema: duplicate column %q in table %q", c.Name, t.Name)
		}
		seen[c.Name] = true
		if c.Type.IsZero() {
			return fmt.Errorf("schema: column %s.%s has no type", t.Name, c.Name)
		}
		if c.HasDefault() && !isStoredScalar(c.Default) {
			return fmt.Errorf("schema: default of %s.%s must be a stored scalar, got %T", t.Name, c.Name, c.Default)
		}
		if c.HasDefault() && !isFinite(c.Default) {
			return fmt.Errorf("schema: default of %s.%s must be a finite number, got %v", t.Name, c.Name, c.Default)
		}
	}

	indexNames := make(map[string]bool, len(t.Indexes))
	for _, idx := range t.Indexes {
		if !validIdent(idx.Name) {
			return fmt.Errorf("schema: invalid index name %q on table %q", idx.Name, t.Name)
		}
		if IsKeyword(idx.Name) {
			return fmt.Errorf("schema: index name %q on table %q is an SQL keyword", idx.Name, t.Name)
		}
		if indexNames[idx.Name] {
			return fmt.Errorf("schema: duplicate index %q on table %q", idx.Name, t.Name)
		}
		indexNames[idx.Name] = true
		if len(idx.Columns) == 0 {
			return fmt.Errorf("schema: index %q has no columns", idx.Name)
		}
		for _, col := range idx.Columns {
			if !seen[col] {
				return fmt.Errorf("schema: index %q references unknown column %q", idx.Name, col)
			}
		}
	}
	return nil
}

// validIdent accepts plain SQL identifiers. Names are rendered into SQL
// unquoted, so anything else is refused up front. Keywords are checked
// separately by IsKeyword.
func validIdent(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func isStoredScalar(v any) bool {
	switch v.(type) {
	case string, []byte, float64, float32, bool:
		return true
	}
	_, ok := toInt64(v)
	return ok
}

// isFinite reports false for NaN and infinite floats, which have no SQL literal.
func isFinite(v any) bool {
	switch f := v.(type) {
	case float64:
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	case float32:
		return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
	}
	return true
}

func cloneTable(t Table) Table {
	out := Table{
		Name:    t.Name,
		Columns: slices.Clone(t.Columns),
		Indexes: make([]Index, len(t.Indexes)),
	}
	for i, idx := range t.Indexes {
		out.Indexes[i] = Index{Name: idx.Name, Columns: slices.Clone(idx.Columns), Unique: idx.Unique}
	}
	return out
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as, bs := slices.Clone(a), slices.Clone(b)
	slices.Sort(as)
	slices.Sort(bs)
	return slices.Equal(as, bs)
}
