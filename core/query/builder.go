// Package query renders schema-checked SQL statements and their named bind
// values. Every function is pure: it returns SQL text with $name placeholders
// and a map of stored values keyed by name (without the $ sigil).
//
// Columns are always rendered in schema declaration order, so the same input
// produces the same statement.
package query

import (
	"fmt"
	"slices"
	"strings"

	sqlerrors "github.com/FocuswithJustin/sqlclient/core/errors"
	"github.com/FocuswithJustin/sqlclient/core/schema"
)

// MaxVariables is the default limit on bind parameters in one statement.
const MaxVariables = 999

// FindManyRows renders SELECT * FROM table [WHERE ...] [LIMIT n]. A limit of
// zero or less means no limit.
func FindManyRows(t *schema.Table, where Where, limit int) (string, map[string]any, error) {
	clause, bind, err := whereClause("findMany", t, where)
	if err != nil {
		return "", nil, err
	}
	sql := "SELECT * FROM " + t.Name + clause
	if limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", limit)
	}
	return sql, bind, nil
}

// CountRows renders SELECT count(1) FROM table [WHERE ...].
func CountRows(t *schema.Table, where Where) (string, map[string]any, error) {
	clause, bind, err := whereClause("count", t, where)
	if err != nil {
		return "", nil, err
	}
	return "SELECT count(1) FROM " + t.Name + clause, bind, nil
}

// InsertRow renders INSERT [OR REPLACE] INTO table (...) VALUES (...).
func InsertRow(t *schema.Table, values Values, orReplace bool) (string, map[string]any, error) {
	verb := "INSERT INTO"
	if orReplace {
		verb = "INSERT OR REPLACE INTO"
	}
	return insertRow("create", verb, t, values)
}

// InsertOrIgnoreRow renders INSERT OR IGNORE INTO table (...) VALUES (...).
func InsertOrIgnoreRow(t *schema.Table, values Values) (string, map[string]any, error) {
	return insertRow("createOrIgnore", "INSERT OR IGNORE INTO", t, values)
}

func insertRow(op, verb string, t *schema.Table, values Values) (string, map[string]any, error) {
	cols, bind, err := insertValues(op, t, values, "")
	if err != nil {
		return "", nil, err
	}
	sql := fmt.Sprintf("%s %s (%s) VALUES (%s)", verb, t.Name, strings.Join(cols, ", "), placeholders("", cols))
	return sql, bind, nil
}

// insertValues validates a single row for insertion and returns the listed
// columns in schema order with their bind values.
func insertValues(op string, t *schema.Table, values Values, prefix string) ([]string, map[string]any, error) {
	if err := checkColumns(op, t, values); err != nil {
		return nil, nil, err
	}
	if err := checkNoConds(op, t, values); err != nil {
		return nil, nil, err
	}

	var cols []string
	provided := make(map[string]any, len(values))
	for _, col := range t.Columns {
		v, ok := values[col.Name]
		if ok && deref(v) == nil && !col.Nullable && col.HasDefault() {
			// Leave the column out so the engine applies its default.
			ok = false
		}
		if !ok {
			if !col.Nullable && !omittable(t, col) {
				return nil, nil, sqlerrors.NewUsage(op, t.Name, col.Name, "non-nullable column is missing")
			}
			continue
		}
		cols = append(cols, col.Name)
		provided[col.Name] = v
	}
	if len(cols) == 0 {
		return nil, nil, sqlerrors.NewUsage(op, t.Name, "", "no values given")
	}

	bind, err := bindValues(op, t, provided, prefix, false)
	if err != nil {
		return nil, nil, err
	}
	return cols, bind, nil
}

// omittable reports whether a non-nullable column may be left out of an
// insert: it has a default, or it is the table's sole integer primary key
// (an alias of the rowid).
func omittable(t *schema.Table, col schema.Column) bool {
	if col.HasDefault() {
		return true
	}
	pk := t.PrimaryKey()
	return col.PrimaryKey && len(pk) == 1 && col.Type.Kind() == schema.KindInteger
}

// InsertRows renders one multi-row insert. Parameters are named
// item_<row>_<column>. The column list is the union of the columns provided
// by any row; a row that omits a nullable column binds NULL for it.
func InsertRows(t *schema.Table, rows []Values) (string, map[string]any, error) {
	const op = "createMany"
	if len(rows) == 0 {
		return "", nil, sqlerrors.NewUsage(op, t.Name, "", "no rows given")
	}
	cols, err := unionColumns(op, t, rows)
	if err != nil {
		return "", nil, err
	}
	for _, col := range t.Columns {
		if !col.Nullable && !slices.Contains(cols, col.Name) && !omittable(t, col) {
			return "", nil, sqlerrors.NewUsage(op, t.Name, col.Name, "non-nullable column is missing")
		}
	}

	bind := make(map[string]any, len(rows)*len(cols))
	tuples := make([]string, len(rows))
	for i, row := range rows {
		if err := checkNoConds(op, t, row); err != nil {
			return "", nil, err
		}
		prefix := fmt.Sprintf("item_%d_", i)
		full := make(Values, len(cols))
		for _, name := range cols {
			v, ok := row[name]
			if col, _ := t.Column(name); !ok && !col.Nullable {
				return "", nil, sqlerrors.NewUsage(op, t.Name, name, fmt.Sprintf("non-nullable column is missing in row %d", i))
			}
			full[name] = v
		}
		rowBind, err := bindValues(op, t, full, prefix, false)
		if err != nil {
			return "", nil, err
		}
		if err := mergeBind(op, t, bind, rowBind); err != nil {
			return "", nil, err
		}
		tuples[i] = "(" + placeholders(prefix, cols) + ")"
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", t.Name, strings.Join(cols, ", "), strings.Join(tuples, ", "))
	return sql, bind, nil
}

// ColumnsPerRow returns the number of bind parameters one row of a multi-row
// insert of rows uses.
func ColumnsPerRow(t *schema.Table, rows []Values) (int, error) {
	cols, err := unionColumns("createMany", t, rows)
	if err != nil {
		return 0, err
	}
	return len(cols), nil
}

func unionColumns(op string, t *schema.Table, rows []Values) ([]string, error) {
	present := make(map[string]bool)
	for _, row := range rows {
		if err := checkColumns(op, t, row); err != nil {
			return nil, err
		}
		for name := range row {
			present[name] = true
		}
	}
	var cols []string
	for _, col := range t.Columns {
		if present[col.Name] {
			cols = append(cols, col.Name)
		}
	}
	if len(cols) == 0 {
		return nil, sqlerrors.NewUsage(op, t.Name, "", "no values given")
	}
	return cols, nil
}

// UpdateRows renders UPDATE table SET col = $update_col, ... [WHERE ...].
func UpdateRows(t *schema.Table, values Values, where Where) (string, map[string]any, error) {
	const op = "update"
	if len(values) == 0 {
		return "", nil, sqlerrors.NewUsage(op, t.Name, "", "no values to update")
	}
	sets, bind, err := setClause(op, t, values)
	if err != nil {
		return "", nil, err
	}
	clause, whereBind, err := whereClause(op, t, where)
	if err != nil {
		return "", nil, err
	}
	if err := mergeBind(op, t, bind, whereBind); err != nil {
		return "", nil, err
	}
	return "UPDATE " + t.Name + " SET " + sets + clause, bind, nil
}

const (
	createPrefix = "create_"
	updatePrefix = "update_"
)

func setClause(op string, t *schema.Table, values Values) (string, map[string]any, error) {
	if err := checkNoConds(op, t, values); err != nil {
		return "", nil, err
	}
	bind, err := bindValues(op, t, values, updatePrefix, false)
	if err != nil {
		return "", nil, err
	}
	var sets []string
	for _, col := range t.Columns {
		if _, ok := values[col.Name]; ok {
			sets = append(sets, fmt.Sprintf("%s = $%s%s", col.Name, updatePrefix, col.Name))
		}
	}
	return strings.Join(sets, ", "), bind, nil
}

// UpsertRow renders an INSERT ... ON CONFLICT (...) DO UPDATE statement. The
// conflict target is the set of where keys, which must be the primary key or
// the columns of a unique index. An empty update renders DO NOTHING. Only the
// keys of where are used.
func UpsertRow(t *schema.Table, create, update Values, where Where) (string, map[string]any, error) {
	const op = "upsert"
	if err := checkColumns(op, t, where); err != nil {
		return "", nil, err
	}
	var target []string
	for _, col := range t.Columns {
		if _, ok := where[col.Name]; ok {
			target = append(target, col.Name)
		}
	}
	if len(target) == 0 {
		return "", nil, sqlerrors.NewUsage(op, t.Name, "", "where must name the conflict columns")
	}
	if !t.IsUniqueKey(target) {
		return "", nil, sqlerrors.NewUsage(op, t.Name, "", fmt.Sprintf("conflict target (%s) is not the primary key or a unique index", strings.Join(target, ", ")))
	}

	cols, bind, err := insertValues(op, t, create, createPrefix)
	if err != nil {
		return "", nil, err
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s)",
		t.Name, strings.Join(cols, ", "), placeholders(createPrefix, cols), strings.Join(target, ", "))

	if len(update) == 0 {
		return sql + " DO NOTHING", bind, nil
	}
	sets, updateBind, err := setClause(op, t, update)
	if err != nil {
		return "", nil, err
	}
	if err := mergeBind(op, t, bind, updateBind); err != nil {
		return "", nil, err
	}
	return sql + " DO UPDATE SET " + sets, bind, nil
}

func placeholders(prefix string, cols []string) string {
	ps := make([]string, len(cols))
	for i, c := range cols {
		ps[i] = "$" + prefix + c
	}
	return strings.Join(ps, ", ")
}
