package query

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/sqlclient/core/schema"
)

// CreateTable renders the CREATE TABLE statement for t. A single primary key
// column is marked inline; a composite key becomes a trailing table constraint.
func CreateTable(t *schema.Table) string {
	pk := t.PrimaryKey()
	defs := make([]string, 0, len(t.Columns)+1)
	for _, col := range t.Columns {
		def := col.Name + " " + string(col.Type.Kind())
		if !col.Nullable {
			def += " NOT NULL"
		}
		if col.PrimaryKey && len(pk) == 1 {
			def += " PRIMARY KEY"
		}
		if col.HasDefault() {
			def += " DEFAULT " + Literal(col.Default)
		}
		defs = append(defs, def)
	}
	if len(pk) > 1 {
		defs = append(defs, "PRIMARY KEY ("+strings.Join(pk, ", ")+")")
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", t.Name, strings.Join(defs, ", "))
}

// CreateIndex renders CREATE [UNIQUE] INDEX name ON table (cols).
func CreateIndex(t *schema.Table, idx schema.Index) string {
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)", unique, idx.Name, t.Name, strings.Join(idx.Columns, ", "))
}

// ListTables lists user tables, leaving out SQLite's internal ones. The
// underscore is escaped so names like sqlitelog still count as user tables.
func ListTables() string {
	return `SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\'`
}

// DropTable renders DROP TABLE for a table found in the database. The name
// is quoted when it is not a plain identifier.
func DropTable(name string) string {
	return "DROP TABLE " + quoteIdent(name)
}

// Literal renders a stored scalar as an SQL literal.
func Literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case []byte:
		return "X'" + strings.ToUpper(hex.EncodeToString(x)) + "'"
	case bool:
		if x {
			return "1"
		}
		return "0"
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	}
	// schema.Define only admits the kinds above.
	return "'" + strings.ReplaceAll(fmt.Sprint(v), "'", "''") + "'"
}

func quoteIdent(name string) string {
	plain := name != ""
	for i, r := range name {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || i > 0 && r >= '0' && r <= '9') {
			plain = false
			break
		}
	}
	if plain {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
