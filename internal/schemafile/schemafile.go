// Package schemafile reads and writes schema declaration files:
//
//	# comment
//	table events {
//	  id        text primary key
//	  createdAt datetime nullable
//	  payload   json
//	  retries   integer default 0
//	  unique index events_retries (retries)
//	}
//
// Column types are text, integer, real, blob, json, datetime and boolean.
// Modifiers may appear in any order: nullable, primary key, and default
// followed by a string ('it''s'), integer, real, blob (X'00FF'), true, false
// or null. Marking several columns primary key declares a composite key.
package schemafile

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/sqlclient/core/schema"
)

type fileNode struct {
	Tables []*tableNode `@@*`
}

type tableNode struct {
	Pos     lexer.Position
	Name    string       `"table" @Ident "{"`
	Entries []*entryNode `( @@ ";"? )* "}"`
}

type entryNode struct {
	Index  *indexNode  `  @@`
	Column *columnNode `| @@`
}

type indexNode struct {
	Pos     lexer.Position
	Unique  bool     `@"unique"? "index"`
	Name    string   `@Ident`
	Columns []string `"(" @Ident ( "," @Ident )* ")"`
}

type columnNode struct {
	Pos       lexer.Position
	Name      string          `@Ident`
	Type      string          `@Ident`
	Modifiers []*modifierNode `@@*`
}

type modifierNode struct {
	Pos        lexer.Position
	Nullable   bool         `  @"nullable"`
	PrimaryKey bool         `| @("primary" "key")`
	Default    *literalNode `| "default" @@`
}

type literalNode struct {
	Blob  *string  `  @Blob`
	Str   *string  `| @String`
	Float *float64 `| @Float`
	Int   *int64   `| @Int`
	Bool  *boolean `| @("true" | "false")`
	Null  bool     `| @"null"`
}

type boolean bool

func (b *boolean) Capture(values []string) error {
	*b = values[0] == "true"
	return nil
}

var schemaLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Blob", Pattern: `[xX]'[0-9A-Fa-f]*'`},
	{Name: "String", Pattern: `'(?:[^']|'')*'`},
	{Name: "Float", Pattern: `-?\d+(?:\.\d+)?[eE][-+]?\d+|-?\d+\.\d+`},
	{Name: "Int", Pattern: `-?\d+`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Punct", Pattern: `[{}(),;]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var schemaParser = participle.MustBuild[fileNode](
	participle.Lexer(schemaLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(2),
)

var fieldTypes = map[string]func() schema.FieldType{
	"text":     schema.Text,
	"integer":  schema.Integer,
	"real":     schema.Real,
	"blob":     schema.Blob,
	"json":     schema.JSON[any],
	"datetime": schema.Datetime,
	"boolean":  schema.Boolean,
}

// Parse reads a schema declaration. name is used in error positions.
func Parse(name, src string) (*schema.Schema, error) {
	file, err := schemaParser.ParseString(name, src)
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}

	tables := make([]schema.Table, 0, len(file.Tables))
	for _, tn := range file.Tables {
		t, err := tn.table()
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}

	s, err := schema.Define(tables...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return s, nil
}

// Load reads the schema declaration file at path.
func Load(path string) (*schema.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Parse(path, string(data))
}

func (tn *tableNode) table() (schema.Table, error) {
	t := schema.Table{Name: tn.Name}
	for _, e := range tn.Entries {
		switch {
		case e.Index != nil:
			t.Indexes = append(t.Indexes, schema.Index{
				Name:    e.Index.Name,
				Columns: e.Index.Columns,
				Unique:  e.Index.Unique,
			})
		case e.Column != nil:
			col, err := e.Column.column()
			if err != nil {
				return schema.Table{}, err
			}
			t.Columns = append(t.Columns, col)
		}
	}
	return t, nil
}

func (cn *columnNode) column() (schema.Column, error) {
	newType, ok := fieldTypes[strings.ToLower(cn.Type)]
	if !ok {
		return schema.Column{}, fmt.Errorf("%s: unknown type %q for column %s", cn.Pos, cn.Type, cn.Name)
	}
	col := schema.Column{Name: cn.Name, Type: newType()}

	var seenNullable, seenKey, seenDefault bool
	for _, m := range cn.Modifiers {
		var dup bool
		switch {
		case m.Nullable:
			dup, seenNullable = seenNullable, true
			col.Nullable = true
		case m.PrimaryKey:
			dup, seenKey = seenKey, true
			col.PrimaryKey = true
		case m.Default != nil:
			dup, seenDefault = seenDefault, true
			v, err := m.Default.value()
			if err != nil {
				return schema.Column{}, fmt.Errorf("%s: %w", m.Pos, err)
			}
			col.Default = v
		}
		if dup {
			return schema.Column{}, fmt.Errorf("%s: repeated modifier on column %s", m.Pos, cn.Name)
		}
	}
	return col, nil
}

func (l *literalNode) value() (any, error) {
	switch {
	case l.Blob != nil:
		raw := *l.Blob
		b, err := hex.DecodeString(raw[2 : len(raw)-1])
		if err != nil {
			return nil, fmt.Errorf("blob literal %s: %w", raw, err)
		}
		return b, nil
	case l.Str != nil:
		raw := *l.Str
		return strings.ReplaceAll(raw[1:len(raw)-1], "''", "'"), nil
	case l.Float != nil:
		return *l.Float, nil
	case l.Int != nil:
		return *l.Int, nil
	case l.Bool != nil:
		return bool(*l.Bool), nil
	}
	// null: no default.
	return nil, nil
}

// Format renders s as a schema declaration that Parse reads back to an
// equivalent schema.
func Format(s *schema.Schema) string {
	var sb strings.Builder
	for i, t := range s.Tables() {
		if i > 0 {
			sb.WriteString("\n")
		}
		formatTable(&sb, t)
	}
	return sb.String()
}

func formatTable(sb *strings.Builder, t schema.Table) {
	nameWidth, typeWidth := 0, 0
	for _, col := range t.Columns {
		nameWidth = max(nameWidth, len(col.Name))
		typeWidth = max(typeWidth, len(col.Type.Name()))
	}

	fmt.Fprintf(sb, "table %s {\n", t.Name)
	for _, col := range t.Columns {
		var mods []string
		if col.PrimaryKey {
			mods = append(mods, "primary key")
		}
		if col.Nullable {
			mods = append(mods, "nullable")
		}
		if col.HasDefault() {
			mods = append(mods, "default "+formatLiteral(col.Default))
		}
		line := fmt.Sprintf("%-*s %-*s %s", nameWidth, col.Name, typeWidth, col.Type.Name(), strings.Join(mods, " "))
		sb.WriteString("  " + strings.TrimRight(line, " ") + "\n")
	}
	for _, idx := range t.Indexes {
		unique := ""
		if idx.Unique {
			unique = "unique "
		}
		fmt.Fprintf(sb, "  %sindex %s (%s)\n", unique, idx.Name, strings.Join(idx.Columns, ", "))
	}
	sb.WriteString("}\n")
}

func formatLiteral(v any) string {
	switch x := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case []byte:
		return "X'" + strings.ToUpper(hex.EncodeToString(x)) + "'"
	case bool:
		return strconv.FormatBool(x)
	case float32:
		return formatFloat(float64(x))
	case float64:
		return formatFloat(x)
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
