package query

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	sqlerrors "github.com/FocuswithJustin/sqlclient/core/errors"
	"github.com/FocuswithJustin/sqlclient/core/schema"
)

var testSchema = schema.MustDefine(
	schema.Table{
		Name: "events",
		Columns: []schema.Column{
			{Name: "id", Type: schema.Text(), PrimaryKey: true},
			{Name: "createdAt", Type: schema.Datetime(), Nullable: true},
			{Name: "type", Type: schema.Text()},
			{Name: "data", Type: schema.JSON[map[string]any]()},
		},
		Indexes: []schema.Index{{Name: "events_type_created", Columns: []string{"type", "createdAt"}, Unique: true}},
	},
	schema.Table{
		Name: "tags",
		Columns: []schema.Column{
			{Name: "name", Type: schema.Text(), PrimaryKey: true},
			{Name: "kind", Type: schema.Text(), PrimaryKey: true},
			{Name: "weight", Type: schema.Integer(), Default: 1},
			{Name: "note", Type: schema.Text(), Nullable: true, Default: "it's"},
			{Name: "raw", Type: schema.Blob(), Nullable: true, Default: []byte{0x00, 0xff}},
			{Name: "active", Type: schema.Boolean(), Default: true},
		},
	},
	schema.Table{
		Name: "counters",
		Columns: []schema.Column{
			{Name: "id", Type: schema.Integer(), PrimaryKey: true},
			{Name: "n", Type: schema.Integer()},
		},
	},
)

func table(t *testing.T, name string) *schema.Table {
	t.Helper()
	tbl, ok := testSchema.Table(name)
	if !ok {
		t.Fatalf("table %q not in test schema", name)
	}
	return tbl
}

func assertUsage(t *testing.T, err error, column string) {
	t.Helper()
	var ue *sqlerrors.UsageError
	if !errors.As(err, &ue) {
		t.Fatalf("error = %v (%T), want *UsageError", err, err)
	}
	if column != "" && ue.Column != column {
		t.Errorf("UsageError.Column = %q, want %q", ue.Column, column)
	}
}

func TestFindManyRows(t *testing.T) {
	events := table(t, "events")

	tests := []struct {
		name     string
		where    Where
		limit    int
		wantSQL  string
		wantBind map[string]any
	}{
		{
			name:     "no where",
			wantSQL:  "SELECT * FROM events",
			wantBind: map[string]any{},
		},
		{
			name:     "in",
			where:    Where{"id": In("a", "b")},
			wantSQL:  "SELECT * FROM events WHERE id in ($where_id_0, $where_id_1)",
			wantBind: map[string]any{"where_id_0": "a", "where_id_1": "b"},
		},
		{
			name:     "greater than",
			where:    Where{"id": Gt("0")},
			wantSQL:  "SELECT * FROM events WHERE id > $where_id",
			wantBind: map[string]any{"where_id": "0"},
		},
		{
			name:     "null and equality in schema order with limit",
			where:    Where{"type": "click", "createdAt": nil},
			limit:    5,
			wantSQL:  "SELECT * FROM events WHERE createdAt IS NULL AND type = $where_type LIMIT 5",
			wantBind: map[string]any{"where_type": "click"},
		},
		{
			name:     "eq nil and lt datetime",
			where:    Where{"createdAt": Lt(time.UnixMilli(1000)), "type": Eq(nil)},
			wantSQL:  "SELECT * FROM events WHERE createdAt < $where_createdAt AND type IS NULL",
			wantBind: map[string]any{"where_createdAt": int64(1000)},
		},
		{
			name:     "in with typed slice",
			where:    Where{"id": Cond{Op: OpIn, Val: []string{"x"}}},
			wantSQL:  "SELECT * FROM events WHERE id in ($where_id_0)",
			wantBind: map[string]any{"where_id_0": "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, bind, err := FindManyRows(events, tt.where, tt.limit)
			if err != nil {
				t.Fatalf("FindManyRows() error = %v", err)
			}
			if sql != tt.wantSQL {
				t.Errorf("sql = %q\nwant  %q", sql, tt.wantSQL)
			}
			if !reflect.DeepEqual(bind, tt.wantBind) {
				t.Errorf("bind = %#v, want %#v", bind, tt.wantBind)
			}
		})
	}
}

func TestFindManyRowsErrors(t *testing.T) {
	events := table(t, "events")

	tests := []struct {
		name   string
		where  Where
		column string
	}{
		{name: "unknown column", where: Where{"nope": 1}, column: "nope"},
		{name: "unknown operator", where: Where{"id": Cond{Op: "like", Val: "a%"}}, column: "id"},
		{name: "gt nil", where: Where{"id": Gt(nil)}, column: "id"},
		{name: "in non-list", where: Where{"id": Cond{Op: OpIn, Val: "a"}}, column: "id"},
		{name: "in with nil", where: Where{"id": In("a", nil)}, column: "id"},
		{name: "wrong type", where: Where{"createdAt": "yesterday"}, column: "createdAt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := FindManyRows(events, tt.where, 0)
			assertUsage(t, err, tt.column)
		})
	}
}

func TestCountRows(t *testing.T) {
	sql, bind, err := CountRows(table(t, "events"), Where{"type": "click"})
	if err != nil {
		t.Fatal(err)
	}
	if want := "SELECT count(1) FROM events WHERE type = $where_type"; sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
	if !reflect.DeepEqual(bind, map[string]any{"where_type": "click"}) {
		t.Errorf("bind = %#v", bind)
	}
}

func TestInsertRow(t *testing.T) {
	events := table(t, "events")

	t.Run("nullable column omitted", func(t *testing.T) {
		sql, bind, err := InsertRow(events, Values{"id": "a", "type": "click", "data": map[string]any{"x": 1}}, false)
		if err != nil {
			t.Fatal(err)
		}
		if want := "INSERT INTO events (id, type, data) VALUES ($id, $type, $data)"; sql != want {
			t.Errorf("sql = %q, want %q", sql, want)
		}
		want := map[string]any{"id": "a", "type": "click", "data": `{"x":1}`}
		if !reflect.DeepEqual(bind, want) {
			t.Errorf("bind = %#v, want %#v", bind, want)
		}
	})

	t.Run("nullable column given nil binds NULL", func(t *testing.T) {
		sql, bind, err := InsertRow(events, Values{"id": "a", "createdAt": nil, "type": "click", "data": map[string]any{}}, true)
		if err != nil {
			t.Fatal(err)
		}
		if want := "INSERT OR REPLACE INTO events (id, createdAt, type, data) VALUES ($id, $createdAt, $type, $data)"; sql != want {
			t.Errorf("sql = %q, want %q", sql, want)
		}
		if v, ok := bind["createdAt"]; !ok || v != nil {
			t.Errorf("bind[createdAt] = %v, %v; want nil, true", v, ok)
		}
	})

	t.Run("pointer values are dereferenced", func(t *testing.T) {
		typ := "view"
		var missing *time.Time
		_, bind, err := InsertRow(events, Values{"id": "a", "createdAt": missing, "type": &typ, "data": map[string]any{}}, false)
		if err != nil {
			t.Fatal(err)
		}
		if bind["type"] != "view" || bind["createdAt"] != nil {
			t.Errorf("bind = %#v", bind)
		}
	})

	t.Run("non-nullable column missing", func(t *testing.T) {
		_, _, err := InsertRow(events, Values{"id": "a", "data": map[string]any{}}, false)
		assertUsage(t, err, "type")
	})

	t.Run("non-nullable column nil", func(t *testing.T) {
		_, _, err := InsertRow(events, Values{"id": "a", "type": nil, "data": map[string]any{}}, false)
		assertUsage(t, err, "type")
	})

	t.Run("condition refused", func(t *testing.T) {
		_, _, err := InsertRow(events, Values{"id": Gt("a"), "type": "x", "data": map[string]any{}}, false)
		assertUsage(t, err, "id")
	})

	t.Run("defaults and rowid key may be omitted", func(t *testing.T) {
		sql, _, err := InsertRow(table(t, "tags"), Values{"name": "go", "kind": "lang", "weight": nil}, false)
		if err != nil {
			t.Fatal(err)
		}
		if want := "INSERT INTO tags (name, kind) VALUES ($name, $kind)"; sql != want {
			t.Errorf("sql = %q, want %q", sql, want)
		}

		sql, _, err = InsertRow(table(t, "counters"), Values{"n": 1}, false)
		if err != nil {
			t.Fatal(err)
		}
		if want := "INSERT INTO counters (n) VALUES ($n)"; sql != want {
			t.Errorf("sql = %q, want %q", sql, want)
		}
	})
}

func TestInsertOrIgnoreRow(t *testing.T) {
	sql, _, err := InsertOrIgnoreRow(table(t, "counters"), Values{"id": 1, "n": 2})
	if err != nil {
		t.Fatal(err)
	}
	if want := "INSERT OR IGNORE INTO counters (id, n) VALUES ($id, $n)"; sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
}

func TestInsertRows(t *testing.T) {
	events := table(t, "events")

	sql, bind, err := InsertRows(events, []Values{
		{"id": "a", "createdAt": time.UnixMilli(5), "type": "click", "data": map[string]any{}},
		{"id": "b", "type": "view", "data": map[string]any{}},
	})
	if err != nil {
		t.Fatal(err)
	}
	wantSQL := "INSERT INTO events (id, createdAt, type, data) VALUES " +
		"($item_0_id, $item_0_createdAt, $item_0_type, $item_0_data), " +
		"($item_1_id, $item_1_createdAt, $item_1_type, $item_1_data)"
	if sql != wantSQL {
		t.Errorf("sql = %q\nwant  %q", sql, wantSQL)
	}
	wantBind := map[string]any{
		"item_0_id": "a", "item_0_createdAt": int64(5), "item_0_type": "click", "item_0_data": "{}",
		"item_1_id": "b", "item_1_createdAt": nil, "item_1_type": "view", "item_1_data": "{}",
	}
	if !reflect.DeepEqual(bind, wantBind) {
		t.Errorf("bind = %#v\nwant   %#v", bind, wantBind)
	}

	_, _, err = InsertRows(events, nil)
	assertUsage(t, err, "")

	_, _, err = InsertRows(events, []Values{
		{"id": "a", "type": "click", "data": map[string]any{}},
		{"id": "b", "data": map[string]any{}},
	})
	assertUsage(t, err, "type")
}

func TestChunkRows(t *testing.T) {
	t.Run("many params per row", func(t *testing.T) {
		chunks, err := ChunkRows([]int{1, 2, 3}, 500, 999)
		if err != nil {
			t.Fatal(err)
		}
		if len(chunks) != 3 {
			t.Errorf("len(chunks) = %d, want 3", len(chunks))
		}
	})

	t.Run("near equal sizes", func(t *testing.T) {
		rows := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
		chunks, err := ChunkRows(rows, 3, 9)
		if err != nil {
			t.Fatal(err)
		}
		var sizes []int
		for _, c := range chunks {
			sizes = append(sizes, len(c))
		}
		if !reflect.DeepEqual(sizes, []int{3, 3, 2, 2}) {
			t.Errorf("sizes = %v, want [3 3 2 2]", sizes)
		}
	})

	t.Run("invariants", func(t *testing.T) {
		for n := 1; n <= 60; n++ {
			for k := 1; k <= 12; k++ {
				for _, limit := range []int{12, 13, 50, 999} {
					rows := make([]int, n)
					for i := range rows {
						rows[i] = i
					}
					chunks, err := ChunkRows(rows, k, limit)
					if err != nil {
						t.Fatalf("n=%d k=%d limit=%d: %v", n, k, limit, err)
					}
					maxRows := limit / k
					if want := (n + maxRows - 1) / maxRows; len(chunks) != want {
						t.Fatalf("n=%d k=%d limit=%d: %d chunks, want %d", n, k, limit, len(chunks), want)
					}
					var joined []int
					for _, c := range chunks {
						if len(c)*k > limit {
							t.Fatalf("n=%d k=%d limit=%d: chunk of %d rows exceeds limit", n, k, limit, len(c))
						}
						joined = append(joined, c...)
					}
					if !reflect.DeepEqual(joined, rows) {
						t.Fatalf("n=%d k=%d limit=%d: concatenation changed rows", n, k, limit)
					}
				}
			}
		}
	})

	t.Run("row wider than limit", func(t *testing.T) {
		_, err := ChunkRows([]int{1}, 1000, 999)
		assertUsage(t, err, "")
	})

	t.Run("default limit", func(t *testing.T) {
		rows := make([]int, 1000)
		chunks, err := ChunkRows(rows, 1, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(chunks) != 2 {
			t.Errorf("len(chunks) = %d, want 2", len(chunks))
		}
	})
}

func TestUpdateRows(t *testing.T) {
	events := table(t, "events")

	sql, bind, err := UpdateRows(events, Values{"type": "x", "createdAt": nil}, Where{"id": "a"})
	if err != nil {
		t.Fatal(err)
	}
	if want := "UPDATE events SET createdAt = $update_createdAt, type = $update_type WHERE id = $where_id"; sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
	want := map[string]any{"update_createdAt": nil, "update_type": "x", "where_id": "a"}
	if !reflect.DeepEqual(bind, want) {
		t.Errorf("bind = %#v, want %#v", bind, want)
	}

	_, _, err = UpdateRows(events, Values{}, Where{"id": "a"})
	assertUsage(t, err, "")

	_, _, err = UpdateRows(events, Values{"type": nil}, nil)
	assertUsage(t, err, "type")
}

func TestUpsertRow(t *testing.T) {
	events := table(t, "events")
	create := Values{"id": "a", "type": "click", "data": map[string]any{}}

	t.Run("update on primary key conflict", func(t *testing.T) {
		sql, bind, err := UpsertRow(events, create, Values{"type": "view"}, Where{"id": "a"})
		if err != nil {
			t.Fatal(err)
		}
		want := "INSERT INTO events (id, type, data) VALUES ($create_id, $create_type, $create_data) " +
			"ON CONFLICT (id) DO UPDATE SET type = $update_type"
		if sql != want {
			t.Errorf("sql = %q\nwant  %q", sql, want)
		}
		wantBind := map[string]any{"create_id": "a", "create_type": "click", "create_data": "{}", "update_type": "view"}
		if !reflect.DeepEqual(bind, wantBind) {
			t.Errorf("bind = %#v", bind)
		}
	})

	t.Run("unique index target and empty update", func(t *testing.T) {
		sql, _, err := UpsertRow(events, create, nil, Where{"createdAt": nil, "type": "click"})
		if err != nil {
			t.Fatal(err)
		}
		want := "INSERT INTO events (id, type, data) VALUES ($create_id, $create_type, $create_data) " +
			"ON CONFLICT (createdAt, type) DO NOTHING"
		if sql != want {
			t.Errorf("sql = %q\nwant  %q", sql, want)
		}
	})

	t.Run("target is not unique", func(t *testing.T) {
		_, _, err := UpsertRow(events, create, Values{"type": "view"}, Where{"type": "click"})
		assertUsage(t, err, "")
	})

	t.Run("empty where", func(t *testing.T) {
		_, _, err := UpsertRow(events, create, nil, nil)
		assertUsage(t, err, "")
	})
}

func TestCreateTable(t *testing.T) {
	tests := []struct {
		table string
		want  string
	}{
		{
			table: "events",
			want:  "CREATE TABLE events (id text NOT NULL PRIMARY KEY, createdAt integer, type text NOT NULL, data text NOT NULL)",
		},
		{
			table: "tags",
			want: "CREATE TABLE tags (name text NOT NULL, kind text NOT NULL, weight integer NOT NULL DEFAULT 1, " +
				"note text DEFAULT 'it''s', raw blob DEFAULT X'00FF', active integer NOT NULL DEFAULT 1, PRIMARY KEY (name, kind))",
		},
	}
	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			if got := CreateTable(table(t, tt.table)); got != tt.want {
				t.Errorf("CreateTable() = %q\nwant            %q", got, tt.want)
			}
		})
	}
}

func TestDDLHelpers(t *testing.T) {
	events := table(t, "events")
	if got, want := CreateIndex(events, events.Indexes[0]), "CREATE UNIQUE INDEX events_type_created ON events (type, createdAt)"; got != want {
		t.Errorf("CreateIndex() = %q, want %q", got, want)
	}
	if got, want := CreateIndex(events, schema.Index{Name: "by_type", Columns: []string{"type"}}), "CREATE INDEX by_type ON events (type)"; got != want {
		t.Errorf("CreateIndex() = %q, want %q", got, want)
	}
	if got, want := ListTables(), `SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\'`; got != want {
		t.Errorf("ListTables() = %q, want %q", got, want)
	}
	if got, want := DropTable("events"), "DROP TABLE events"; got != want {
		t.Errorf("DropTable() = %q, want %q", got, want)
	}
	if got, want := DropTable(`odd "name"`), `DROP TABLE "odd ""name"""`; got != want {
		t.Errorf("DropTable() = %q, want %q", got, want)
	}
}

func TestLiteral(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{"plain", "'plain'"},
		{"'; DROP TABLE x; --", "'''; DROP TABLE x; --'"},
		{[]byte{0xde, 0xad}, "X'DEAD'"},
		{42, "42"},
		{int64(-7), "-7"},
		{uint16(9), "9"},
		{1.5, "1.5"},
		{false, "0"},
	}
	for _, tt := range tests {
		if got := Literal(tt.in); got != tt.want {
			t.Errorf("Literal(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMakeBindValues(t *testing.T) {
	events := table(t, "events")

	bind, err := MakeBindValues(events, map[string]any{"id": In("a", "b"), "createdAt": nil}, "p_", true)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"p_id_0": "a", "p_id_1": "b"}
	if !reflect.DeepEqual(bind, want) {
		t.Errorf("bind = %#v, want %#v", bind, want)
	}

	bind, err = MakeBindValues(events, map[string]any{"createdAt": nil}, "", false)
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := bind["createdAt"]; !ok || v != nil {
		t.Errorf("nullable nil should bind NULL, got %v, %v", v, ok)
	}
}

func TestBindNameCollision(t *testing.T) {
	s := schema.MustDefine(schema.Table{
		Name: "t",
		Columns: []schema.Column{
			{Name: "id", Type: schema.Text()},
			{Name: "id_0", Type: schema.Text()},
		},
	})
	tbl, _ := s.Table("t")

	_, _, err := FindManyRows(tbl, Where{"id": In("a", "b"), "id_0": "x"}, 0)
	assertUsage(t, err, "id_0")
	if !strings.Contains(err.Error(), "$where_id_0") || !strings.Contains(err.Error(), "column id") {
		t.Errorf("error should name the parameter and both columns: %v", err)
	}

	_, err = MakeBindValues(tbl, map[string]any{"id": In("a"), "id_0": "x"}, "", false)
	assertUsage(t, err, "id_0")

	// Without the in list the names are distinct.
	sql, bind, err := FindManyRows(tbl, Where{"id": "a", "id_0": "x"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if want := "SELECT * FROM t WHERE id = $where_id AND id_0 = $where_id_0"; sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
	if want := map[string]any{"where_id": "a", "where_id_0": "x"}; !reflect.DeepEqual(bind, want) {
		t.Errorf("bind = %#v, want %#v", bind, want)
	}
}

func TestMergeBind(t *testing.T) {
	tbl := table(t, "counters")
	dst := map[string]any{"a": int64(1)}
	if err := mergeBind("update", tbl, dst, map[string]any{"b": int64(2)}); err != nil {
		t.Fatal(err)
	}
	if len(dst) != 2 {
		t.Errorf("dst = %v", dst)
	}
	assertUsage(t, mergeBind("update", tbl, dst, map[string]any{"a": int64(3)}), "")
	if dst["a"] != int64(1) {
		t.Errorf("existing value overwritten: %v", dst["a"])
	}
}
