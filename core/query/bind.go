package query

import (
	"fmt"
	"reflect"
	"sort"

	sqlerrors "github.com/FocuswithJustin/sqlclient/core/errors"
	"github.com/FocuswithJustin/sqlclient/core/schema"
)

// MakeBindValues encodes values through their column codecs and names each
// parameter prefix+column. A Cond with the in operator yields one parameter
// per element, suffixed _0, _1, ... When skipNil is set nil values are left
// out; otherwise a nil value binds NULL and is refused for non-nullable
// columns. Entries are processed in schema declaration order.
func MakeBindValues(t *schema.Table, values map[string]any, prefix string, skipNil bool) (map[string]any, error) {
	return bindValues("bind", t, values, prefix, skipNil)
}

func bindValues(op string, t *schema.Table, values map[string]any, prefix string, skipNil bool) (map[string]any, error) {
	if err := checkColumns(op, t, values); err != nil {
		return nil, err
	}
	bind := make(map[string]any, len(values))
	owners := make(map[string]string, len(values))
	for i := range t.Columns {
		col := &t.Columns[i]
		v, ok := values[col.Name]
		if !ok {
			continue
		}
		put := func(name string, stored any) error {
			if other, dup := owners[name]; dup {
				return sqlerrors.NewUsage(op, t.Name, col.Name,
					fmt.Sprintf("parameter $%s of column %s collides with column %s", name, col.Name, other))
			}
			owners[name] = col.Name
			bind[name] = stored
			return nil
		}
		if err := bindColumn(op, t, col, v, prefix+col.Name, skipNil, put); err != nil {
			return nil, err
		}
	}
	return bind, nil
}

func bindColumn(op string, t *schema.Table, col *schema.Column, v any, name string, skipNil bool, put func(string, any) error) error {
	v = deref(v)

	if c, ok := asCond(v); ok {
		switch c.Op {
		case OpIn:
			elems, err := inElements(op, t, col, c.Val)
			if err != nil {
				return err
			}
			for i, el := range elems {
				if el == nil {
					return sqlerrors.NewUsage(op, t.Name, col.Name, "in list cannot contain nil")
				}
				stored, err := encode(op, t, col, el)
				if err != nil {
					return err
				}
				if err := put(fmt.Sprintf("%s_%d", name, i), stored); err != nil {
					return err
				}
			}
			return nil
		case OpEq, OpGt, OpLt:
			v = deref(c.Val)
		default:
			return sqlerrors.NewUsage(op, t.Name, col.Name, fmt.Sprintf("unknown operator %q", c.Op))
		}
	}

	if v == nil {
		if skipNil {
			return nil
		}
		if !col.Nullable {
			return sqlerrors.NewUsage(op, t.Name, col.Name, "non-nullable column cannot be null")
		}
		return put(name, nil)
	}

	stored, err := encode(op, t, col, v)
	if err != nil {
		return err
	}
	return put(name, stored)
}

// mergeBind copies src into dst. A name bound in both is a usage error.
func mergeBind(op string, t *schema.Table, dst, src map[string]any) error {
	for name, v := range src {
		if _, dup := dst[name]; dup {
			return sqlerrors.NewUsage(op, t.Name, "", fmt.Sprintf("parameter $%s is bound twice", name))
		}
		dst[name] = v
	}
	return nil
}

func encode(op string, t *schema.Table, col *schema.Column, v any) (any, error) {
	stored, err := col.Type.Codec().Encode(v)
	if err != nil {
		return nil, sqlerrors.NewUsage(op, t.Name, col.Name, err.Error())
	}
	return stored, nil
}

// checkColumns refuses keys that are not columns of t. Unknown keys are
// reported in sorted order so the error is stable.
func checkColumns(op string, t *schema.Table, values map[string]any) error {
	var unknown []string
	for name := range values {
		if _, ok := t.Column(name); !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return sqlerrors.NewUsage(op, t.Name, unknown[0], "unknown column")
}

// checkNoConds refuses operator conditions outside of where clauses.
func checkNoConds(op string, t *schema.Table, values map[string]any) error {
	for _, col := range t.Columns {
		if v, ok := values[col.Name]; ok {
			if _, isCond := asCond(deref(v)); isCond {
				return sqlerrors.NewUsage(op, t.Name, col.Name, "operator conditions are only valid in where")
			}
		}
	}
	return nil
}

func inElements(op string, t *schema.Table, col *schema.Column, val any) ([]any, error) {
	if list, ok := val.([]any); ok {
		return list, nil
	}
	rv := reflect.ValueOf(val)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, sqlerrors.NewUsage(op, t.Name, col.Name, fmt.Sprintf("in expects a list, got %T", val))
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

// deref replaces pointers with the value they point to. A nil pointer is nil.
func deref(v any) any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}
