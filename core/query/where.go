package query

import (
	"fmt"
	"strings"

	sqlerrors "github.com/FocuswithJustin/sqlclient/core/errors"
	"github.com/FocuswithJustin/sqlclient/core/schema"
)

// Op is a comparison operator usable in a Where.
type Op string

const (
	OpEq Op = "="
	OpGt Op = ">"
	OpLt Op = "<"
	OpIn Op = "in"
)

// Cond is an operator condition on one column.
type Cond struct {
	Op  Op
	Val any
}

// Eq matches rows whose column equals v. Eq(nil) matches NULL.
func Eq(v any) Cond { return Cond{Op: OpEq, Val: v} }

// Gt matches rows whose column is greater than v.
func Gt(v any) Cond { return Cond{Op: OpGt, Val: v} }

// Lt matches rows whose column is less than v.
func Lt(v any) Cond { return Cond{Op: OpLt, Val: v} }

// In matches rows whose column equals one of vals.
func In(vals ...any) Cond { return Cond{Op: OpIn, Val: vals} }

// Where maps column names to a bare value (equality), a Cond, or nil (IS NULL).
// Conditions are joined with AND.
type Where map[string]any

// Values maps column names to logical values.
type Values map[string]any

func asCond(v any) (Cond, bool) {
	switch c := v.(type) {
	case Cond:
		return c, true
	case *Cond:
		if c != nil {
			return *c, true
		}
	}
	return Cond{}, false
}

const wherePrefix = "where_"

// whereClause renders " WHERE ..." (or "") and its bind values.
func whereClause(op string, t *schema.Table, where Where) (string, map[string]any, error) {
	if len(where) == 0 {
		return "", map[string]any{}, nil
	}
	bind, err := bindValues(op, t, where, wherePrefix, true)
	if err != nil {
		return "", nil, err
	}

	conds := make([]string, 0, len(where))
	for _, col := range t.Columns {
		raw, ok := where[col.Name]
		if !ok {
			continue
		}
		param := "$" + wherePrefix + col.Name
		v := deref(raw)
		c, isCond := asCond(v)
		switch {
		case v == nil:
			conds = append(conds, col.Name+" IS NULL")
		case !isCond:
			conds = append(conds, col.Name+" = "+param)
		case c.Op == OpIn:
			n, _ := inElements(op, t, &col, c.Val)
			params := make([]string, len(n))
			for i := range n {
				params[i] = fmt.Sprintf("%s_%d", param, i)
			}
			conds = append(conds, col.Name+" in ("+strings.Join(params, ", ")+")")
		case deref(c.Val) == nil:
			if c.Op != OpEq {
				return "", nil, sqlerrors.NewUsage(op, t.Name, col.Name, fmt.Sprintf("operator %s cannot compare with nil", c.Op))
			}
			conds = append(conds, col.Name+" IS NULL")
		default:
			conds = append(conds, fmt.Sprintf("%s %s %s", col.Name, c.Op, param))
		}
	}
	return " WHERE " + strings.Join(conds, " AND "), bind, nil
}
