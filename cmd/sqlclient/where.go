package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/FocuswithJustin/sqlclient/core/query"
	"github.com/FocuswithJustin/sqlclient/core/schema"
)

// parseWhere turns col=value, col>value and col<value flags into a Where.
// Values are read according to the column type; "null" with = matches NULL.
func parseWhere(s *schema.Schema, table string, conds []string) (query.Where, error) {
	t, ok := s.Table(table)
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}

	where := make(query.Where, len(conds))
	for _, cond := range conds {
		i := strings.IndexAny(cond, "=<>")
		if i <= 0 {
			return nil, fmt.Errorf("condition %q must look like col=value, col>value or col<value", cond)
		}
		name, op, raw := strings.TrimSpace(cond[:i]), cond[i], strings.TrimSpace(cond[i+1:])

		col, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("unknown column %q in table %s (columns: %s)", name, table, strings.Join(t.ColumnNames(), ", "))
		}
		if _, dup := where[name]; dup {
			return nil, fmt.Errorf("column %s has more than one condition", name)
		}

		if raw == "null" {
			if op != '=' {
				return nil, fmt.Errorf("condition %q: only = can match null", cond)
			}
			where[name] = nil
			continue
		}
		v, err := parseValue(col.Type.Name(), raw)
		if err != nil {
			return nil, fmt.Errorf("condition %q: %w", cond, err)
		}

		switch op {
		case '>':
			where[name] = query.Gt(v)
		case '<':
			where[name] = query.Lt(v)
		default:
			where[name] = v
		}
	}
	return where, nil
}

func parseValue(typeName, raw string) (any, error) {
	switch typeName {
	case "integer":
		return strconv.ParseInt(raw, 10, 64)
	case "real":
		return strconv.ParseFloat(raw, 64)
	case "boolean":
		return strconv.ParseBool(raw)
	case "datetime":
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
		return time.Parse(time.RFC3339Nano, raw)
	case "blob":
		return hex.DecodeString(raw)
	case "json":
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("invalid JSON value: %w", err)
		}
		return v, nil
	}
	return raw, nil
}
