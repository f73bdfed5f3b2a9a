package client

import (
	"context"
	"fmt"

	sqlerrors "github.com/FocuswithJustin/sqlclient/core/errors"
	"github.com/FocuswithJustin/sqlclient/core/query"
	"github.com/FocuswithJustin/sqlclient/internal/logging"
)

// MigrateIfNeeded makes the database match the schema by table count. When
// the number of user tables equals the number of schema tables nothing
// happens. Otherwise every existing table is dropped, with its data, and all
// schema tables and indexes are created. The whole step runs in one
// transaction, so it must not be called from inside Transaction. It reports
// whether it migrated.
func (c *Client) MigrateIfNeeded(ctx context.Context) (bool, error) {
	const op = "migrate"

	existing, err := c.ListTables(ctx)
	if err != nil {
		return false, err
	}
	if len(existing) == c.schema.Len() {
		return false, nil
	}

	var created []string
	err = c.Transaction(ctx, func(ctx context.Context) error {
		for _, name := range existing {
			if _, err := c.exec(ctx, op, name, query.DropTable(name), nil); err != nil {
				return err
			}
		}
		for _, t := range c.schema.Tables() {
			if _, err := c.exec(ctx, op, t.Name, query.CreateTable(&t), nil); err != nil {
				return err
			}
			for _, idx := range t.Indexes {
				if _, err := c.exec(ctx, op, t.Name, query.CreateIndex(&t, idx), nil); err != nil {
					return err
				}
			}
			created = append(created, t.Name)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	logging.Migration(ctx, c.logger, c.conn.Name(), existing, created)
	return true, nil
}

// ListTables returns the names of the user tables present in the database.
func (c *Client) ListTables(ctx context.Context) ([]string, error) {
	const op = "migrate"
	sql := query.ListTables()
	rows, err := c.exec(ctx, op, "", sql, nil)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		switch name := row["name"].(type) {
		case string:
			names = append(names, name)
		case []byte:
			names = append(names, string(name))
		default:
			return nil, sqlerrors.WithOp(sqlerrors.NewClient(fmt.Errorf("unexpected table name %T", name), sql, nil), op, "")
		}
	}
	return names, nil
}
