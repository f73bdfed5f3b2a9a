package client

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/sqlclient/core/conn"
	sqlerrors "github.com/FocuswithJustin/sqlclient/core/errors"
	"github.com/FocuswithJustin/sqlclient/internal/logging"
)

// txKey holds the *conn.TxLock of the transaction running in a context.
type txKey struct{}

// Transaction runs fn inside BEGIN TRANSACTION / COMMIT while holding the
// connection's transaction lock. fn's context carries the transaction ID used
// in logs. If fn returns an error or panics the transaction is rolled back;
// a panic is re-raised afterwards. The lock is released on every path.
//
// Transaction calls on one connection queue behind each other and give up
// when ctx is done while waiting. Statements issued outside Transaction are
// not blocked by it. Calling Transaction from inside fn is a usage error.
func (c *Client) Transaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	const op = "transaction"
	lock := c.conn.TxLock()
	if active, _ := ctx.Value(txKey{}).(*conn.TxLock); active != nil && active == lock {
		return sqlerrors.NewUsage(op, "", "", "nested transactions are not supported")
	}
	if err := lock.Acquire(ctx); err != nil {
		return sqlerrors.Wrap(err, "acquire transaction lock")
	}
	defer lock.Release()

	ctx = logging.WithTxID(context.WithValue(ctx, txKey{}, lock), uuid.NewString())
	if _, err := c.exec(ctx, op, "", "BEGIN TRANSACTION", nil); err != nil {
		return err
	}
	logging.Transaction(ctx, c.logger, c.conn.Name(), "begin")

	done := false
	defer func() {
		if done {
			return
		}
		r := recover()
		if _, rbErr := c.exec(context.WithoutCancel(ctx), op, "", "ROLLBACK", nil); rbErr != nil {
			err = errors.Join(err, rbErr)
		}
		logging.Transaction(ctx, c.logger, c.conn.Name(), "rollback")
		if r != nil {
			panic(r)
		}
	}()

	if err = fn(ctx); err != nil {
		return err
	}
	if _, err = c.exec(context.WithoutCancel(ctx), op, "", "COMMIT", nil); err != nil {
		return err
	}
	done = true
	logging.Transaction(ctx, c.logger, c.conn.Name(), "commit")
	return nil
}
