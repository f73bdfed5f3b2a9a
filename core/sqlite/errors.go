package sqlite

import (
	"errors"

	modernc "modernc.org/sqlite"

	sqlerrors "github.com/FocuswithJustin/sqlclient/core/errors"
)

// normalizeError converts driver errors into *errors.EngineError. Errors that
// already carry an engine code, or that no driver recognizes, pass through.
func normalizeError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := sqlerrors.EngineCode(err); ok {
		return err
	}

	var se *modernc.Error
	if errors.As(err, &se) {
		return sqlerrors.NewEngine(se.Code(), se.Error())
	}
	if errno, msg, ok := externalErrorCode(err); ok {
		return sqlerrors.NewEngine(errno, msg)
	}
	return err
}
