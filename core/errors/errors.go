// Package errors provides the error taxonomy shared by the schema, query builder,
// client and engine adapter packages.
//
// Four kinds of failure are distinguished:
//   - EngineError: a normalized SQLite result code reported by the engine
//   - ClientError: an EngineError enriched with the failing query and bind values
//   - DecodeError: a stored value could not be decoded by its column codec
//   - UsageError: the caller violated a contract (unknown column, bad operator, ...)
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrEngine indicates a failure reported by the SQL engine
	ErrEngine = errors.New("engine error")
	// ErrDecode indicates a stored value could not be decoded
	ErrDecode = errors.New("decode error")
	// ErrUsage indicates a programming error on the caller side
	ErrUsage = errors.New("usage error")
	// ErrUnsupported indicates an unsupported operation
	ErrUnsupported = errors.New("unsupported")
)

// EngineError is a normalized engine failure.
type EngineError struct {
	Code    Code   // Symbolic result code (e.g. SQLITE_BUSY)
	Errno   int    // Numeric primary result code
	Message string // Engine message
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Errno, e.Message)
}

func (e *EngineError) Unwrap() error {
	return ErrEngine
}

// NewEngine creates an EngineError from a numeric result code. Extended result
// codes are reduced to their primary code.
func NewEngine(errno int, message string) *EngineError {
	primary := errno & 0xff
	return &EngineError{
		Code:    CodeFromErrno(primary),
		Errno:   primary,
		Message: message,
	}
}

// ClientError is returned by every execute-path failure. It carries enough
// context to diagnose the failure without re-running the operation.
type ClientError struct {
	Engine     *EngineError   // Normalized engine error (never nil)
	Op         string         // Client operation (e.g. "findMany")
	Table      string         // Table the operation targeted, if any
	Query      string         // SQL text that failed, if any
	BindValues map[string]any // Bind values of the failing query, if any
	Err        error          // Underlying driver error, if any
}

func (e *ClientError) Error() string {
	msg := fmt.Sprintf("sql client error (%d %s)", e.Engine.Errno, e.Engine.Code)
	switch {
	case e.Op != "" && e.Table != "":
		msg += fmt.Sprintf(" in %s %s", e.Op, e.Table)
	case e.Op != "":
		msg += " in " + e.Op
	}
	msg += ": " + e.Engine.Message
	if e.Query != "" {
		msg += "\nSQL query:\n\n" + e.Query
	}
	if len(e.BindValues) > 0 {
		msg += "\nBind values:\n\n" + BindValuesToLogString(e.BindValues)
	}
	return msg
}

// Unwrap exposes both the engine sentinel and the underlying driver error.
func (e *ClientError) Unwrap() []error {
	errs := []error{e.Engine}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// DecodeError represents a stored value that its column codec rejected.
type DecodeError struct {
	Table  string // Table being decoded
	Column string // Column being decoded
	Format string // Codec format (e.g. "json", "datetime")
	Err    error  // Underlying error, if any
}

func (e *DecodeError) Error() string {
	target := e.Column
	if e.Table != "" {
		target = e.Table + "." + e.Column
	}
	if e.Err != nil {
		return fmt.Sprintf("failed to decode %s value of %s: %v", e.Format, target, e.Err)
	}
	return fmt.Sprintf("failed to decode %s value of %s", e.Format, target)
}

func (e *DecodeError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrDecode, e.Err}
	}
	return []error{ErrDecode}
}

// UsageError represents a contract violation by the caller.
type UsageError struct {
	Op      string // Operation being built or executed
	Table   string // Table involved, if any
	Column  string // Column involved, if any
	Message string // Human-readable error message
}

func (e *UsageError) Error() string {
	msg := "invalid usage"
	if e.Op != "" {
		msg += " of " + e.Op
	}
	switch {
	case e.Table != "" && e.Column != "":
		msg += fmt.Sprintf(" (%s.%s)", e.Table, e.Column)
	case e.Table != "":
		msg += fmt.Sprintf(" (%s)", e.Table)
	case e.Column != "":
		msg += fmt.Sprintf(" (%s)", e.Column)
	}
	return msg + ": " + e.Message
}

func (e *UsageError) Unwrap() error {
	return ErrUsage
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// UnsupportedError represents an unsupported feature
type UnsupportedError struct {
	Feature string // Feature that is unsupported
	Reason  string // Why it's not supported
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	return ErrUnsupported
}

// NewClient builds a ClientError from an opaque failure. Engine errors found in
// the chain are kept; anything else is normalized to SQLITE_ERROR.
func NewClient(err error, query string, bindValues map[string]any) *ClientError {
	var ce *ClientError
	if errors.As(err, &ce) {
		out := *ce
		if out.Query == "" {
			out.Query = query
			out.BindValues = bindValues
		}
		return &out
	}

	var engine *EngineError
	if !errors.As(err, &engine) {
		msg := "unknown error"
		if err != nil {
			msg = err.Error()
		}
		engine = &EngineError{Code: CodeError, Errno: 1, Message: msg}
	}

	return &ClientError{
		Engine:     engine,
		Query:      query,
		BindValues: bindValues,
		Err:        err,
	}
}

// WithOp returns a copy of a ClientError annotated with operation context.
// Other errors are returned unchanged.
func WithOp(err error, op, table string) error {
	var ce *ClientError
	if !errors.As(err, &ce) {
		return err
	}
	out := *ce
	out.Op = op
	out.Table = table
	return &out
}

// NewUsage creates a UsageError
func NewUsage(op, table, column, message string) *UsageError {
	return &UsageError{
		Op:      op,
		Table:   table,
		Column:  column,
		Message: message,
	}
}

// NewDecode creates a DecodeError
func NewDecode(format string, err error) *DecodeError {
	return &DecodeError{
		Format: format,
		Err:    err,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewUnsupported creates an UnsupportedError
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{
		Feature: feature,
		Reason:  reason,
	}
}

// EngineCode returns the engine code found in err's chain.
func EngineCode(err error) (Code, bool) {
	var engine *EngineError
	if errors.As(err, &engine) {
		return engine.Code, true
	}
	return "", false
}

// IsBusy reports whether err is a transient SQLITE_BUSY condition.
func IsBusy(err error) bool {
	code, ok := EngineCode(err)
	return ok && code == CodeBusy
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
