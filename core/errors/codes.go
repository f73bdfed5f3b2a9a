package errors

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// Code is a symbolic SQLite primary result code.
type Code string

// SQLite primary result codes (https://www.sqlite.org/rescode.html).
const (
	CodeOK         Code = "SQLITE_OK"
	CodeError      Code = "SQLITE_ERROR"
	CodeInternal   Code = "SQLITE_INTERNAL"
	CodePerm       Code = "SQLITE_PERM"
	CodeAbort      Code = "SQLITE_ABORT"
	CodeBusy       Code = "SQLITE_BUSY"
	CodeLocked     Code = "SQLITE_LOCKED"
	CodeNoMem      Code = "SQLITE_NOMEM"
	CodeReadOnly   Code = "SQLITE_READONLY"
	CodeInterrupt  Code = "SQLITE_INTERRUPT"
	CodeIOErr      Code = "SQLITE_IOERR"
	CodeCorrupt    Code = "SQLITE_CORRUPT"
	CodeNotFound   Code = "SQLITE_NOTFOUND"
	CodeFull       Code = "SQLITE_FULL"
	CodeCantOpen   Code = "SQLITE_CANTOPEN"
	CodeProtocol   Code = "SQLITE_PROTOCOL"
	CodeEmpty      Code = "SQLITE_EMPTY"
	CodeSchema     Code = "SQLITE_SCHEMA"
	CodeTooBig     Code = "SQLITE_TOOBIG"
	CodeConstraint Code = "SQLITE_CONSTRAINT"
	CodeMismatch   Code = "SQLITE_MISMATCH"
	CodeMisuse     Code = "SQLITE_MISUSE"
	CodeNoLFS      Code = "SQLITE_NOLFS"
	CodeAuth       Code = "SQLITE_AUTH"
	CodeFormat     Code = "SQLITE_FORMAT"
	CodeRange      Code = "SQLITE_RANGE"
	CodeNotADB     Code = "SQLITE_NOTADB"
	CodeNotice     Code = "SQLITE_NOTICE"
	CodeWarning    Code = "SQLITE_WARNING"
	CodeRow        Code = "SQLITE_ROW"
	CodeDone       Code = "SQLITE_DONE"
)

var codesByErrno = map[int]Code{
	0:   CodeOK,
	1:   CodeError,
	2:   CodeInternal,
	3:   CodePerm,
	4:   CodeAbort,
	5:   CodeBusy,
	6:   CodeLocked,
	7:   CodeNoMem,
	8:   CodeReadOnly,
	9:   CodeInterrupt,
	10:  CodeIOErr,
	11:  CodeCorrupt,
	12:  CodeNotFound,
	13:  CodeFull,
	14:  CodeCantOpen,
	15:  CodeProtocol,
	16:  CodeEmpty,
	17:  CodeSchema,
	18:  CodeTooBig,
	19:  CodeConstraint,
	20:  CodeMismatch,
	21:  CodeMisuse,
	22:  CodeNoLFS,
	23:  CodeAuth,
	24:  CodeFormat,
	25:  CodeRange,
	26:  CodeNotADB,
	27:  CodeNotice,
	28:  CodeWarning,
	100: CodeRow,
	101: CodeDone,
}

// CodeFromErrno maps a primary result code to its symbolic name. Unknown
// numbers map to SQLITE_ERROR.
func CodeFromErrno(errno int) Code {
	if code, ok := codesByErrno[errno]; ok {
		return code
	}
	return CodeError
}

// Errno returns the numeric primary result code of c, or -1 if c is unknown.
func (c Code) Errno() int {
	for errno, code := range codesByErrno {
		if code == c {
			return errno
		}
	}
	return -1
}

const (
	maxLoggedBindValues = 50
	maxLoggedValueLen   = 200
)

// BindValuesToLogString renders bind values for diagnostics. At most 50 entries
// are printed (sorted by name) and each value is truncated to 200 characters.
func BindValuesToLogString(bindValues map[string]any) string {
	names := make([]string, 0, len(bindValues))
	for name := range bindValues {
		names = append(names, name)
	}
	sort.Strings(names)

	skipped := ""
	if len(names) > maxLoggedBindValues {
		skipped = fmt.Sprintf(" (skipped %d values)", len(names)-maxLoggedBindValues)
		names = names[:maxLoggedBindValues]
	}

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, name+": "+truncate(formatValue(bindValues[name]), maxLoggedValueLen))
	}
	return strings.Join(lines, "\n") + skipped
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return fmt.Sprintf("<blob %d bytes>", len(x))
	default:
		return fmt.Sprint(x)
	}
}

// truncate shortens s to at most maxLen bytes, ending in "...". The cut never
// splits a UTF-8 sequence.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := max(0, maxLen-3)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
