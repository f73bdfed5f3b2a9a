package query

import (
	"fmt"

	sqlerrors "github.com/FocuswithJustin/sqlclient/core/errors"
)

// ChunkRows splits rows into the fewest chunks whose parameter count
// (len(chunk) * paramsPerRow) stays within limit, with chunk sizes as even as
// possible. Concatenating the chunks yields rows in the original order. A
// limit of zero or less selects MaxVariables.
func ChunkRows[T any](rows []T, paramsPerRow, limit int) ([][]T, error) {
	if limit <= 0 {
		limit = MaxVariables
	}
	if paramsPerRow <= 0 {
		paramsPerRow = 1
	}
	if paramsPerRow > limit {
		return nil, sqlerrors.NewUsage("createMany", "", "", fmt.Sprintf("one row needs %d parameters, more than the limit of %d", paramsPerRow, limit))
	}
	if len(rows) == 0 {
		return nil, nil
	}

	maxRows := limit / paramsPerRow
	chunks := ceilDiv(len(rows), maxRows)
	base, extra := len(rows)/chunks, len(rows)%chunks

	out := make([][]T, 0, chunks)
	start := 0
	for i := 0; i < chunks; i++ {
		size := base
		if i < extra {
			size++
		}
		out = append(out, rows[start:start+size])
		start += size
	}
	return out, nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
