// Package conntest provides a recording conn.Connection for tests that check
// the statements a caller produces without running an engine.
package conntest

import (
	"context"
	"maps"
	"strings"
	"sync"

	"github.com/FocuswithJustin/sqlclient/core/conn"
)

// Call is one recorded Execute.
type Call struct {
	Query string
	Bind  conn.BindValues
}

type response struct {
	rows []conn.Row
	err  error
}

// Recorder records every statement and answers with scripted responses in
// FIFO order. Once the script is exhausted Execute returns no rows.
type Recorder struct {
	name string
	lock *conn.TxLock

	mu        sync.Mutex
	calls     []Call
	script    []response
	onPrefix  map[string]response
	exportErr error
	image     []byte
}

// New returns an empty Recorder.
func New(name string) *Recorder {
	return &Recorder{
		name:     name,
		lock:     conn.NewTxLock(),
		onPrefix: make(map[string]response),
	}
}

// Returns queues rows as the answer to the next unmatched statement.
func (r *Recorder) Returns(rows ...conn.Row) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.script = append(r.script, response{rows: rows})
	return r
}

// Fails queues err as the answer to the next unmatched statement.
func (r *Recorder) Fails(err error) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.script = append(r.script, response{err: err})
	return r
}

// On answers every statement starting with prefix, ahead of the FIFO script.
func (r *Recorder) On(prefix string, rows []conn.Row, err error) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onPrefix[prefix] = response{rows: rows, err: err}
	return r
}

// ExportReturns sets the result of Export.
func (r *Recorder) ExportReturns(image []byte, err error) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.image, r.exportErr = image, err
	return r
}

// Calls returns a copy of the recorded statements.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Queries returns the SQL text of the recorded statements.
func (r *Recorder) Queries() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Query
	}
	return out
}

// Reset forgets recorded calls and pending responses.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
	r.script = nil
	clear(r.onPrefix)
}

func (r *Recorder) Name() string { return r.name }

func (r *Recorder) Execute(_ context.Context, query string, bind conn.BindValues) ([]conn.Row, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Query: query, Bind: maps.Clone(bind)})

	for prefix, resp := range r.onPrefix {
		if strings.HasPrefix(query, prefix) {
			return resp.rows, resp.err
		}
	}
	if len(r.script) == 0 {
		return nil, nil
	}
	resp := r.script[0]
	r.script = r.script[1:]
	return resp.rows, resp.err
}

func (r *Recorder) Export(context.Context) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.image, r.exportErr
}

func (r *Recorder) TxLock() *conn.TxLock { return r.lock }

var _ conn.Connection = (*Recorder)(nil)
