// Package storetest provides a scriptable database/sql driver used to unit
// test every package that talks to a *store.Handle without a live Postgres
// backend. There is no SQL mock library in the example corpus this module
// was grounded on, so this is a deliberate, narrowly-scoped exception to
// "wire a library instead of hand-rolling it" — see DESIGN.md.
package storetest

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

// Handler answers one Exec or Query call. query is the raw SQL text, args
// are the bound parameters in driver form.
type Handler func(query string, args []driver.Value) (Result, error)

// Result is what a Handler returns: either tabular rows (for Query) or an
// affected row count (for Exec). Columns/Rows are used by QueryContext;
// RowsAffected is used by ExecContext.
type Result struct {
	Columns      []string
	Rows         [][]driver.Value
	RowsAffected int64
	LastInsertID int64
}

var registry sync.Map // name -> *fakeDriver
var counter int64

// New registers a fresh driver instance under a unique name and returns a
// *sql.DB plus the Script used to program responses. Each call to New gets
// its own isolated driver so parallel tests never share state.
func New() (*sql.DB, *Script) {
	n := atomic.AddInt64(&counter, 1)
	name := "dss-fake-" + itoa(n)

	script := &Script{}
	drv := &fakeDriver{script: script}
	sql.Register(name, drv)
	registry.Store(name, drv)

	db, err := sql.Open(name, name)
	if err != nil {
		panic(err)
	}
	return db, script
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Script holds the ordered or matcher-based handlers a test registers.
type Script struct {
	mu       sync.Mutex
	handlers []Handler
	calls    []Call
}

// Call records one statement the code under test issued, for assertions.
type Call struct {
	Query string
	Args  []driver.Value
}

// On appends a handler. Each incoming statement is offered to the
// handlers in registration order; a handler that returns ErrNoMatch
// declines it, and the first one that returns anything else answers it.
func (s *Script) On(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

// Calls returns the statements executed so far, in order.
func (s *Script) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// ErrNoMatch lets a Handler decline a statement so the next registered
// Handler gets a turn.
var ErrNoMatch = errors.New("storetest: handler does not match")

func (s *Script) dispatch(query string, args []driver.Value) (Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Query: query, Args: args})
	handlers := make([]Handler, len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.Unlock()

	for _, h := range handlers {
		res, err := h(query, args)
		if errors.Is(err, ErrNoMatch) {
			continue
		}
		return res, err
	}
	return Result{}, errors.New("storetest: no handler matched query: " + query)
}

type fakeDriver struct {
	script *Script
}

func (d *fakeDriver) Open(string) (driver.Conn, error) {
	return &fakeConn{script: d.script}, nil
}

type fakeConn struct {
	script *Script
}

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return &fakeStmt{conn: c, query: query}, nil
}
func (c *fakeConn) Close() error              { return nil }
func (c *fakeConn) Begin() (driver.Tx, error) { return fakeTx{}, nil }

type fakeTx struct{}

func (fakeTx) Commit() error   { return nil }
func (fakeTx) Rollback() error { return nil }

type fakeStmt struct {
	conn  *fakeConn
	query string
}

func (s *fakeStmt) Close() error  { return nil }
func (s *fakeStmt) NumInput() int { return -1 }

func (s *fakeStmt) Exec(args []driver.Value) (driver.Result, error) {
	res, err := s.conn.script.dispatch(s.query, args)
	if err != nil {
		return nil, err
	}
	return fakeSQLResult{lastID: res.LastInsertID, affected: res.RowsAffected}, nil
}

func (s *fakeStmt) Query(args []driver.Value) (driver.Rows, error) {
	res, err := s.conn.script.dispatch(s.query, args)
	if err != nil {
		return nil, err
	}
	return &fakeRows{columns: res.Columns, rows: res.Rows}, nil
}

type fakeSQLResult struct {
	lastID   int64
	affected int64
}

func (r fakeSQLResult) LastInsertId() (int64, error) { return r.lastID, nil }
func (r fakeSQLResult) RowsAffected() (int64, error) { return r.affected, nil }

type fakeRows struct {
	columns []string
	rows    [][]driver.Value
	pos     int
}

func (r *fakeRows) Columns() []string { return r.columns }
func (r *fakeRows) Close() error      { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.rows) {
		return io.EOF
	}
	row := r.rows[r.pos]
	if len(row) < len(dest) {
		return errors.New("storetest: row has fewer values than columns")
	}
	copy(dest, row)
	r.pos++
	return nil
}
