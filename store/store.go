// Package store implements the Store gateway (spec §4.A): connection
// lifecycle, statement execution, the transaction envelope, error-class
// mapping and identifier/literal escaping. It is the single point of
// access to the Postgres backend; every other DSS package reaches the
// database only through a *store.Handle.
package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/cea-hpc/phobos-sub000/dsserr"
)

// ErrNotConnected is returned (wrapped in a *dsserr.Error) when Open cannot
// establish a backend connection.
var ErrNotConnected = errors.New("store: not connected")

// ExpectedStatus describes how many rows an Execute call is expected to
// affect; it lets callers distinguish "zero rows affected" failures (lock
// refresh/unlock, spec §4.E) from successful no-op statements.
type ExpectedStatus int

const (
	// AnyRows accepts any affected row count, including zero.
	AnyRows ExpectedStatus = iota
	// AtLeastOneRow fails with dsserr.NoLock if zero rows were affected.
	AtLeastOneRow
)

// Handle is a connection to the backend plus the logger it reports
// notices and rollback failures to. A Handle is not safe for concurrent use by multiple
// goroutines (spec §5) — callers serialize or use distinct Handles.
type Handle struct {
	db     *sql.DB
	log    *logrus.Logger
	closed bool
}

// Option configures Open.
type Option func(*openConfig)

type openConfig struct {
	log           *logrus.Logger
	noticeHandler func(*pq.Error)
}

// WithLogger overrides the logger used for notice-handler output.
func WithLogger(l *logrus.Logger) Option {
	return func(c *openConfig) { c.log = l }
}

// Open opens the backend connection, registers a notice handler that
// normalizes and re-emits backend notices to the process log (stripping a
// trailing newline, per spec §4.A), and returns a usable Handle. It does
// NOT run the schema gate — see the root dss package, which composes
// store.Open with schema.Check the way the control-flow description in
// spec §2 requires.
func Open(ctx context.Context, connectString string, opts ...Option) (*Handle, error) {
	cfg := &openConfig{log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(cfg)
	}

	connector, err := pq.NewConnector(connectString)
	if err != nil {
		return nil, dsserr.Wrap(dsserr.NotConnected, err, "parse connection string")
	}

	h := &Handle{log: cfg.log}
	connector = pq.ConnectorWithNoticeHandler(connector, func(n *pq.Error) {
		h.log.WithField("severity", n.Severity).Info(stripTrailingNewline(n.Message))
	})

	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, dsserr.Wrap(dsserr.NotConnected, err, "connect to backend")
	}

	h.db = db
	return h, nil
}

// NewHandle wraps an already-open *sql.DB as a Handle. It exists for
// callers that manage their own connection pool (and for tests that wire
// up a fake driver) — Open is the normal entry point for a Postgres
// connection string.
func NewHandle(db *sql.DB, log *logrus.Logger) *Handle {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handle{db: db, log: log}
}

func stripTrailingNewline(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\n' {
		return s[:n-1]
	}
	return s
}

// Close releases backend resources. It is idempotent.
func (h *Handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	if err := h.db.Close(); err != nil {
		return dsserr.Wrap(dsserr.CommunicationError, err, "close backend connection")
	}
	return nil
}

// DB exposes the underlying *sql.DB for callers that need to run
// statements against the same connection pool directly.
func (h *Handle) DB() *sql.DB { return h.db }

// Execute submits a single statement outside of any caller-managed
// transaction and classifies failures per spec §4.A. When expect is
// AtLeastOneRow and the statement affects zero rows, the result is
// dsserr.NoLock — used by lock refresh/unlock (spec §8, boundary
// behaviors).
func (h *Handle) Execute(ctx context.Context, expect ExpectedStatus, stmt string, args ...interface{}) (sql.Result, error) {
	res, err := h.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, ClassifyError(err, "execute statement")
	}
	if expect == AtLeastOneRow {
		n, err := res.RowsAffected()
		if err != nil {
			return res, ClassifyError(err, "read rows affected")
		}
		if n == 0 {
			return res, dsserr.Kindf(dsserr.NoLock, "statement affected no rows")
		}
	}
	return res, nil
}

// Query submits a single read-only statement and returns the resulting
// rows; callers are responsible for closing them.
func (h *Handle) Query(ctx context.Context, stmt string, args ...interface{}) (*sql.Rows, error) {
	rows, err := h.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, ClassifyError(err, "execute query")
	}
	return rows, nil
}

// QueryRow is Query for statements expected to return at most one row.
func (h *Handle) QueryRow(ctx context.Context, stmt string, args ...interface{}) *sql.Row {
	return h.db.QueryRowContext(ctx, stmt, args...)
}

// Tx is a transaction opened through InTransaction; it exposes the same
// Execute/Query surface as Handle so the code that runs codec-built
// statements (the crud facade) uses one call convention inside and
// outside a transaction.
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) Execute(ctx context.Context, expect ExpectedStatus, stmt string, args ...interface{}) (sql.Result, error) {
	res, err := t.tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, ClassifyError(err, "execute statement")
	}
	if expect == AtLeastOneRow {
		n, err := res.RowsAffected()
		if err != nil {
			return res, ClassifyError(err, "read rows affected")
		}
		if n == 0 {
			return res, dsserr.Kindf(dsserr.NoLock, "statement affected no rows")
		}
	}
	return res, nil
}

func (t *Tx) Query(ctx context.Context, stmt string, args ...interface{}) (*sql.Rows, error) {
	rows, err := t.tx.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, ClassifyError(err, "execute query")
	}
	return rows, nil
}

func (t *Tx) QueryRow(ctx context.Context, stmt string, args ...interface{}) *sql.Row {
	return t.tx.QueryRowContext(ctx, stmt, args...)
}

// InTransaction runs fn inside BEGIN/COMMIT, rolling back on any failure
// returned by fn (spec §4.A). On rollback failure, the original failure is
// preserved and the rollback error is logged only — it never replaces the
// error the caller sees.
func (h *Handle) InTransaction(ctx context.Context, fn func(*Tx) error) (err error) {
	sqlTx, beginErr := h.db.BeginTx(ctx, nil)
	if beginErr != nil {
		return ClassifyError(beginErr, "begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err = fn(&Tx{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			h.log.WithError(rbErr).Warn("rollback after transaction failure also failed")
		}
		return err
	}

	if cErr := sqlTx.Commit(); cErr != nil {
		return ClassifyError(cErr, "commit transaction")
	}
	return nil
}

// Logger returns the logger the Handle was opened with, for callers that
// want to log without threading their own logger through every call.
func (h *Handle) Logger() *logrus.Logger { return h.log }
