// Package database manages a single PostgreSQL connection and the execution
// primitives built on it: scoped sessions with commit/rollback tied to scope
// exit, single and batched query execution, and chunked bulk ID lookups.
//
// A Session is not safe for concurrent use; callers sharing one across
// goroutines must synchronize externally.
package database

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/d3group/inventory-foundation-sdk/errs"
	"github.com/d3group/inventory-foundation-sdk/logging"
)

// DefaultLookupChunkSize bounds the inline VALUES table of FetchIDsBulk.
const DefaultLookupChunkSize = 100

// executor is the subset of pgx shared by *pgx.Conn and pgx.Tx that Session
// runs statements against.
type executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// sessionState tracks the connection lifecycle. Transitions: Open moves
// Closed to Open, Close moves Open to Closed, both idempotent.
type sessionState int

const (
	stateClosed sessionState = iota
	stateOpen
)

// Session owns one database connection and an implicit transaction.
// Statements run inside the transaction, which is started lazily on first
// use and ended by Commit, Rollback, or Close. With autocommit enabled no
// transaction is opened and every statement takes effect immediately.
type Session struct {
	connString string
	log        *slog.Logger
	autocommit bool
	chunkSize  int

	state sessionState
	conn  *pgx.Conn
	tx    pgx.Tx
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used for session lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.log = logger }
}

// WithAutocommit disables the implicit transaction; Commit becomes a no-op.
func WithAutocommit() Option {
	return func(s *Session) { s.autocommit = true }
}

// WithLookupChunkSize overrides the FetchIDsBulk chunk size.
func WithLookupChunkSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// NewSession returns an unopened session for the given connection string.
func NewSession(connString string, opts ...Option) *Session {
	s := &Session{
		connString: connString,
		chunkSize:  DefaultLookupChunkSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.Or(s.log)
	return s
}

// Open establishes the connection if not already open. Idempotent.
func (s *Session) Open(ctx context.Context) error {
	if s.state == stateOpen {
		return nil
	}
	conn, err := pgx.Connect(ctx, s.connString)
	if err != nil {
		return errs.Database("connect", "", err)
	}
	s.conn = conn
	s.state = stateOpen
	s.log.Debug("database connection opened")
	return nil
}

// Close releases the connection. Idempotent and safe to call when not open.
// Any pending transaction is rolled back first.
func (s *Session) Close(ctx context.Context) error {
	if s.state == stateClosed {
		return nil
	}
	if err := s.Rollback(ctx); err != nil {
		s.log.Warn("rollback on close failed", "error", err)
	}
	err := s.conn.Close(ctx)
	s.conn = nil
	s.state = stateClosed
	if err != nil {
		return errs.Database("close", "", err)
	}
	s.log.Debug("database connection closed")
	return nil
}

// Commit commits the pending transaction, if any. With autocommit enabled
// this is a no-op, matching the "commit only if not auto-committing" scope
// contract.
func (s *Session) Commit(ctx context.Context) error {
	if s.autocommit || s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(ctx); err != nil {
		return errs.Database("commit", "", err)
	}
	return nil
}

// Rollback discards the pending transaction, if any.
func (s *Session) Rollback(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return errs.Database("rollback", "", err)
	}
	return nil
}

// Do runs fn inside a session scope: the connection is opened on entry and
// released on every exit path. Pending work is rolled back when fn returns
// an error and committed otherwise.
func (s *Session) Do(ctx context.Context, fn func(*Session) error) (err error) {
	if err = s.Open(ctx); err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err = fn(s); err != nil {
		if rerr := s.Rollback(ctx); rerr != nil {
			s.log.Warn("rollback failed", "error", rerr)
		}
		return err
	}
	return s.Commit(ctx)
}

// executor returns the target statements run against, opening the connection
// and starting the implicit transaction as needed.
func (s *Session) executor(ctx context.Context) (executor, error) {
	if err := s.Open(ctx); err != nil {
		return nil, err
	}
	if s.autocommit {
		return s.conn, nil
	}
	if s.tx == nil {
		tx, err := s.conn.Begin(ctx)
		if err != nil {
			return nil, errs.Database("begin", "", err)
		}
		s.tx = tx
	}
	return s.tx, nil
}

// Exec runs a statement inside the implicit transaction.
func (s *Session) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	ex, err := s.executor(ctx)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return ex.Exec(ctx, sql, args...)
}

// Query runs a query inside the implicit transaction.
func (s *Session) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	ex, err := s.executor(ctx)
	if err != nil {
		return nil, err
	}
	return ex.Query(ctx, sql, args...)
}

// QueryRow runs a single-row query inside the implicit transaction.
func (s *Session) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	ex, err := s.executor(ctx)
	if err != nil {
		return errRow{err}
	}
	return ex.QueryRow(ctx, sql, args...)
}

// SendBatch sends a pgx batch inside the implicit transaction.
func (s *Session) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	ex, err := s.executor(ctx)
	if err != nil {
		return errBatchResults{err}
	}
	return ex.SendBatch(ctx, b)
}

// errRow defers a session-level error to the Scan call, mirroring how pgx
// surfaces QueryRow failures.
type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

// errBatchResults defers a session-level error to the first result access.
type errBatchResults struct{ err error }

func (b errBatchResults) Exec() (pgconn.CommandTag, error)       { return pgconn.CommandTag{}, b.err }
func (b errBatchResults) Query() (pgx.Rows, error)               { return nil, b.err }
func (b errBatchResults) QueryRow() pgx.Row                      { return errRow{b.err} }
func (b errBatchResults) Close() error                           { return b.err }
