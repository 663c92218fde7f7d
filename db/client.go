package db

import (
	"context"
	"database/sql"
	"errors"
	"sync"
)

// Querier is what repositories run statements against. *DB, *Client and *Tx
// all satisfy it and all classify statement errors.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

var (
	_ Querier = (*DB)(nil)
	_ Querier = (*Client)(nil)
	_ Querier = (*Tx)(nil)
)

// Row wraps *sql.Row so Scan errors are classified. sql.ErrNoRows passes
// through untouched.
type Row struct {
	row   *sql.Row
	query string
	err   error
}

func (r *Row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	err := r.row.Scan(dest...)
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return classify(err, r.query)
}

// Client is one checked-out connection used for a sequence of reads.
type Client struct {
	conn *sql.Conn
	once sync.Once
}

func (c *Client) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := c.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, query)
	}
	return rows, nil
}

func (c *Client) QueryRowContext(ctx context.Context, query string, args ...any) *Row {
	return &Row{row: c.conn.QueryRowContext(ctx, query, args...), query: query}
}

func (c *Client) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := c.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, query)
	}
	return res, nil
}

// Release returns the connection to the pool. Calls after the first are no-ops.
func (c *Client) Release() {
	c.once.Do(func() {
		_ = c.conn.Close()
	})
}

// Tx is an open transaction bound to its own connection.
type Tx struct {
	tx   *sql.Tx
	conn *sql.Conn

	mu   sync.Mutex
	done bool
}

func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, query)
	}
	return rows, nil
}

func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *Row {
	return &Row{row: t.tx.QueryRowContext(ctx, query, args...), query: query}
}

func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, query)
	}
	return res, nil
}

// Commit commits and releases the connection, also when COMMIT fails.
func (t *Tx) Commit() error {
	return t.finish("COMMIT", t.tx.Commit)
}

// Rollback rolls back and releases the connection. After Commit it is a
// no-op, so it is safe to defer.
func (t *Tx) Rollback() error {
	return t.finish("ROLLBACK", t.tx.Rollback)
}

func (t *Tx) finish(stmt string, fn func() error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return nil
	}
	t.done = true

	err := fn()
	_ = t.conn.Close()
	// a cancelled context has already rolled the transaction back
	if stmt == "ROLLBACK" && errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	if err != nil {
		return classify(err, stmt)
	}
	return nil
}
