// Package db owns the connection pool and the three ways of talking to it:
// single statements, a checked-out client for read sequences, and transactions.
// Every statement error is classified into an *apperr.Error before it leaves
// this package.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"tulisin/apperr"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"

	defaultMaxConns       = 20
	defaultIdleTimeout    = 30 * time.Second
	defaultConnectTimeout = 2 * time.Second
)

// Config describes how to reach the database and how to size the pool.
type Config struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	// Path is the database file for the sqlite driver.
	Path string

	MaxConns       int
	IdleTimeout    time.Duration
	ConnectTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Driver == "" {
		c.Driver = DriverMySQL
	}
	if c.MaxConns <= 0 {
		c.MaxConns = defaultMaxConns
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = defaultIdleTimeout
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	return c
}

func (c Config) dsn() (string, error) {
	switch c.Driver {
	case DriverMySQL:
		mc := mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
		mc.DBName = c.Name
		mc.ParseTime = true
		mc.Loc = time.UTC
		mc.Timeout = c.ConnectTimeout
		return mc.FormatDSN(), nil
	case DriverSQLite:
		if c.Path == "" {
			return "", fmt.Errorf("sqlite driver requires a database path")
		}
		busy := c.ConnectTimeout.Milliseconds()
		return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_time_format=sqlite", c.Path, busy), nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

// DB is the process' handle on the pool. It is created once by Open and
// must be closed by whoever opened it.
type DB struct {
	pool           *sql.DB
	driver         string
	connectTimeout time.Duration

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
	healthy   atomic.Bool
}

// Open builds the pool and verifies it with a round trip.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	cfg = cfg.withDefaults()

	dsn, err := cfg.dsn()
	if err != nil {
		return nil, err
	}

	pool, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pool.SetMaxOpenConns(cfg.MaxConns)
	pool.SetMaxIdleConns(cfg.MaxConns)
	pool.SetConnMaxIdleTime(cfg.IdleTimeout)

	d := &DB{pool: pool, driver: cfg.Driver, connectTimeout: cfg.ConnectTimeout}
	if err := d.Ping(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}

	log.Debug().Str("driver", cfg.Driver).Int("max_conns", cfg.MaxConns).Msg("Database connection established")
	return d, nil
}

// Driver reports which SQL driver backs the pool.
func (d *DB) Driver() string { return d.driver }

// Ping checks out a connection and runs a trivial statement.
func (d *DB) Ping(ctx context.Context) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, d.connectTimeout)
	defer cancel()

	var one int
	if err := d.pool.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		d.healthy.Store(false)
		return apperr.Internal("Failed to connect to database", map[string]any{"originalError": err.Error()}).WithCause(err)
	}
	d.healthy.Store(true)
	return nil
}

// Healthy reports whether the last round trip to the database succeeded.
func (d *DB) Healthy() bool {
	return !d.closed.Load() && d.healthy.Load()
}

// PoolStats is a snapshot of the pool counters. WaitCount is cumulative
// since Open, not the number of callers waiting right now.
type PoolStats struct {
	Total     int   `json:"totalCount"`
	Idle      int   `json:"idleCount"`
	InUse     int   `json:"inUseCount"`
	WaitCount int64 `json:"waitCount"`
}

func (d *DB) Stats() PoolStats {
	s := d.pool.Stats()
	return PoolStats{
		Total:     s.OpenConnections,
		Idle:      s.Idle,
		InUse:     s.InUse,
		WaitCount: s.WaitCount,
	}
}

// QueryContext runs a single statement on any pooled connection.
func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := d.pool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, query)
	}
	return rows, nil
}

func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *Row {
	if err := d.checkOpen(); err != nil {
		return &Row{err: err}
	}
	return &Row{row: d.pool.QueryRowContext(ctx, query, args...), query: query}
}

func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	res, err := d.pool.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, query)
	}
	return res, nil
}

// Acquire checks out one physical connection. The caller must Release it;
// prefer WithClient which does so on every path.
func (d *DB) Acquire(ctx context.Context) (*Client, error) {
	conn, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// WithClient runs fn on a checked-out connection and releases it afterwards,
// including when fn returns an error or panics.
func (d *DB) WithClient(ctx context.Context, fn func(*Client) error) error {
	client, err := d.Acquire(ctx)
	if err != nil {
		return err
	}
	defer client.Release()

	return fn(client)
}

// WithClientResult is WithClient for functions that produce a value.
func WithClientResult[T any](ctx context.Context, d *DB, fn func(*Client) (T, error)) (T, error) {
	var out T
	err := d.WithClient(ctx, func(c *Client) error {
		var err error
		out, err = fn(c)
		return err
	})
	return out, err
}

// Begin checks out a connection and starts a transaction on it. Commit and
// Rollback both return the connection to the pool.
func (d *DB) Begin(ctx context.Context) (*Tx, error) {
	conn, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		_ = conn.Close()
		return nil, classify(err, "BEGIN")
	}
	return &Tx{tx: tx, conn: conn}, nil
}

// InTx runs fn inside a transaction. The transaction commits when fn returns
// nil and rolls back otherwise; fn's error is returned unchanged.
func (d *DB) InTx(ctx context.Context, fn func(*Tx) error) error {
	tx, err := d.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("Failed to rollback transaction")
		}
		return err
	}

	return tx.Commit()
}

// InTxResult is InTx for functions that produce a value.
func InTxResult[T any](ctx context.Context, d *DB, fn func(*Tx) (T, error)) (T, error) {
	var out T
	err := d.InTx(ctx, func(tx *Tx) error {
		var err error
		out, err = fn(tx)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Close drains the pool. Only the first call does any work; later calls
// return the first result.
func (d *DB) Close() error {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		d.healthy.Store(false)
		if err := d.pool.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection pool")
			d.closeErr = apperr.Internal("Failed to close database connection", map[string]any{"originalError": err.Error()}).WithCause(err)
			return
		}
		log.Info().Msg("Database connection pool closed")
	})
	return d.closeErr
}

func (d *DB) checkOpen() error {
	if d == nil || d.closed.Load() {
		return apperr.Internal("Database not initialized", nil)
	}
	return nil
}

func (d *DB) conn(ctx context.Context) (*sql.Conn, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}

	acquireCtx, cancel := context.WithTimeout(ctx, d.connectTimeout)
	defer cancel()

	conn, err := d.pool.Conn(acquireCtx)
	if err != nil {
		return nil, apperr.Internal("Failed to get database client", map[string]any{"originalError": err.Error()}).WithCause(err)
	}
	return conn, nil
}
