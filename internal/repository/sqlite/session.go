package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pkraev/plantbot/internal/domain"
)

// PoolConfig bounds the session manager: how many connections may be
// checked out at once, and how long an acquisition may wait before it
// surfaces domain.ErrPoolExhausted.
type PoolConfig struct {
	MaxConns       int
	AcquireTimeout time.Duration
}

// DefaultPoolConfig is used when a field is left zero.
var DefaultPoolConfig = PoolConfig{
	MaxConns:       4,
	AcquireTimeout: 5 * time.Second,
}

// Pool is the session manager. It hands out exclusively-owned connection
// handles and transaction scopes, and guarantees release on every exit
// path. Callers never observe a handle that is simultaneously checked
// out to another unit of work.
type Pool struct {
	db             *sql.DB
	acquireTimeout time.Duration
}

// NewPool wraps db with explicit pool limits.
func NewPool(db *sql.DB, cfg PoolConfig) *Pool {
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = DefaultPoolConfig.MaxConns
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultPoolConfig.AcquireTimeout
	}
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxConns)
	return &Pool{db: db, acquireTimeout: cfg.AcquireTimeout}
}

// Handle is one checked-out connection, owned by a single unit of work.
type Handle struct {
	conn     *sql.Conn
	damaged  bool
	released bool
}

// Acquire checks out a connection handle. When every connection is busy
// for longer than the configured timeout, it returns
// domain.ErrPoolExhausted so callers can back off and retry instead of
// hanging.
func (p *Pool) Acquire(ctx context.Context) (*Handle, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	defer cancel()

	conn, err := p.db.Conn(acquireCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: no connection available within %v", domain.ErrPoolExhausted, p.acquireTimeout)
		}
		return nil, classify(err)
	}
	return &Handle{conn: conn}, nil
}

// Conn returns the underlying connection for the duration of the
// checkout. The caller must not retain it past Release.
func (h *Handle) Conn() *sql.Conn {
	return h.conn
}

// Damage marks the handle's connection as unhealthy. On Release it is
// discarded instead of being returned to the pool; the pool replaces it
// transparently up to its configured maximum.
func (h *Handle) Damage() {
	h.damaged = true
}

// Release returns the connection to the pool, or discards it when
// damaged. Safe to call more than once.
func (h *Handle) Release() error {
	if h.released {
		return nil
	}
	h.released = true
	if h.damaged {
		// Surfacing ErrBadConn from Raw makes database/sql drop the
		// connection rather than pool it.
		_ = h.conn.Raw(func(driverConn any) error {
			return driver.ErrBadConn
		})
	}
	return h.conn.Close()
}

// InTx acquires a handle, opens a transaction scope on it, runs fn, and
// commits on nil or rolls back on error or panic. The handle is released
// on every exit path. Returned errors are classified: lock contention
// surfaces as domain.ErrTxConflict, broken connections as
// domain.ErrConnectionLost (and the handle is discarded).
func (p *Pool) InTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	handle, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := handle.Release(); relErr != nil && err == nil {
			err = classify(relErr)
		}
	}()

	tx, err := handle.conn.BeginTx(ctx, nil)
	if err != nil {
		err = classify(err)
		if errors.Is(err, domain.ErrConnectionLost) {
			handle.Damage()
		}
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		err = classify(err)
		if errors.Is(err, domain.ErrConnectionLost) {
			handle.Damage()
		}
		return err
	}

	if err = classify(tx.Commit()); err != nil {
		if errors.Is(err, domain.ErrConnectionLost) {
			handle.Damage()
		}
		return err
	}
	return nil
}

// classify maps low-level driver failures onto the domain's retriable
// conditions. Errors that are already domain sentinels pass through
// unchanged.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrTxConflict),
		errors.Is(err, domain.ErrConnectionLost),
		errors.Is(err, domain.ErrPoolExhausted):
		return err
	case errors.Is(err, driver.ErrBadConn):
		return fmt.Errorf("%w: %v", domain.ErrConnectionLost, err)
	case isLockContention(err):
		return fmt.Errorf("%w: %v", domain.ErrTxConflict, err)
	default:
		return err
	}
}

func isLockContention(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
