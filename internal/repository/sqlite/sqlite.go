package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkraev/plantbot/internal/domain"
	"github.com/pkraev/plantbot/internal/repository/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Querier is the subset of database/sql shared by *sql.DB, *sql.Conn,
// and *sql.Tx. Repositories run over a Querier so the same code serves
// pool-backed reads and transaction scopes.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB implements domain.Database and domain.Store on SQLite. A DB bound
// to a transaction (via InTx) shares the pool but routes every query
// through that single transaction scope.
type DB struct {
	SqlDB *sql.DB
	pool  *Pool
	q     Querier
	inTx  bool
}

// New opens a SQLite database at the given path and configures it for
// use: WAL mode, foreign keys, a busy timeout, and the session manager's
// pool limits.
func New(dbPath string, poolCfg PoolConfig) (*DB, error) {
	// Transactions take the write lock up front, so contention surfaces
	// as a busy error at BEGIN instead of a deadlock at COMMIT.
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx := context.Background()
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	pool := NewPool(db, poolCfg)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{SqlDB: db, pool: pool, q: db}, nil
}

// Migrate applies all pending schema revisions. It must succeed before
// the store serves application traffic; callers treat a failure as fatal.
func (d *DB) Migrate(ctx context.Context) error {
	return migrations.Run(ctx, d.SqlDB)
}

// Close closes the underlying pool.
func (d *DB) Close() error {
	return d.SqlDB.Close()
}

// Pool exposes the session manager for callers that need raw connection
// handles rather than full transaction scopes.
func (d *DB) Pool() *Pool {
	return d.pool
}

// InTx runs fn against a store bound to one transaction scope. Calling
// InTx on an already transaction-bound store joins the existing scope.
func (d *DB) InTx(ctx context.Context, fn func(domain.Store) error) error {
	if d.inTx {
		return fn(d)
	}
	return d.pool.InTx(ctx, func(tx *sql.Tx) error {
		return fn(&DB{SqlDB: d.SqlDB, pool: d.pool, q: tx, inTx: true})
	})
}

func (d *DB) Users() domain.UserRepository { return &UserRepository{q: d.q} }

func (d *DB) Species() domain.SpeciesRepository { return &SpeciesRepository{q: d.q} }

func (d *DB) Plants() domain.PlantRepository { return &PlantRepository{q: d.q} }

func (d *DB) Schedules() domain.ScheduleRepository { return &ScheduleRepository{q: d.q} }

func (d *DB) ActionLogs() domain.ActionLogRepository { return &ActionLogRepository{q: d.q} }

func (d *DB) Shares() domain.ShareLinkRepository { return &ShareLinkRepository{q: d.q} }

func (d *DB) Subscriptions() domain.SubscriptionRepository { return &SubscriptionRepository{q: d.q} }

func (d *DB) Reminders() domain.ReminderRepository { return &ReminderRepository{q: d.q} }
