package store

import (
	"context"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidQuantity = errors.New("quantity must be > 0")
	// ErrConflict means the row is still referenced and cannot be removed.
	ErrConflict          = errors.New("still referenced")
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

type Credentials struct {
	Driver       string
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// dialect holds what differs between the postgres and mysql statements.
type dialect struct {
	name      string
	bind      int
	returning bool
	upsert    string
}

var dialects = map[string]dialect{
	"postgres": {
		name:      "postgres",
		bind:      sqlx.DOLLAR,
		returning: true,
		upsert:    ` ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = shopping_cart.quantity + 1`,
	},
	"mysql": {
		name:   "mysql",
		bind:   sqlx.QUESTION,
		upsert: ` ON DUPLICATE KEY UPDATE quantity = quantity + 1`,
	},
}

func (d dialect) rebind(query string) string {
	return sqlx.Rebind(d.bind, query)
}

// insertID runs an INSERT and returns the generated key of idColumn.
func (d dialect) insertID(ctx context.Context, q sqlx.ExtContext, query, idColumn string, args ...any) (int64, error) {
	if d.returning {
		var id int64
		err := q.QueryRowxContext(ctx, d.rebind(query+" RETURNING "+idColumn), args...).Scan(&id)
		return id, err
	}
	res, err := q.ExecContext(ctx, d.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// SQLStore is a Store backed by postgres or mysql. Same-user cart writes are
// serialized both in-process and by row locks in the database.
type SQLStore struct {
	db *sqlx.DB
	d  dialect

	// per-user mutexes, dropped once no caller holds or waits on them
	locksMu sync.Mutex
	locks   map[int64]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func NewSQLStore(cred *Credentials) (*SQLStore, error) {
	db, err := sqlx.Open(cred.Driver, cred.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}
	if cred.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cred.MaxOpenConns)
	}
	if cred.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cred.MaxIdleConns)
	}
	return NewWithDB(db)
}

// NewWithDB wraps an already opened handle. The dialect follows db.DriverName().
func NewWithDB(db *sqlx.DB) (*SQLStore, error) {
	d, ok := dialects[db.DriverName()]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedDriver, "driver %q", db.DriverName())
	}
	return &SQLStore{db: db, d: d, locks: make(map[int64]*userLock)}, nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

// lockForUser takes the process-local lock for userID and returns its unlock
// func. The map only holds users with a caller in flight.
func (s *SQLStore) lockForUser(userID int64) func() {
	s.locksMu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &userLock{}
		s.locks[userID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, userID)
		}
		s.locksMu.Unlock()
	}
}

// Atomically runs fn in one database transaction. The transaction commits only
// when fn returns nil; any error or panic rolls it back.
func (s *SQLStore) Atomically(ctx context.Context, userID int64, fn func(TxStores) error) error {
	unlock := s.lockForUser(userID)
	defer unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	done := false
	defer func() {
		if !done {
			_ = tx.Rollback()
		}
	}()

	if err := fn(s.txStores(tx)); err != nil {
		return err
	}

	done = true
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}

func (s *SQLStore) txStores(tx *sqlx.Tx) TxStores {
	return TxStores{
		Carts:     &cartTx{q: tx, d: s.d},
		Orders:    orderTx{q: tx, d: s.d},
		LineItems: lineItemTx{q: tx, d: s.d},
	}
}
