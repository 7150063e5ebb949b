package uow

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	SendBatch(context.Context, *pgx.Batch) pgx.BatchResults
}

type RepositoryName string
type Repository any
type RepositoryFactory func(DBTX) Repository

// TX hands out repositories bound to a single open transaction.
type TX interface {
	Get(name RepositoryName) (Repository, error)
}

// Runner runs fn inside one transaction. Returning an error rolls everything back.
type Runner interface {
	Do(ctx context.Context, fn func(context.Context, TX) error) error
}

// UnitOfWork binds registered repository factories to a pgx transaction.
type UnitOfWork struct {
	conn         *pgxpool.Pool
	repositories map[RepositoryName]RepositoryFactory
	opts         pgx.TxOptions
}

func NewUnitOfWork(conn *pgxpool.Pool) *UnitOfWork {
	return &UnitOfWork{
		conn:         conn,
		repositories: make(map[RepositoryName]RepositoryFactory),
		opts:         pgx.TxOptions{IsoLevel: pgx.ReadCommitted},
	}
}

// Register adds a repository factory under name.
func (u *UnitOfWork) Register(name RepositoryName, factory RepositoryFactory) error {
	if _, ok := u.repositories[name]; ok {
		return fmt.Errorf("%w: %s", ErrRepositoryAlreadyRegistered, name)
	}
	u.repositories[name] = factory
	return nil
}

// MustRegister is Register for startup wiring.
func (u *UnitOfWork) MustRegister(name RepositoryName, factory RepositoryFactory) {
	if err := u.Register(name, factory); err != nil {
		panic(err)
	}
}

// Do executes fn inside a transaction and commits when fn returns nil.
func (u *UnitOfWork) Do(ctx context.Context, fn func(context.Context, TX) error) (err error) {
	if u == nil || u.conn == nil {
		return ErrNotConfigured
	}
	tx, txErr := u.conn.BeginTx(ctx, u.opts)
	if txErr != nil {
		return fmt.Errorf("begin tx: %w", txErr)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			if err == nil {
				err = rollbackErr
			} else {
				err = errors.Join(err, rollbackErr)
			}
		}
	}()

	if err := fn(ctx, &transaction{tx: tx, repositories: u.repositories}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetRepository returns a repository bound to the pool rather than a transaction.
func (u *UnitOfWork) GetRepository(name RepositoryName) (Repository, error) {
	if factory, ok := u.repositories[name]; ok {
		return factory(u.conn), nil
	}
	return nil, ErrRepositoryNotRegistered
}

type transaction struct {
	tx           pgx.Tx
	repositories map[RepositoryName]RepositoryFactory
}

func (t *transaction) Get(name RepositoryName) (Repository, error) {
	if factory, ok := t.repositories[name]; ok {
		return factory(t.tx), nil
	}
	return nil, ErrRepositoryNotRegistered
}

// GetAs fetches the repository registered under name and asserts it to T.
func GetAs[T any](t TX, name RepositoryName) (T, error) {
	var res T
	repo, err := t.Get(name)
	if err != nil {
		return res, fmt.Errorf("%w: %s", err, name)
	}
	res, ok := repo.(T)
	if !ok {
		return res, fmt.Errorf("%w: %s", ErrInvalidRepositoryType, name)
	}
	return res, nil
}

// Static is a TX over pre-built repositories, used where no database is involved.
type Static map[RepositoryName]Repository

func (s Static) Get(name RepositoryName) (Repository, error) {
	if repo, ok := s[name]; ok {
		return repo, nil
	}
	return nil, ErrRepositoryNotRegistered
}
