package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/walletledger/internal/apperrors"
	"github.com/nkiryanov/walletledger/internal/repository"
)

const (
	defaultTxAttempts = 3
	defaultTxBackoff  = 50 * time.Millisecond
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Storage struct {
	db DBTX

	// Transient failures of top level transactions are retried
	attempts int
	backoff  time.Duration
}

func NewStorage(db DBTX) repository.Storage {
	return &Storage{
		db:       db,
		attempts: defaultTxAttempts,
		backoff:  defaultTxBackoff,
	}
}

func (s *Storage) User() repository.UserRepo {
	return &UserRepo{DB: s.db}
}

func (s *Storage) Refresh() repository.RefreshTokenRepo {
	return &RefreshTokenRepo{DB: s.db}
}

func (s *Storage) Wallet() repository.WalletRepo {
	return &WalletRepo{DB: s.db}
}

func (s *Storage) Transaction() repository.TransactionRepo {
	return &TransactionRepo{DB: s.db}
}

func (s *Storage) Outbox() repository.OutboxRepo {
	return &OutboxRepo{DB: s.db}
}

// InTx runs fn in a transaction
// If the storage is bound to a transaction already, a savepoint is used and nothing is retried:
// only the outermost transaction may be safely started over
func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) error {
	if _, nested := s.db.(pgx.Tx); nested {
		return s.runTx(ctx, fn)
	}

	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		err = s.runTx(ctx, fn)
		if err == nil || !IsTransient(err) || attempt == s.attempts {
			return err
		}

		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(attempt) * s.backoff):
		}
	}

	return err
}

func (s *Storage) runTx(ctx context.Context, fn func(repository.Storage) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return storeError(fmt.Errorf("tx begin: %w", err))
	}

	defer func() {
		switch err {
		case nil:
			if cerr := tx.Commit(ctx); cerr != nil {
				err = storeError(fmt.Errorf("tx commit: %w", cerr))
			}
		default:
			_ = tx.Rollback(ctx)
		}
	}()

	err = fn(&Storage{db: tx, attempts: s.attempts, backoff: s.backoff})

	return err
}

// IsTransient reports whether the operation failed for a reason that may go away on retry
func IsTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
			return true
		default:
			return false
		}
	}

	return pgconn.SafeToRetry(err)
}

// storeError marks driver error as store failure
// Message is kept in form 'db error: ...'
func storeError(err error) error {
	return fmt.Errorf("%w: %w", apperrors.ErrStoreFailure, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}
