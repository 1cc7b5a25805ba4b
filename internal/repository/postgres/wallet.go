package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/walletledger/internal/apperrors"
	"github.com/nkiryanov/walletledger/internal/models"
)

type WalletRepo struct {
	DB DBTX
}

const walletColumns = `id, user_id, balance, created_at, updated_at`

const createWallet = `-- name: CreateWallet
INSERT INTO wallets (id, user_id)
VALUES ($1, $2)
RETURNING ` + walletColumns

func (r *WalletRepo) CreateWallet(ctx context.Context, userID uuid.UUID) (models.Wallet, error) {
	rows, _ := r.DB.Query(ctx, createWallet, uuid.New(), userID)
	wallet, err := pgx.CollectOneRow(rows, rowToWallet)

	switch {
	case err == nil:
		return wallet, nil
	case isUniqueViolation(err):
		return wallet, apperrors.ErrWalletAlreadyExists
	case isForeignKeyViolation(err):
		return wallet, apperrors.ErrUserNotFound
	default:
		return wallet, storeError(err)
	}
}

const getWallet = `-- name: GetWallet
SELECT ` + walletColumns + ` FROM wallets
WHERE user_id = $1
`

func (r *WalletRepo) GetWallet(ctx context.Context, userID uuid.UUID) (models.Wallet, error) {
	rows, _ := r.DB.Query(ctx, getWallet, userID)
	wallet, err := pgx.CollectOneRow(rows, rowToWallet)

	switch {
	case err == nil:
		return wallet, nil
	case errors.Is(err, pgx.ErrNoRows):
		return wallet, apperrors.ErrWalletNotFound
	default:
		return wallet, storeError(err)
	}
}

// Postgres locks rows in the order they are returned, so ORDER BY gives
// every caller the same lock order
const lockWallets = `-- name: LockWallets
SELECT ` + walletColumns + ` FROM wallets
WHERE user_id = ANY($1)
ORDER BY id
FOR UPDATE
`

func (r *WalletRepo) LockWallets(ctx context.Context, userIDs ...uuid.UUID) (map[uuid.UUID]models.Wallet, error) {
	rows, _ := r.DB.Query(ctx, lockWallets, userIDs)
	wallets, err := pgx.CollectRows(rows, rowToWallet)
	if err != nil {
		return nil, storeError(fmt.Errorf("lock wallets: %w", err))
	}

	locked := make(map[uuid.UUID]models.Wallet, len(wallets))
	for _, w := range wallets {
		locked[w.UserID] = w
	}

	return locked, nil
}

// Single statement: the row lock taken by UPDATE makes check and write atomic
const updateBalance = `-- name: UpdateBalance
UPDATE wallets
SET balance = balance + $2, updated_at = clock_timestamp()
WHERE user_id = $1 AND balance + $2 >= 0
RETURNING ` + walletColumns

const walletExists = `-- name: WalletExists
SELECT EXISTS (SELECT 1 FROM wallets WHERE user_id = $1)
`

func (r *WalletRepo) UpdateBalance(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (models.Wallet, error) {
	rows, _ := r.DB.Query(ctx, updateBalance, userID, delta)
	wallet, err := pgx.CollectOneRow(rows, rowToWallet)

	switch {
	case err == nil:
		return wallet, nil
	case errors.Is(err, pgx.ErrNoRows):
		// Nothing updated: wallet is absent or balance is not enough
	default:
		return wallet, storeError(err)
	}

	var exists bool
	if err := r.DB.QueryRow(ctx, walletExists, userID).Scan(&exists); err != nil {
		return wallet, storeError(err)
	}

	if !exists {
		return wallet, apperrors.ErrWalletNotFound
	}
	return wallet, apperrors.ErrInsufficientFunds
}

func (r *WalletRepo) ListWallets(ctx context.Context, f models.WalletFilter) ([]models.Wallet, int64, error) {
	var w where
	if f.UserID != nil {
		w.add("user_id = ?", *f.UserID)
	}
	if f.MinBalance != nil {
		w.add("balance >= ?", *f.MinBalance)
	}
	if f.MaxBalance != nil {
		w.add("balance <= ?", *f.MaxBalance)
	}
	if f.CreatedAfter != nil {
		w.add("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		w.add("created_at <= ?", *f.CreatedBefore)
	}
	if f.UpdatedAfter != nil {
		w.add("updated_at >= ?", *f.UpdatedAfter)
	}
	if f.UpdatedBefore != nil {
		w.add("updated_at <= ?", *f.UpdatedBefore)
	}

	var total int64
	err := r.DB.QueryRow(ctx, "SELECT count(*) FROM wallets "+w.String(), w.args...).Scan(&total)
	if err != nil {
		return nil, 0, storeError(fmt.Errorf("count wallets: %w", err))
	}

	query := "SELECT " + walletColumns + " FROM wallets " + w.String() +
		" ORDER BY updated_at DESC, id DESC" +
		" LIMIT " + w.next(f.PageSize) +
		" OFFSET " + w.next(models.Offset(f.Page, f.PageSize))

	rows, _ := r.DB.Query(ctx, query, w.args...)
	wallets, err := pgx.CollectRows(rows, rowToWallet)
	if err != nil {
		return nil, 0, storeError(fmt.Errorf("list wallets: %w", err))
	}

	return wallets, total, nil
}

func rowToWallet(row pgx.CollectableRow) (models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}
