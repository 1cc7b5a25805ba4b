package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/walletledger/internal/apperrors"
	"github.com/nkiryanov/walletledger/internal/models"
)

type TransactionRepo struct {
	DB DBTX
}

const transactionColumns = `id, sender_id, receiver_id, amount, type, status, description, created_at`

// clock_timestamp() instead of NOW(): transactions created in one db transaction still get distinct times
const createTransaction = `-- name: CreateTransaction
INSERT INTO transactions (sender_id, receiver_id, amount, type, status, description, created_at)
VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, clock_timestamp()))
RETURNING ` + transactionColumns

func (r *TransactionRepo) CreateTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	var createdAt *time.Time
	if !t.CreatedAt.IsZero() {
		createdAt = &t.CreatedAt
	}

	rows, _ := r.DB.Query(ctx, createTransaction,
		t.SenderID, t.ReceiverID, t.Amount, t.Type, t.Status, t.Description, createdAt,
	)
	created, err := pgx.CollectOneRow(rows, rowToTransaction)

	switch {
	case err == nil:
		return created, nil
	case isForeignKeyViolation(err):
		return created, apperrors.ErrUserNotFound
	default:
		return created, storeError(fmt.Errorf("create transaction: %w", err))
	}
}

func (r *TransactionRepo) ListTransactions(ctx context.Context, f models.TransactionFilter) ([]models.Transaction, int64, error) {
	var w where
	if f.SenderID != nil {
		w.add("sender_id = ?", *f.SenderID)
	}
	if f.ReceiverID != nil {
		w.add("receiver_id = ?", *f.ReceiverID)
	}
	if f.Type != nil {
		w.add("type = ?", *f.Type)
	}
	if f.CreatedAfter != nil {
		w.add("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		w.add("created_at <= ?", *f.CreatedBefore)
	}

	var total int64
	err := r.DB.QueryRow(ctx, "SELECT count(*) FROM transactions "+w.String(), w.args...).Scan(&total)
	if err != nil {
		return nil, 0, storeError(fmt.Errorf("count transactions: %w", err))
	}

	query := "SELECT " + transactionColumns + " FROM transactions " + w.String() +
		" ORDER BY created_at DESC, id DESC" +
		" LIMIT " + w.next(f.PageSize) +
		" OFFSET " + w.next(models.Offset(f.Page, f.PageSize))

	rows, _ := r.DB.Query(ctx, query, w.args...)
	transactions, err := pgx.CollectRows(rows, rowToTransaction)
	if err != nil {
		return nil, 0, storeError(fmt.Errorf("list transactions: %w", err))
	}

	return transactions, total, nil
}

const listForUser = `-- name: ListTransactionsForUser
SELECT ` + transactionColumns + ` FROM transactions
WHERE sender_id = $1 OR receiver_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`

func (r *TransactionRepo) GetLatestForUser(ctx context.Context, userID uuid.UUID) (models.Transaction, error) {
	rows, _ := r.DB.Query(ctx, listForUser, userID, 1)
	t, err := pgx.CollectOneRow(rows, rowToTransaction)

	switch {
	case err == nil:
		return t, nil
	case errors.Is(err, pgx.ErrNoRows):
		return t, apperrors.ErrTransactionNotFound
	default:
		return t, storeError(err)
	}
}

func (r *TransactionRepo) ListRecentForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error) {
	rows, _ := r.DB.Query(ctx, listForUser, userID, limit)
	transactions, err := pgx.CollectRows(rows, rowToTransaction)
	if err != nil {
		return nil, storeError(err)
	}

	return transactions, nil
}

func rowToTransaction(row pgx.CollectableRow) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.SenderID, &t.ReceiverID, &t.Amount, &t.Type, &t.Status, &t.Description, &t.CreatedAt)
	return t, err
}
