package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/walletledger/internal/models"
)

// Storage gives access to every repository backed by the same connection or transaction
type Storage interface {
	User() UserRepo
	Refresh() RefreshTokenRepo
	Wallet() WalletRepo
	Transaction() TransactionRepo
	Outbox() OutboxRepo

	// Run fn in a single db transaction: commit if fn returns nil, rollback otherwise
	// Storage passed to fn is bound to the transaction
	InTx(ctx context.Context, fn func(Storage) error) error
}

type CreateUserParams struct {
	Username     string
	Name         string
	PasswordHash string
	Role         string
}

// User repository interface
type UserRepo interface {
	// Create user
	// If user with username exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, arg CreateUserParams) (models.User, error)

	// Get user by it's id or username
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)

	// Display names by user ids. Unknown ids are absent in result
	GetNames(ctx context.Context, userIDs ...uuid.UUID) (map[uuid.UUID]string, error)

	SetRole(ctx context.Context, userID uuid.UUID, role string) (models.User, error)
}

// RefreshToken repository interface
type RefreshTokenRepo interface {
	Save(ctx context.Context, token models.RefreshToken) error

	// Return the token even it expired or used already
	// If not found must return apperrors.ErrRefreshTokenNotFound
	Get(ctx context.Context, tokenString string) (models.RefreshToken, error)

	// Mark token as used and return it
	// If the token is already used, must not overwrite 'usedAt' and return apperrors.ErrRefreshTokenIsUsed
	GetAndMarkUsed(ctx context.Context, tokenString string) (models.RefreshToken, error)

	// Remove tokens expired before the moment
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Wallet repository interface
type WalletRepo interface {
	// If user already has wallet must return apperrors.ErrWalletAlreadyExists
	CreateWallet(ctx context.Context, userID uuid.UUID) (models.Wallet, error)

	// If wallet not found must return apperrors.ErrWalletNotFound
	GetWallet(ctx context.Context, userID uuid.UUID) (models.Wallet, error)

	// Lock wallets of the users until transaction end
	// Rows are locked in wallet id order. Wallets that don't exist are absent in result
	LockWallets(ctx context.Context, userIDs ...uuid.UUID) (map[uuid.UUID]models.Wallet, error)

	// Add delta to wallet balance and refresh 'updatedAt'
	// Must return apperrors.ErrInsufficientFunds if balance would become negative
	// Must return apperrors.ErrWalletNotFound if wallet not exists
	UpdateBalance(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (models.Wallet, error)

	// Wallets ordered by 'updatedAt' desc and total count of matched
	ListWallets(ctx context.Context, filter models.WalletFilter) ([]models.Wallet, int64, error)
}

// Transaction repository interface
// Transactions are append only, so there are no methods to change or delete them
type TransactionRepo interface {
	CreateTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error)

	// Transactions ordered by 'createdAt' desc, 'id' desc and total count of matched
	ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, int64, error)

	// Most recent transaction where user is sender or receiver
	// If there is no one must return apperrors.ErrTransactionNotFound
	GetLatestForUser(ctx context.Context, userID uuid.UUID) (models.Transaction, error)

	ListRecentForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error)
}

// Outbox repository interface
type OutboxRepo interface {
	CreateEvent(ctx context.Context, event models.OutboxEvent) (models.OutboxEvent, error)

	// Claim up to limit pending events and mark them processing
	// Events left processing since before staleBefore are claimed again
	// Concurrent callers never get the same event
	ClaimPending(ctx context.Context, limit int, staleBefore time.Time) ([]models.OutboxEvent, error)

	MarkProcessed(ctx context.Context, eventID uuid.UUID) error

	// Return event to pending state; mark it failed when attempts exceed maxAttempts
	MarkForRetry(ctx context.Context, eventID uuid.UUID, maxAttempts int) (models.OutboxEvent, error)
}
