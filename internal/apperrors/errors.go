package apperrors

import (
	"errors"
	"fmt"
)

// Every "not found" error wraps ErrNotFound, so callers may check the kind only
var ErrNotFound = errors.New("not found")

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = fmt.Errorf("user %w", ErrNotFound)
	ErrReceiverNotFound  = fmt.Errorf("receiver %w", ErrNotFound)

	ErrRefreshTokenNotFound = fmt.Errorf("refresh token %w", ErrNotFound)
	ErrRefreshTokenIsUsed   = errors.New("refresh token is used")
	ErrRefreshTokenExpired  = errors.New("refresh token is expired")

	ErrWalletAlreadyExists    = errors.New("wallet already exists")
	ErrWalletNotFound         = fmt.Errorf("wallet %w", ErrNotFound)
	ErrSenderWalletNotFound   = fmt.Errorf("sender wallet %w", ErrNotFound)
	ErrReceiverWalletNotFound = fmt.Errorf("receiver wallet %w", ErrNotFound)
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrInvalidAmount          = errors.New("amount must be positive with at most 2 decimal places")

	ErrTransactionNotFound = fmt.Errorf("transaction %w", ErrNotFound)
	ErrInvalidPagination   = errors.New("page and page size must be positive")

	ErrEventNotFound = fmt.Errorf("outbox event %w", ErrNotFound)

	// Persistence is unavailable or failed; may be transient
	ErrStoreFailure = errors.New("db error")
)
