package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/walletledger/internal/apperrors"
	"github.com/nkiryanov/walletledger/internal/models"
	"github.com/nkiryanov/walletledger/internal/repository"
)

// Manager owns wallet balances
// It is the only component that mutates a balance, and it never records transactions
type Manager struct {
	storage repository.Storage
}

func NewManager(storage repository.Storage) *Manager {
	return &Manager{storage: storage}
}

// WithStorage returns manager bound to another storage, usually to the one of a running db transaction
func (m *Manager) WithStorage(storage repository.Storage) *Manager {
	return &Manager{storage: storage}
}

func (m *Manager) CreateWallet(ctx context.Context, userID uuid.UUID) (models.Wallet, error) {
	wallet, err := m.storage.Wallet().CreateWallet(ctx, userID)
	if err != nil {
		return wallet, fmt.Errorf("create wallet: %w", err)
	}
	return wallet, nil
}

// GetBalance returns the user wallet with its current balance
func (m *Manager) GetBalance(ctx context.Context, userID uuid.UUID) (models.Wallet, error) {
	wallet, err := m.storage.Wallet().GetWallet(ctx, userID)
	if err != nil {
		return wallet, fmt.Errorf("get balance: %w", err)
	}
	return wallet, nil
}

// ApplyDelta adds delta to the wallet balance in one atomic step
// Positive delta credits, negative debits. Returns ErrInsufficientFunds if balance would become negative
func (m *Manager) ApplyDelta(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (models.Wallet, error) {
	wallet, err := m.storage.Wallet().UpdateBalance(ctx, userID, delta)
	if err != nil {
		return wallet, fmt.Errorf("apply delta %s: %w", delta, err)
	}
	return wallet, nil
}

func (m *Manager) ListWallets(ctx context.Context, filter models.WalletFilter) (models.Page[models.Wallet], error) {
	page := models.Page[models.Wallet]{PageSize: filter.PageSize, PageNumber: filter.Page}
	if filter.Page < 1 || filter.PageSize < 1 {
		return page, apperrors.ErrInvalidPagination
	}

	wallets, total, err := m.storage.Wallet().ListWallets(ctx, filter)
	if err != nil {
		return page, fmt.Errorf("list wallets: %w", err)
	}

	page.Items = wallets
	page.TotalCount = total
	return page, nil
}
