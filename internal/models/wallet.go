package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet is the single balance account of a user
type Wallet struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WalletFilter used to list wallets. Nil fields are not applied
type WalletFilter struct {
	UserID        *uuid.UUID
	MinBalance    *decimal.Decimal
	MaxBalance    *decimal.Decimal
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	UpdatedAfter  *time.Time
	UpdatedBefore *time.Time

	Page     int
	PageSize int
}
