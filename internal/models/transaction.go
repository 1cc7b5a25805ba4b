package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TransactionTypeTransfer = "transfer"
	TransactionTypeDeposit  = "deposit"
)

const (
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// Money scale: all amounts are stored with two fractional digits
const AmountScale = 2

// Transaction is an immutable record of applied balance movement
type Transaction struct {
	ID          int64
	SenderID    uuid.UUID
	ReceiverID  uuid.UUID
	Amount      decimal.Decimal
	Type        string
	Status      string
	Description string
	CreatedAt   time.Time
}

// TransactionView is a transaction enriched with participants display names
type TransactionView struct {
	Transaction
	SenderName   string
	ReceiverName string
}

// TransactionFilter used to list transactions. Nil fields are not applied
type TransactionFilter struct {
	SenderID      *uuid.UUID
	ReceiverID    *uuid.UUID
	Type          *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time

	Page     int
	PageSize int
}
