package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/walletledger/internal/apperrors"
	"github.com/nkiryanov/walletledger/internal/logger"
	"github.com/nkiryanov/walletledger/internal/models"
	"github.com/nkiryanov/walletledger/internal/repository"
	"github.com/nkiryanov/walletledger/internal/service/wallet"
)

const depositDescription = "deposit"

// Upper bound of NUMERIC(18,2)
var maxAmount = decimal.New(1, 16)

type TransferParams struct {
	SenderID    uuid.UUID
	ReceiverID  uuid.UUID
	Amount      decimal.Decimal
	Description string
}

// Service moves value between wallets and records every movement
// Balance changes and the transaction record are committed together or not at all
type Service struct {
	storage  repository.Storage
	accounts *wallet.Manager
	logger   logger.Logger
}

func NewService(storage repository.Storage, accounts *wallet.Manager, l logger.Logger) *Service {
	return &Service{
		storage:  storage,
		accounts: accounts,
		logger:   l,
	}
}

// ValidateAmount checks amount is positive, has at most two fractional digits and fits the store
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.Equal(amount.Round(models.AmountScale)) || amount.GreaterThanOrEqual(maxAmount) {
		return apperrors.ErrInvalidAmount
	}
	return nil
}

func (s *Service) CreateTransfer(ctx context.Context, p TransferParams) (view models.TransactionView, err error) {
	start := time.Now()
	defer func() {
		s.observe(operationTransfer, start, err)
	}()

	if err := ValidateAmount(p.Amount); err != nil {
		return view, err
	}

	if _, err := s.storage.User().GetUserByID(ctx, p.ReceiverID); err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return view, apperrors.ErrReceiverNotFound
		}
		return view, fmt.Errorf("resolve receiver: %w", err)
	}

	err = s.storage.InTx(ctx, func(tx repository.Storage) error {
		// Both wallets locked by one statement in fixed order, so opposite transfers can't deadlock
		locked, err := tx.Wallet().LockWallets(ctx, p.SenderID, p.ReceiverID)
		if err != nil {
			return err
		}

		sender, ok := locked[p.SenderID]
		if !ok {
			return apperrors.ErrSenderWalletNotFound
		}
		if sender.Balance.LessThan(p.Amount) {
			return apperrors.ErrInsufficientFunds
		}
		if _, ok := locked[p.ReceiverID]; !ok {
			return apperrors.ErrReceiverWalletNotFound
		}

		accounts := s.accounts.WithStorage(tx)
		if _, err := accounts.ApplyDelta(ctx, p.SenderID, p.Amount.Neg()); err != nil {
			return err
		}
		if _, err := accounts.ApplyDelta(ctx, p.ReceiverID, p.Amount); err != nil {
			return err
		}

		created, err := tx.Transaction().CreateTransaction(ctx, models.Transaction{
			SenderID:    p.SenderID,
			ReceiverID:  p.ReceiverID,
			Amount:      p.Amount,
			Type:        models.TransactionTypeTransfer,
			Status:      models.TransactionStatusCompleted,
			Description: p.Description,
		})
		if err != nil {
			return err
		}

		view, err = enrich(ctx, tx, created)
		if err != nil {
			return err
		}

		return createEvent(ctx, tx, view)
	})
	if err != nil {
		return models.TransactionView{}, fmt.Errorf("transfer: %w", err)
	}

	s.logger.Info("Transfer completed",
		"transaction_id", view.ID,
		"sender_id", view.SenderID,
		"receiver_id", view.ReceiverID,
		"amount", view.Amount.StringFixed(models.AmountScale),
	)
	return view, nil
}

// CreateDeposit credits user wallet with external money and records it as deposit transaction
func (s *Service) CreateDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (w models.Wallet, err error) {
	start := time.Now()
	defer func() {
		s.observe(operationDeposit, start, err)
	}()

	if err := ValidateAmount(amount); err != nil {
		return w, err
	}

	err = s.storage.InTx(ctx, func(tx repository.Storage) error {
		w, err = s.accounts.WithStorage(tx).ApplyDelta(ctx, userID, amount)
		if err != nil {
			return err
		}

		created, err := tx.Transaction().CreateTransaction(ctx, models.Transaction{
			SenderID:    userID,
			ReceiverID:  userID,
			Amount:      amount,
			Type:        models.TransactionTypeDeposit,
			Status:      models.TransactionStatusCompleted,
			Description: depositDescription,
		})
		if err != nil {
			return err
		}

		view, err := enrich(ctx, tx, created)
		if err != nil {
			return err
		}

		return createEvent(ctx, tx, view)
	})
	if err != nil {
		return models.Wallet{}, fmt.Errorf("deposit: %w", err)
	}

	s.logger.Info("Deposit completed", "user_id", userID, "amount", amount.StringFixed(models.AmountScale))
	return w, nil
}

func (s *Service) observe(operation string, start time.Time, err error) {
	operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	operationsTotal.With(prometheus.Labels{"operation": operation, "result": resultLabel(err)}).Inc()

	if err != nil && resultLabel(err) == "error" {
		s.logger.Error("Ledger operation failed", "operation", operation, "error", err)
	}
}

func enrich(ctx context.Context, s repository.Storage, t models.Transaction) (models.TransactionView, error) {
	names, err := s.User().GetNames(ctx, t.SenderID, t.ReceiverID)
	if err != nil {
		return models.TransactionView{}, err
	}

	return models.TransactionView{
		Transaction:  t,
		SenderName:   names[t.SenderID],
		ReceiverName: names[t.ReceiverID],
	}, nil
}

// Event payload published to subscribers
type transactionEvent struct {
	ID           int64           `json:"id"`
	SenderID     uuid.UUID       `json:"sender_id"`
	SenderName   string          `json:"sender_name"`
	ReceiverID   uuid.UUID       `json:"receiver_id"`
	ReceiverName string          `json:"receiver_name"`
	Amount       decimal.Decimal `json:"amount"`
	Type         string          `json:"type"`
	Status       string          `json:"status"`
	Description  string          `json:"description"`
	CreatedAt    time.Time       `json:"created_at"`
}

func createEvent(ctx context.Context, s repository.Storage, v models.TransactionView) error {
	payload, err := json.Marshal(transactionEvent{
		ID:           v.ID,
		SenderID:     v.SenderID,
		SenderName:   v.SenderName,
		ReceiverID:   v.ReceiverID,
		ReceiverName: v.ReceiverName,
		Amount:       v.Amount,
		Type:         v.Type,
		Status:       v.Status,
		Description:  v.Description,
		CreatedAt:    v.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = s.Outbox().CreateEvent(ctx, models.OutboxEvent{
		Type:        models.EventTransactionCreated,
		AggregateID: strconv.FormatInt(v.ID, 10),
		Payload:     payload,
	})
	return err
}
