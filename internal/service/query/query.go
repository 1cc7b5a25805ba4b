package query

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/walletledger/internal/apperrors"
	"github.com/nkiryanov/walletledger/internal/models"
	"github.com/nkiryanov/walletledger/internal/repository"
)

const maxRecentLimit = 100

// Service is read only access to transaction history
type Service struct {
	storage repository.Storage
}

func NewService(storage repository.Storage) *Service {
	return &Service{storage: storage}
}

// ListTransactions returns one page of transactions matching the filter, newest first
func (s *Service) ListTransactions(ctx context.Context, filter models.TransactionFilter) (models.Page[models.TransactionView], error) {
	page := models.Page[models.TransactionView]{PageSize: filter.PageSize, PageNumber: filter.Page}
	if filter.Page < 1 || filter.PageSize < 1 {
		return page, apperrors.ErrInvalidPagination
	}

	transactions, total, err := s.storage.Transaction().ListTransactions(ctx, filter)
	if err != nil {
		return page, fmt.Errorf("list transactions: %w", err)
	}

	views, err := s.enrich(ctx, transactions)
	if err != nil {
		return page, err
	}

	page.Items = views
	page.TotalCount = total
	return page, nil
}

// GetUserTransaction returns the most recent transaction the user took part in
func (s *Service) GetUserTransaction(ctx context.Context, userID uuid.UUID) (models.TransactionView, error) {
	t, err := s.storage.Transaction().GetLatestForUser(ctx, userID)
	if err != nil {
		return models.TransactionView{}, fmt.Errorf("get user transaction: %w", err)
	}

	views, err := s.enrich(ctx, []models.Transaction{t})
	if err != nil {
		return models.TransactionView{}, err
	}
	return views[0], nil
}

// RecentTransactions returns up to limit latest transactions of the user
func (s *Service) RecentTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.TransactionView, error) {
	if limit < 1 || limit > maxRecentLimit {
		return nil, apperrors.ErrInvalidPagination
	}

	transactions, err := s.storage.Transaction().ListRecentForUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent transactions: %w", err)
	}

	return s.enrich(ctx, transactions)
}

// Names of all participants are fetched by one query
func (s *Service) enrich(ctx context.Context, transactions []models.Transaction) ([]models.TransactionView, error) {
	views := make([]models.TransactionView, 0, len(transactions))
	if len(transactions) == 0 {
		return views, nil
	}

	ids := make([]uuid.UUID, 0, 2*len(transactions))
	for _, t := range transactions {
		ids = append(ids, t.SenderID, t.ReceiverID)
	}

	names, err := s.storage.User().GetNames(ctx, ids...)
	if err != nil {
		return nil, fmt.Errorf("participant names: %w", err)
	}

	for _, t := range transactions {
		views = append(views, models.TransactionView{
			Transaction:  t,
			SenderName:   names[t.SenderID],
			ReceiverName: names[t.ReceiverID],
		})
	}
	return views, nil
}
