package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/walletledger/internal/apperrors"
	"github.com/nkiryanov/walletledger/internal/handlers/render"
	"github.com/nkiryanov/walletledger/internal/logger"
	"github.com/nkiryanov/walletledger/internal/models"
)

type userResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserResponse(u models.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// Money is rendered as string with fixed two decimal places
type walletResponse struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Balance   string    `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newWalletResponse(w models.Wallet) walletResponse {
	return walletResponse{
		ID:        w.ID,
		UserID:    w.UserID,
		Balance:   w.Balance.StringFixed(models.AmountScale),
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

type transactionResponse struct {
	ID           int64     `json:"id"`
	SenderID     uuid.UUID `json:"sender_id"`
	SenderName   string    `json:"sender_name"`
	ReceiverID   uuid.UUID `json:"receiver_id"`
	ReceiverName string    `json:"receiver_name"`
	Amount       string    `json:"amount"`
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

func newTransactionResponse(v models.TransactionView) transactionResponse {
	return transactionResponse{
		ID:           v.ID,
		SenderID:     v.SenderID,
		SenderName:   v.SenderName,
		ReceiverID:   v.ReceiverID,
		ReceiverName: v.ReceiverName,
		Amount:       v.Amount.StringFixed(models.AmountScale),
		Type:         v.Type,
		Status:       v.Status,
		Description:  v.Description,
		CreatedAt:    v.CreatedAt,
	}
}

func newTransactionsResponse(views []models.TransactionView) []transactionResponse {
	res := make([]transactionResponse, 0, len(views))
	for _, v := range views {
		res = append(res, newTransactionResponse(v))
	}
	return res
}

type pageResponse[T any] struct {
	Items       []T   `json:"items"`
	Page        int   `json:"page"`
	PageSize    int   `json:"page_size"`
	TotalCount  int64 `json:"total_count"`
	TotalPages  int   `json:"total_pages"`
	HasNext     bool  `json:"has_next"`
	HasPrevious bool  `json:"has_previous"`
}

func newPageResponse[M any, T any](p models.Page[M], convert func(M) T) pageResponse[T] {
	items := make([]T, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, convert(item))
	}

	return pageResponse[T]{
		Items:       items,
		Page:        p.PageNumber,
		PageSize:    p.PageSize,
		TotalCount:  p.TotalCount,
		TotalPages:  p.TotalPages(),
		HasNext:     p.HasNext(),
		HasPrevious: p.HasPrevious(),
	}
}

// Most specific errors go first: they all match ErrNotFound too
var serviceErrors = []struct {
	err  error
	code int
}{
	{apperrors.ErrInvalidAmount, http.StatusBadRequest},
	{apperrors.ErrInvalidPagination, http.StatusBadRequest},
	{apperrors.ErrInsufficientFunds, http.StatusPaymentRequired},
	{apperrors.ErrUserAlreadyExists, http.StatusConflict},
	{apperrors.ErrReceiverNotFound, http.StatusNotFound},
	{apperrors.ErrSenderWalletNotFound, http.StatusNotFound},
	{apperrors.ErrReceiverWalletNotFound, http.StatusNotFound},
	{apperrors.ErrWalletNotFound, http.StatusNotFound},
	{apperrors.ErrTransactionNotFound, http.StatusNotFound},
	{apperrors.ErrUserNotFound, http.StatusNotFound},
	{apperrors.ErrNotFound, http.StatusNotFound},
}

// Render service error with the status of its kind
// Unknown errors are logged and hidden behind 500
func renderServiceError(w http.ResponseWriter, l logger.Logger, msg string, err error) {
	for _, se := range serviceErrors {
		if errors.Is(err, se.err) {
			render.ServiceError(w, se.err.Error(), se.code)
			return
		}
	}

	l.Error(msg, "error", err)
	render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
}
