package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/walletledger/internal/handlers/render"
	"github.com/nkiryanov/walletledger/internal/handlers/userctx"
	"github.com/nkiryanov/walletledger/internal/logger"
	"github.com/nkiryanov/walletledger/internal/models"
	"github.com/nkiryanov/walletledger/internal/service/ledger"
)

func handleCreateTransfer(ledgerService ledgerService, l logger.Logger) http.Handler {
	type request struct {
		ReceiverID  uuid.UUID       `json:"receiver_id" validate:"required"`
		Amount      decimal.Decimal `json:"amount" validate:"amount"`
		Description string          `json:"description" validate:"max=255"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		view, err := ledgerService.CreateTransfer(r.Context(), ledger.TransferParams{
			SenderID:    user.ID,
			ReceiverID:  data.ReceiverID,
			Amount:      data.Amount,
			Description: data.Description,
		})
		if err != nil {
			renderServiceError(w, l, "Failed to create transfer", err)
			return
		}

		render.JSONWithStatus(w, newTransactionResponse(view), http.StatusCreated)
	})
}

func handleListTransactions(queryService queryService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := newQueryParams(r.URL.Query())
		filter := models.TransactionFilter{
			SenderID:      q.UUID("sender_id"),
			ReceiverID:    q.UUID("receiver_id"),
			Type:          q.OneOf("type", models.TransactionTypeTransfer, models.TransactionTypeDeposit),
			CreatedAfter:  q.Time("created_after"),
			CreatedBefore: q.Time("created_before"),
		}
		filter.Page, filter.PageSize = q.Page()

		if !q.Valid() {
			render.FieldErrors(w, q.Errors())
			return
		}

		page, err := queryService.ListTransactions(r.Context(), filter)
		if err != nil {
			renderServiceError(w, l, "Failed to list transactions", err)
			return
		}

		render.JSON(w, newPageResponse(page, newTransactionResponse))
	})
}

func handleUserTransaction(queryService queryService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		view, err := queryService.GetUserTransaction(r.Context(), user.ID)
		if err != nil {
			renderServiceError(w, l, "Failed to get user transaction", err)
			return
		}

		render.JSON(w, newTransactionResponse(view))
	})
}
