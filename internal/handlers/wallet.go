package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/walletledger/internal/handlers/render"
	"github.com/nkiryanov/walletledger/internal/handlers/userctx"
	"github.com/nkiryanov/walletledger/internal/logger"
	"github.com/nkiryanov/walletledger/internal/models"
)

func handleUserBalance(walletService walletService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		wallet, err := walletService.GetBalance(r.Context(), user.ID)
		if err != nil {
			renderServiceError(w, l, "Failed to get balance", err)
			return
		}

		render.JSON(w, newWalletResponse(wallet))
	})
}

func handleListWallets(walletService walletService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := newQueryParams(r.URL.Query())
		filter := models.WalletFilter{
			UserID:        q.UUID("user_id"),
			MinBalance:    q.Decimal("min_balance"),
			MaxBalance:    q.Decimal("max_balance"),
			CreatedAfter:  q.Time("created_after"),
			CreatedBefore: q.Time("created_before"),
			UpdatedAfter:  q.Time("updated_after"),
			UpdatedBefore: q.Time("updated_before"),
		}
		filter.Page, filter.PageSize = q.Page()

		if !q.Valid() {
			render.FieldErrors(w, q.Errors())
			return
		}

		page, err := walletService.ListWallets(r.Context(), filter)
		if err != nil {
			renderServiceError(w, l, "Failed to list wallets", err)
			return
		}

		render.JSON(w, newPageResponse(page, newWalletResponse))
	})
}

func handleDeposit(ledgerService ledgerService, l logger.Logger) http.Handler {
	type request struct {
		Amount decimal.Decimal `json:"amount" validate:"amount"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(r.PathValue("userId"))
		if err != nil {
			render.FieldErrors(w, map[string]string{"userId": "Invalid UUID"})
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		wallet, err := ledgerService.CreateDeposit(r.Context(), userID, data.Amount)
		if err != nil {
			renderServiceError(w, l, "Failed to deposit", err)
			return
		}

		render.JSON(w, newWalletResponse(wallet))
	})
}
