package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/walletledger/internal/apperrors"
	"github.com/nkiryanov/walletledger/internal/handlers/render"
	"github.com/nkiryanov/walletledger/internal/logger"
)

// Count of recent transactions returned on login
const loginRecentTransactions = 10

func handleRegister(authService authService, walletService walletService, l logger.Logger) http.Handler {
	type request struct {
		Username string `json:"username" validate:"required,min=2,max=50"`
		Name     string `json:"name" validate:"required,max=100"`
		Password string `json:"password" validate:"required,min=8"`
	}
	type response struct {
		User   userResponse   `json:"user"`
		Wallet walletResponse `json:"wallet"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, pair, err := authService.Register(r.Context(), data.Username, data.Name, data.Password)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "User already exists", http.StatusConflict)
			return
		default:
			l.Error("Failed to register user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		wallet, err := walletService.GetBalance(r.Context(), user.ID)
		if err != nil {
			renderServiceError(w, l, "Failed to get registered user wallet", err)
			return
		}

		authService.SetTokens(w, pair)
		render.JSONWithStatus(w, response{
			User:   newUserResponse(user),
			Wallet: newWalletResponse(wallet),
		}, http.StatusCreated)
	})
}

func handleLogin(authService authService, walletService walletService, queryService queryService, l logger.Logger) http.Handler {
	type request struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	type response struct {
		User         userResponse          `json:"user"`
		Wallet       walletResponse        `json:"wallet"`
		Transactions []transactionResponse `json:"transactions"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, pair, err := authService.Login(r.Context(), data.Username, data.Password)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusUnauthorized)
			return
		default:
			l.Error("Failed to login user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		wallet, err := walletService.GetBalance(r.Context(), user.ID)
		if err != nil {
			renderServiceError(w, l, "Failed to get user wallet", err)
			return
		}

		recent, err := queryService.RecentTransactions(r.Context(), user.ID, loginRecentTransactions)
		if err != nil {
			renderServiceError(w, l, "Failed to get recent transactions", err)
			return
		}

		authService.SetTokens(w, pair)
		render.JSON(w, response{
			User:         newUserResponse(user),
			Wallet:       newWalletResponse(wallet),
			Transactions: newTransactionsResponse(recent),
		})
	})
}

func handleTokenRefresh(authService authService, l logger.Logger) http.Handler {
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh, err := authService.GetRefresh(r)
		if err != nil {
			render.ServiceError(w, "Refresh token not found", http.StatusUnauthorized)
			return
		}

		pair, err := authService.Refresh(r.Context(), refresh)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrRefreshTokenExpired):
			render.ServiceError(w, "Refresh token expired", http.StatusUnauthorized)
			return
		case errors.Is(err, apperrors.ErrRefreshTokenIsUsed), errors.Is(err, apperrors.ErrNotFound):
			render.ServiceError(w, "Refresh token not found", http.StatusUnauthorized)
			return
		default:
			l.Error("Failed to refresh tokens", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		authService.SetTokens(w, pair)
		render.JSON(w, response{Message: "Tokens refreshed successfully"})
	})
}
