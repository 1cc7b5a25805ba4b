package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/walletledger/internal/handlers/middleware"
	"github.com/nkiryanov/walletledger/internal/logger"
	"github.com/nkiryanov/walletledger/internal/models"
	"github.com/nkiryanov/walletledger/internal/service/ledger"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type Services struct {
	Auth    authService
	Wallets walletService
	Ledger  ledgerService
	Query   queryService
}

func NewRouter(s Services, logger logger.Logger) http.Handler {
	withAuth := middleware.AuthMiddleware(s.Auth)
	withAdmin := func(h http.Handler) http.Handler {
		return chain(h, withAuth, middleware.RequireAdmin)
	}

	// All routes live on one mux: metrics middleware reads the matched pattern
	mux := http.NewServeMux()

	mux.Handle("POST /api/v1/auth/register", handleRegister(s.Auth, s.Wallets, logger))
	mux.Handle("POST /api/v1/auth/login", handleLogin(s.Auth, s.Wallets, s.Query, logger))
	mux.Handle("POST /api/v1/auth/refresh", handleTokenRefresh(s.Auth, logger))

	mux.Handle("GET /api/v1/wallets/user/balance", withAuth(handleUserBalance(s.Wallets, logger)))
	mux.Handle("GET /api/v1/wallets", withAdmin(handleListWallets(s.Wallets, logger)))
	mux.Handle("POST /api/v1/wallets/deposit/{userId}", withAdmin(handleDeposit(s.Ledger, logger)))

	mux.Handle("POST /api/v1/transactions", withAuth(handleCreateTransfer(s.Ledger, logger)))
	mux.Handle("GET /api/v1/transactions", withAdmin(handleListTransactions(s.Query, logger)))
	mux.Handle("GET /api/v1/transactions/user", withAuth(handleUserTransaction(s.Query, logger)))

	mux.Handle("GET /metrics", promhttp.Handler())

	handler := chain(mux,
		middleware.LoggerMiddleware(logger),
		middleware.MetricsMiddleware,
	)

	return handler
}

type authService interface {
	// Register user with its wallet
	// Has to return apperrors.ErrUserAlreadyExists if user already exists
	Register(ctx context.Context, username string, name string, password string) (models.User, models.TokenPair, error)

	// Login user with username and password
	// Has to return apperrors.ErrUserNotFound if user not found
	Login(ctx context.Context, username string, password string) (models.User, models.TokenPair, error)

	// Refresh tokens using refresh token
	// If token expired: has to return apperrors.ErrRefreshTokenExpired
	// If token not found: has to return apperrors.ErrRefreshTokenNotFound
	Refresh(ctx context.Context, refresh string) (models.TokenPair, error)

	// Set auth tokens (access, refresh) to response
	SetTokens(w http.ResponseWriter, pair models.TokenPair)

	// Get refresh token from request
	GetRefresh(r *http.Request) (string, error)

	// Get request and return user if it authenticated or error
	Auth(ctx context.Context, r *http.Request) (models.User, error)
}

type walletService interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (models.Wallet, error)
	ListWallets(ctx context.Context, filter models.WalletFilter) (models.Page[models.Wallet], error)
}

type ledgerService interface {
	CreateTransfer(ctx context.Context, p ledger.TransferParams) (models.TransactionView, error)
	CreateDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (models.Wallet, error)
}

type queryService interface {
	ListTransactions(ctx context.Context, filter models.TransactionFilter) (models.Page[models.TransactionView], error)
	GetUserTransaction(ctx context.Context, userID uuid.UUID) (models.TransactionView, error)
	RecentTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.TransactionView, error)
}
