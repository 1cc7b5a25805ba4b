package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/walletledger/internal/logger"
	"github.com/nkiryanov/walletledger/internal/repository"
	"github.com/nkiryanov/walletledger/internal/repository/postgres"
	"github.com/nkiryanov/walletledger/internal/service/auth"
	"github.com/nkiryanov/walletledger/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/walletledger/internal/service/ledger"
	"github.com/nkiryanov/walletledger/internal/service/query"
	"github.com/nkiryanov/walletledger/internal/service/user"
	"github.com/nkiryanov/walletledger/internal/service/wallet"
	"github.com/nkiryanov/walletledger/internal/testutil"
)

type testApp struct {
	URL     string
	Storage repository.Storage
	Users   *user.UserService
}

// Run production router on top of db transaction
// Transaction is rolled back when test stops
func withApp(t *testing.T, db interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}, fn func(app testApp)) {
	testutil.InTx(db, t, func(tx pgx.Tx) {
		storage := postgres.NewStorage(tx)
		l := logger.NewNoOpLogger()

		tokens, err := tokenmanager.New(tokenmanager.Config{SecretKey: "test-secret"}, storage.Refresh())
		require.NoError(t, err, "token manager should be created without errors")

		users := user.NewService(user.DefaultHasher, storage)
		authService, err := auth.NewService(auth.Config{}, tokens, users)
		require.NoError(t, err, "auth service starting error")

		accounts := wallet.NewManager(storage)
		router := NewRouter(Services{
			Auth:    authService,
			Wallets: accounts,
			Ledger:  ledger.NewService(storage, accounts, l),
			Query:   query.NewService(storage),
		}, l)

		srv := httptest.NewServer(router)
		defer srv.Close()

		fn(testApp{URL: srv.URL, Storage: storage, Users: users})
	})
}

// Make request and return response with its body
// Access token is sent if not empty
func do(t *testing.T, method string, url string, access string, body string, cookies ...*http.Cookie) (*http.Response, string) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(t.Context(), method, url, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if access != "" {
		req.Header.Set("Authorization", access)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, string(data)
}

// Register user through API and return its access header value
func mustRegister(t *testing.T, app testApp, username string) string {
	t.Helper()

	resp, body := do(t, http.MethodPost, app.URL+"/api/v1/auth/register", "",
		`{"username": "`+username+`", "name": "Name of `+username+`", "password": "StrongEnoughPassword"}`)
	require.Equalf(t, http.StatusCreated, resp.StatusCode, "register failed: %s", body)

	return resp.Header.Get("Authorization")
}

// Create admin and return its access header value
func mustAdmin(t *testing.T, app testApp) string {
	t.Helper()

	_, err := app.Users.EnsureAdmin(t.Context(), "admin", "AdminPassword")
	require.NoError(t, err)

	resp, body := do(t, http.MethodPost, app.URL+"/api/v1/auth/login", "",
		`{"username": "admin", "password": "AdminPassword"}`)
	require.Equalf(t, http.StatusOK, resp.StatusCode, "admin login failed: %s", body)

	return resp.Header.Get("Authorization")
}

// Get id of authenticated user from its wallet
func userIDFromBalance(t *testing.T, app testApp, access string) string {
	t.Helper()

	resp, body := do(t, http.MethodGet, app.URL+"/api/v1/wallets/user/balance", access, "")
	require.Equalf(t, http.StatusOK, resp.StatusCode, "get balance failed: %s", body)

	var wallet struct {
		UserID string `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &wallet))
	return wallet.UserID
}
