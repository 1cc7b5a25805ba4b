package postgres

import (
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/walletledger/internal/models"
	"github.com/nkiryanov/walletledger/internal/repository"
	"github.com/nkiryanov/walletledger/internal/testutil"
)

// Run fn with storage bound to test transaction, rolled back at the end
func inTx(t *testing.T, db DBTX, fn func(tx pgx.Tx, s repository.Storage)) {
	testutil.InTx(db, t, func(tx pgx.Tx) {
		fn(tx, NewStorage(tx))
	})
}

func mustCreateUser(t *testing.T, s repository.Storage, username string) models.User {
	t.Helper()

	user, err := s.User().CreateUser(t.Context(), repository.CreateUserParams{
		Username:     username,
		Name:         "Name of " + username,
		PasswordHash: "hash",
	})
	require.NoError(t, err, "user has to be created ok")
	return user
}

func mustCreateUserWithWallet(t *testing.T, s repository.Storage, username string) (models.User, models.Wallet) {
	t.Helper()

	user := mustCreateUser(t, s, username)
	wallet, err := s.Wallet().CreateWallet(t.Context(), user.ID)
	require.NoError(t, err, "wallet has to be created ok")
	return user, wallet
}

func ptr[T any](v T) *T {
	return &v
}

