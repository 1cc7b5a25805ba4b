package ledger

import (
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/walletledger/internal/apperrors"
	"github.com/nkiryanov/walletledger/internal/logger"
	"github.com/nkiryanov/walletledger/internal/models"
	"github.com/nkiryanov/walletledger/internal/repository"
	"github.com/nkiryanov/walletledger/internal/repository/postgres"
	"github.com/nkiryanov/walletledger/internal/service/wallet"
	"github.com/nkiryanov/walletledger/internal/testutil"
)

func newService(storage repository.Storage) *Service {
	return NewService(storage, wallet.NewManager(storage), logger.NewNoOpLogger())
}

// Create user with wallet, funded with amount if it is not empty
func mustCreateUser(t *testing.T, s *Service, storage repository.Storage, username string, amount string) models.User {
	t.Helper()

	user, err := storage.User().CreateUser(t.Context(), repository.CreateUserParams{
		Username:     username,
		Name:         "Name of " + username,
		PasswordHash: "hash",
	})
	require.NoError(t, err, "creating user should not fail")
	_, err = storage.Wallet().CreateWallet(t.Context(), user.ID)
	require.NoError(t, err, "creating wallet should not fail")

	if amount != "" {
		_, err = s.CreateDeposit(t.Context(), user.ID, decimal.RequireFromString(amount))
		require.NoError(t, err, "funding wallet should not fail")
	}

	return user
}

func balance(t *testing.T, storage repository.Storage, userID uuid.UUID) string {
	t.Helper()

	w, err := storage.Wallet().GetWallet(t.Context(), userID)
	require.NoError(t, err)
	return w.Balance.StringFixed(2)
}

func countTransactions(t *testing.T, storage repository.Storage, f models.TransactionFilter) int64 {
	t.Helper()

	f.Page, f.PageSize = 1, 1
	_, total, err := storage.Transaction().ListTransactions(t.Context(), f)
	require.NoError(t, err)
	return total
}

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		amount string
		valid  bool
	}{
		{"0.01", true},
		{"50", true},
		{"100.10", true},
		{"9999999999999999.99", true},
		{"0", false},
		{"-1", false},
		{"0.001", false},
		{"10.005", false},
		{"10000000000000000", false},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			err := ValidateAmount(decimal.RequireFromString(tt.amount))

			if tt.valid {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, apperrors.ErrInvalidAmount)
			}
		})
	}
}

func TestService(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	withTx := func(t *testing.T, fn func(s *Service, storage repository.Storage)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			fn(newService(storage), storage)
		})
	}

	t.Run("CreateTransfer", func(t *testing.T) {
		t.Run("moves money and records transaction", func(t *testing.T) {
			withTx(t, func(s *Service, storage repository.Storage) {
				alice := mustCreateUser(t, s, storage, "alice", "100.00")
				bob := mustCreateUser(t, s, storage, "bob", "")

				view, err := s.CreateTransfer(t.Context(), TransferParams{
					SenderID:    alice.ID,
					ReceiverID:  bob.ID,
					Amount:      decimal.RequireFromString("50.00"),
					Description: "Payment",
				})

				require.NoError(t, err)
				require.NotZero(t, view.ID)
				require.Equal(t, alice.ID, view.SenderID)
				require.Equal(t, bob.ID, view.ReceiverID)
				require.Equal(t, "50.00", view.Amount.StringFixed(2))
				require.Equal(t, models.TransactionTypeTransfer, view.Type)
				require.Equal(t, models.TransactionStatusCompleted, view.Status)
				require.Equal(t, "Payment", view.Description)
				require.Equal(t, "Name of alice", view.SenderName)
				require.Equal(t, "Name of bob", view.ReceiverName)

				require.Equal(t, "50.00", balance(t, storage, alice.ID))
				require.Equal(t, "50.00", balance(t, storage, bob.ID))
			})
		})

		t.Run("records outbox event", func(t *testing.T) {
			withTx(t, func(s *Service, storage repository.Storage) {
				alice := mustCreateUser(t, s, storage, "alice", "10")
				bob := mustCreateUser(t, s, storage, "bob", "")
				_, err := storage.Outbox().ClaimPending(t.Context(), 10, time.Now().Add(-time.Hour)) // drop deposit event
				require.NoError(t, err)

				view, err := s.CreateTransfer(t.Context(), TransferParams{SenderID: alice.ID, ReceiverID: bob.ID, Amount: decimal.RequireFromString("3.50")})
				require.NoError(t, err)

				events, err := storage.Outbox().ClaimPending(t.Context(), 10, time.Now().Add(-time.Hour))
				require.NoError(t, err)
				require.Len(t, events, 1)
				require.Equal(t, models.EventTransactionCreated, events[0].Type)
				require.Equal(t, strconv.FormatInt(view.ID, 10), events[0].AggregateID)

				var payload map[string]any
				require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
				require.True(t, decimal.RequireFromString(payload["amount"].(string)).Equal(decimal.RequireFromString("3.50")))
				require.Equal(t, "Name of bob", payload["receiver_name"])
			})
		})

		t.Run("invalid amount", func(t *testing.T) {
			withTx(t, func(s *Service, storage repository.Storage) {
				alice := mustCreateUser(t, s, storage, "alice", "10")
				bob := mustCreateUser(t, s, storage, "bob", "")

				for _, amount := range []string{"0", "-5", "1.001"} {
					_, err := s.CreateTransfer(t.Context(), TransferParams{SenderID: alice.ID, ReceiverID: bob.ID, Amount: decimal.RequireFromString(amount)})
					require.ErrorIs(t, err, apperrors.ErrInvalidAmount, "amount %s", amount)
				}

				require.Equal(t, "10.00", balance(t, storage, alice.ID))
			})
		})

		t.Run("receiver not found", func(t *testing.T) {
			withTx(t, func(s *Service, storage repository.Storage) {
				alice := mustCreateUser(t, s, storage, "alice", "10")

				_, err := s.CreateTransfer(t.Context(), TransferParams{SenderID: alice.ID, ReceiverID: uuid.New(), Amount: decimal.NewFromInt(1)})

				require.ErrorIs(t, err, apperrors.ErrReceiverNotFound)
				require.ErrorIs(t, err, apperrors.ErrNotFound)
			})
		})

		t.Run("sender wallet not found", func(t *testing.T) {
			withTx(t, func(s *Service, storage repository.Storage) {
				bob := mustCreateUser(t, s, storage, "bob", "")

				_, err := s.CreateTransfer(t.Context(), TransferParams{SenderID: uuid.New(), ReceiverID: bob.ID, Amount: decimal.NewFromInt(1)})

				require.ErrorIs(t, err, apperrors.ErrSenderWalletNotFound)
			})
		})

		t.Run("receiver wallet not found", func(t *testing.T) {
			withTx(t, func(s *Service, storage repository.Storage) {
				alice := mustCreateUser(t, s, storage, "alice", "10")
				bob, err := storage.User().CreateUser(t.Context(), repository.CreateUserParams{Username: "bob", Name: "Bob", PasswordHash: "hash"})
				require.NoError(t, err)

				_, err = s.CreateTransfer(t.Context(), TransferParams{SenderID: alice.ID, ReceiverID: bob.ID, Amount: decimal.NewFromInt(1)})

				require.ErrorIs(t, err, apperrors.ErrReceiverWalletNotFound)
				require.Equal(t, "10.00", balance(t, storage, alice.ID), "sender balance has to be unchanged")
			})
		})

		t.Run("insufficient funds changes nothing", func(t *testing.T) {
			withTx(t, func(s *Service, storage repository.Storage) {
				alice := mustCreateUser(t, s, storage, "alice", "100.00")
				bob := mustCreateUser(t, s, storage, "bob", "")
				before := countTransactions(t, storage, models.TransactionFilter{})

				_, err := s.CreateTransfer(t.Context(), TransferParams{SenderID: alice.ID, ReceiverID: bob.ID, Amount: decimal.RequireFromString("150.00")})

				require.ErrorIs(t, err, apperrors.ErrInsufficientFunds)
				require.Equal(t, "100.00", balance(t, storage, alice.ID))
				require.Equal(t, "0.00", balance(t, storage, bob.ID))
				require.Equal(t, before, countTransactions(t, storage, models.TransactionFilter{}), "no transaction has to be recorded")
			})
		})

		t.Run("whole balance may be sent", func(t *testing.T) {
			withTx(t, func(s *Service, storage repository.Storage) {
				alice := mustCreateUser(t, s, storage, "alice", "20.00")
				bob := mustCreateUser(t, s, storage, "bob", "")

				_, err := s.CreateTransfer(t.Context(), TransferParams{SenderID: alice.ID, ReceiverID: bob.ID, Amount: decimal.RequireFromString("20.00")})

				require.NoError(t, err)
				require.Equal(t, "0.00", balance(t, storage, alice.ID))
				require.Equal(t, "20.00", balance(t, storage, bob.ID))
			})
		})

		t.Run("self transfer keeps balance", func(t *testing.T) {
			withTx(t, func(s *Service, storage repository.Storage) {
				alice := mustCreateUser(t, s, storage, "alice", "10.00")

				view, err := s.CreateTransfer(t.Context(), TransferParams{SenderID: alice.ID, ReceiverID: alice.ID, Amount: decimal.RequireFromString("4.00")})

				require.NoError(t, err)
				require.Equal(t, view.SenderName, view.ReceiverName)
				require.Equal(t, "10.00", balance(t, storage, alice.ID))
				require.EqualValues(t, 1, countTransactions(t, storage, models.TransactionFilter{Type: ptr(models.TransactionTypeTransfer)}))
			})
		})

		t.Run("writes are not idempotent", func(t *testing.T) {
			withTx(t, func(s *Service, storage repository.Storage) {
				alice := mustCreateUser(t, s, storage, "alice", "10.00")
				bob := mustCreateUser(t, s, storage, "bob", "")
				params := TransferParams{SenderID: alice.ID, ReceiverID: bob.ID, Amount: decimal.RequireFromString("1.00")}

				first, err := s.CreateTransfer(t.Context(), params)
				require.NoError(t, err)
				second, err := s.CreateTransfer(t.Context(), params)
				require.NoError(t, err)

				require.NotEqual(t, first.ID, second.ID)
				require.Equal(t, "8.00", balance(t, storage, alice.ID))
			})
		})
	})

	t.Run("CreateDeposit", func(t *testing.T) {
		t.Run("credits wallet and records deposit", func(t *testing.T) {
			withTx(t, func(s *Service, storage repository.Storage) {
				alice := mustCreateUser(t, s, storage, "alice", "")

				w, err := s.CreateDeposit(t.Context(), alice.ID, decimal.RequireFromString("100.00"))

				require.NoError(t, err)
				require.Equal(t, "100.00", w.Balance.StringFixed(2))

				transactions, total, err := storage.Transaction().ListTransactions(t.Context(), models.TransactionFilter{ReceiverID: &alice.ID, Page: 1, PageSize: 10})
				require.NoError(t, err)
				require.EqualValues(t, 1, total)
				require.Equal(t, models.TransactionTypeDeposit, transactions[0].Type)
				require.Equal(t, alice.ID, transactions[0].SenderID)
				require.Equal(t, alice.ID, transactions[0].ReceiverID)
				require.Equal(t, "deposit", transactions[0].Description)
			})
		})

		t.Run("unknown wallet", func(t *testing.T) {
			withTx(t, func(s *Service, _ repository.Storage) {
				_, err := s.CreateDeposit(t.Context(), uuid.New(), decimal.NewFromInt(1))

				require.ErrorIs(t, err, apperrors.ErrWalletNotFound)
			})
		})

		t.Run("invalid amount", func(t *testing.T) {
			withTx(t, func(s *Service, storage repository.Storage) {
				alice := mustCreateUser(t, s, storage, "alice", "")

				_, err := s.CreateDeposit(t.Context(), alice.ID, decimal.RequireFromString("0.005"))

				require.ErrorIs(t, err, apperrors.ErrInvalidAmount)
			})
		})
	})

	t.Run("example scenario", func(t *testing.T) {
		withTx(t, func(s *Service, storage repository.Storage) {
			a := mustCreateUser(t, s, storage, "a", "100.00")
			b := mustCreateUser(t, s, storage, "b", "50.00")

			_, err := s.CreateTransfer(t.Context(), TransferParams{SenderID: a.ID, ReceiverID: b.ID, Amount: decimal.RequireFromString("30.00")})
			require.NoError(t, err)
			require.Equal(t, "70.00", balance(t, storage, a.ID))
			require.Equal(t, "80.00", balance(t, storage, b.ID))

			_, err = s.CreateTransfer(t.Context(), TransferParams{SenderID: b.ID, ReceiverID: a.ID, Amount: decimal.RequireFromString("100.00")})
			require.ErrorIs(t, err, apperrors.ErrInsufficientFunds)
			require.Equal(t, "70.00", balance(t, storage, a.ID))
			require.Equal(t, "80.00", balance(t, storage, b.ID))

			transfers := countTransactions(t, storage, models.TransactionFilter{Type: ptr(models.TransactionTypeTransfer)})
			require.EqualValues(t, 1, transfers)
		})
	})

	// Concurrent tests commit data, so every one of them uses own users
	t.Run("concurrent transfers from one sender", func(t *testing.T) {
		storage := postgres.NewStorage(pg.Pool)
		s := newService(storage)

		const n = 40
		alice := mustCreateUser(t, s, storage, "concurrent-alice", "80.00")
		bob := mustCreateUser(t, s, storage, "concurrent-bob", "")

		var wg sync.WaitGroup
		errs := make(chan error, n)
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.CreateTransfer(t.Context(), TransferParams{SenderID: alice.ID, ReceiverID: bob.ID, Amount: decimal.RequireFromString("2.00")})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}
		require.Equal(t, "0.00", balance(t, storage, alice.ID))
		require.Equal(t, "80.00", balance(t, storage, bob.ID))
		require.EqualValues(t, n, countTransactions(t, storage, models.TransactionFilter{SenderID: &alice.ID, Type: ptr(models.TransactionTypeTransfer)}))
	})

	t.Run("concurrent overdraft attempts", func(t *testing.T) {
		storage := postgres.NewStorage(pg.Pool)
		s := newService(storage)

		const n = 20
		alice := mustCreateUser(t, s, storage, "overdraft-alice", "10.00")
		bob := mustCreateUser(t, s, storage, "overdraft-bob", "")

		var wg sync.WaitGroup
		errs := make(chan error, n)
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.CreateTransfer(t.Context(), TransferParams{SenderID: alice.ID, ReceiverID: bob.ID, Amount: decimal.RequireFromString("1.00")})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		var ok, insufficient int
		for err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, apperrors.ErrInsufficientFunds):
				insufficient++
			default:
				require.NoError(t, err, "only insufficient funds may fail a transfer")
			}
		}

		require.Equal(t, 10, ok)
		require.Equal(t, 10, insufficient)
		require.Equal(t, "0.00", balance(t, storage, alice.ID))
		require.Equal(t, "10.00", balance(t, storage, bob.ID))
	})

	t.Run("concurrent opposite transfers conserve money", func(t *testing.T) {
		storage := postgres.NewStorage(pg.Pool)
		s := newService(storage)

		const n = 20
		alice := mustCreateUser(t, s, storage, "opposite-alice", "50.00")
		bob := mustCreateUser(t, s, storage, "opposite-bob", "50.00")

		var wg sync.WaitGroup
		errs := make(chan error, 2*n)
		for range n {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, err := s.CreateTransfer(t.Context(), TransferParams{SenderID: alice.ID, ReceiverID: bob.ID, Amount: decimal.RequireFromString("1.50")})
				errs <- err
			}()
			go func() {
				defer wg.Done()
				_, err := s.CreateTransfer(t.Context(), TransferParams{SenderID: bob.ID, ReceiverID: alice.ID, Amount: decimal.RequireFromString("1.50")})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			require.NoError(t, err, "lock order has to prevent deadlocks")
		}

		total := decimal.RequireFromString(balance(t, storage, alice.ID)).Add(decimal.RequireFromString(balance(t, storage, bob.ID)))
		require.Equal(t, "100.00", total.StringFixed(2))
		require.Equal(t, "50.00", balance(t, storage, alice.ID))
	})
}

func ptr[T any](v T) *T {
	return &v
}
