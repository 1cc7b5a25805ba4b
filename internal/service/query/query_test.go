package query

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/walletledger/internal/apperrors"
	"github.com/nkiryanov/walletledger/internal/models"
	"github.com/nkiryanov/walletledger/internal/repository"
	"github.com/nkiryanov/walletledger/internal/repository/postgres"
	"github.com/nkiryanov/walletledger/internal/testutil"
)

func TestService(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	withTx := func(t *testing.T, fn func(s *Service, storage repository.Storage)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			fn(NewService(storage), storage)
		})
	}

	mustCreateUser := func(t *testing.T, storage repository.Storage, username string) models.User {
		user, err := storage.User().CreateUser(t.Context(), repository.CreateUserParams{
			Username:     username,
			Name:         "Name of " + username,
			PasswordHash: "hash",
		})
		require.NoError(t, err, "creating user should not fail")
		return user
	}

	// Store count transfers from sender to receiver, one minute apart starting at 2025-01-01
	mustCreateTransfers := func(t *testing.T, storage repository.Storage, sender, receiver uuid.UUID, count int) []models.Transaction {
		start := testutil.MustParseTime(t, "2025-01-01 00:00:00Z")
		res := make([]models.Transaction, 0, count)
		for i := range count {
			tr, err := storage.Transaction().CreateTransaction(t.Context(), models.Transaction{
				SenderID:   sender,
				ReceiverID: receiver,
				Amount:     decimal.NewFromInt(int64(i + 1)),
				Type:       models.TransactionTypeTransfer,
				Status:     models.TransactionStatusCompleted,
				CreatedAt:  start.Add(time.Duration(i) * time.Minute),
			})
			require.NoError(t, err)
			res = append(res, tr)
		}
		return res
	}

	t.Run("ListTransactions", func(t *testing.T) {
		t.Run("pages cover all items exactly once", func(t *testing.T) {
			withTx(t, func(s *Service, storage repository.Storage) {
				alice := mustCreateUser(t, storage, "alice")
				bob := mustCreateUser(t, storage, "bob")
				created := mustCreateTransfers(t, storage, alice.ID, bob.ID, 7)

				seen := make(map[int64]bool)
				var ordered []int64
				for pageNum := 1; pageNum <= 3; pageNum++ {
					page, err := s.ListTransactions(t.Context(), models.TransactionFilter{Page: pageNum, PageSize: 3})
					require.NoError(t, err)
					require.EqualValues(t, 7, page.TotalCount)
					require.Equal(t, 3, page.TotalPages())
					require.Equal(t, pageNum > 1, page.HasPrevious())
					require.Equal(t, pageNum < 3, page.HasNext())

					for _, item := range page.Items {
						require.False(t, seen[item.ID], "item %d returned twice", item.ID)
						seen[item.ID] = true
						ordered = append(ordered, item.ID)
					}
				}

				require.Len(t, seen, 7)
				for i, id := range ordered {
					require.Equal(t, created[len(created)-1-i].ID, id, "newest first")
				}
			})
		})

		t.Run("items enriched with names", func(t *testing.T) {
			withTx(t, func(s *Service, storage repository.Storage) {
				alice := mustCreateUser(t, storage, "alice")
				bob := mustCreateUser(t, storage, "bob")
				mustCreateTransfers(t, storage, alice.ID, bob.ID, 1)

				page, err := s.ListTransactions(t.Context(), models.TransactionFilter{SenderID: &alice.ID, Page: 1, PageSize: 10})

				require.NoError(t, err)
				require.Len(t, page.Items, 1)
				require.Equal(t, "Name of alice", page.Items[0].SenderName)
				require.Equal(t, "Name of bob", page.Items[0].ReceiverName)
			})
		})

		t.Run("total count ignores pagination", func(t *testing.T) {
			withTx(t, func(s *Service, storage repository.Storage) {
				alice := mustCreateUser(t, storage, "alice")
				bob := mustCreateUser(t, storage, "bob")
				mustCreateTransfers(t, storage, alice.ID, bob.ID, 5)
				mustCreateTransfers(t, storage, bob.ID, alice.ID, 2)

				page, err := s.ListTransactions(t.Context(), models.TransactionFilter{ReceiverID: &alice.ID, Page: 5, PageSize: 10})

				require.NoError(t, err)
				require.Empty(t, page.Items)
				require.EqualValues(t, 2, page.TotalCount)
			})
		})

		t.Run("empty result", func(t *testing.T) {
			withTx(t, func(s *Service, _ repository.Storage) {
				page, err := s.ListTransactions(t.Context(), models.TransactionFilter{Page: 1, PageSize: 10})

				require.NoError(t, err)
				require.NotNil(t, page.Items)
				require.Empty(t, page.Items)
				require.Zero(t, page.TotalPages())
			})
		})

		t.Run("invalid pagination", func(t *testing.T) {
			withTx(t, func(s *Service, _ repository.Storage) {
				for _, f := range []models.TransactionFilter{{Page: 0, PageSize: 1}, {Page: 1, PageSize: 0}, {Page: -1, PageSize: -1}} {
					_, err := s.ListTransactions(t.Context(), f)
					require.ErrorIs(t, err, apperrors.ErrInvalidPagination)
				}
			})
		})

		t.Run("reads are idempotent", func(t *testing.T) {
			withTx(t, func(s *Service, storage repository.Storage) {
				alice := mustCreateUser(t, storage, "alice")
				bob := mustCreateUser(t, storage, "bob")
				mustCreateTransfers(t, storage, alice.ID, bob.ID, 4)
				filter := models.TransactionFilter{Page: 1, PageSize: 10}

				first, err := s.ListTransactions(t.Context(), filter)
				require.NoError(t, err)
				second, err := s.ListTransactions(t.Context(), filter)
				require.NoError(t, err)

				require.Equal(t, first, second)
			})
		})
	})

	t.Run("GetUserTransaction", func(t *testing.T) {
		t.Run("most recent of sent and received", func(t *testing.T) {
			withTx(t, func(s *Service, storage repository.Storage) {
				alice := mustCreateUser(t, storage, "alice")
				bob := mustCreateUser(t, storage, "bob")
				mustCreateTransfers(t, storage, alice.ID, bob.ID, 2)
				latest, err := storage.Transaction().CreateTransaction(t.Context(), models.Transaction{
					SenderID:   bob.ID,
					ReceiverID: alice.ID,
					Amount:     decimal.NewFromInt(9),
					Type:       models.TransactionTypeTransfer,
					Status:     models.TransactionStatusCompleted,
					CreatedAt:  testutil.MustParseTime(t, "2025-02-01 00:00:00Z"),
				})
				require.NoError(t, err)

				view, err := s.GetUserTransaction(t.Context(), alice.ID)

				require.NoError(t, err)
				require.Equal(t, latest.ID, view.ID)
				require.Equal(t, "Name of bob", view.SenderName)
				require.Equal(t, "Name of alice", view.ReceiverName)
			})
		})

		t.Run("none", func(t *testing.T) {
			withTx(t, func(s *Service, storage repository.Storage) {
				alice := mustCreateUser(t, storage, "alice")

				_, err := s.GetUserTransaction(t.Context(), alice.ID)

				require.ErrorIs(t, err, apperrors.ErrTransactionNotFound)
				require.ErrorIs(t, err, apperrors.ErrNotFound)
			})
		})
	})

	t.Run("RecentTransactions", func(t *testing.T) {
		withTx(t, func(s *Service, storage repository.Storage) {
			alice := mustCreateUser(t, storage, "alice")
			bob := mustCreateUser(t, storage, "bob")
			created := mustCreateTransfers(t, storage, alice.ID, bob.ID, 5)

			recent, err := s.RecentTransactions(t.Context(), bob.ID, 3)
			require.NoError(t, err)
			require.Len(t, recent, 3)
			require.Equal(t, created[4].ID, recent[0].ID)
			require.Equal(t, "Name of alice", recent[0].SenderName)

			_, err = s.RecentTransactions(t.Context(), bob.ID, 0)
			require.ErrorIs(t, err, apperrors.ErrInvalidPagination)
		})
	})
}
