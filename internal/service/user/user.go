package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/walletledger/internal/apperrors"
	"github.com/nkiryanov/walletledger/internal/models"
	"github.com/nkiryanov/walletledger/internal/repository"
	"github.com/nkiryanov/walletledger/internal/service/auth"
	"github.com/nkiryanov/walletledger/internal/service/wallet"
)

var DefaultHasher = auth.BcryptHasher{}

type UserService struct {
	hasher  auth.PasswordHasher
	storage repository.Storage
}

func NewService(hasher auth.PasswordHasher, storage repository.Storage) *UserService {
	if hasher == nil {
		hasher = DefaultHasher
	}

	return &UserService{
		hasher:  hasher,
		storage: storage,
	}
}

// CreateUser onboards the user: the user and its empty wallet are created together
func (s *UserService) CreateUser(ctx context.Context, username string, name string, password string) (models.User, error) {
	return s.createUser(ctx, username, name, password, models.RoleUser)
}

func (s *UserService) createUser(ctx context.Context, username string, name string, password string, role string) (models.User, error) {
	var user models.User
	if password == "" {
		return user, errors.New("password must not be empty")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return user, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	err = s.storage.InTx(ctx, func(tx repository.Storage) error {
		user, err = tx.User().CreateUser(ctx, repository.CreateUserParams{
			Username:     username,
			Name:         name,
			PasswordHash: hash,
			Role:         role,
		})
		if err != nil {
			return err
		}

		_, err = wallet.NewManager(tx).CreateWallet(ctx, user.ID)
		return err
	})
	if err != nil {
		return models.User{}, fmt.Errorf("can't create user. Err: %w", err)
	}

	return user, nil
}

// Login returns user if password matches
// Wrong password is reported the same way as unknown user
func (s *UserService) Login(ctx context.Context, username string, password string) (models.User, error) {
	user, err := s.storage.User().GetUserByUsername(ctx, username)
	if err != nil {
		return models.User{}, err
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return models.User{}, apperrors.ErrUserNotFound
	}

	return user, nil
}

func (s *UserService) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return s.storage.User().GetUserByID(ctx, userID)
}

// EnsureAdmin creates admin user or grants admin role to the existing one
// Password of existing user is left unchanged
func (s *UserService) EnsureAdmin(ctx context.Context, username string, password string) (models.User, error) {
	user, err := s.storage.User().GetUserByUsername(ctx, username)

	switch {
	case err == nil:
		if user.IsAdmin() {
			return user, nil
		}
		return s.storage.User().SetRole(ctx, user.ID, models.RoleAdmin)
	case errors.Is(err, apperrors.ErrUserNotFound):
		return s.createUser(ctx, username, "Administrator", password, models.RoleAdmin)
	default:
		return user, err
	}
}
