package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/walletledger/internal/apperrors"
	"github.com/nkiryanov/walletledger/internal/models"
	"github.com/nkiryanov/walletledger/internal/repository"
)

type UserRepo struct {
	DB DBTX
}

const userColumns = `id, created_at, username, name, password_hash, role`

const createUser = `-- name: CreateUser
INSERT INTO users (id, username, name, password_hash, role)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + userColumns

func (r *UserRepo) CreateUser(ctx context.Context, arg repository.CreateUserParams) (models.User, error) {
	role := arg.Role
	if role == "" {
		role = models.RoleUser
	}

	rows, _ := r.DB.Query(ctx, createUser, uuid.New(), arg.Username, arg.Name, arg.PasswordHash, role)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case isUniqueViolation(err):
		return user, apperrors.ErrUserAlreadyExists
	default:
		return user, storeError(err)
	}
}

const getUserByID = `-- name: GetUserByID
SELECT ` + userColumns + ` FROM users
WHERE id = $1
`

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByID, id)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	return user, userResult(err)
}

const getUserByUsername = `-- name: GetUserByUsername
SELECT ` + userColumns + ` FROM users
WHERE username = $1
`

func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByUsername, username)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	return user, userResult(err)
}

const getNames = `-- name: GetNames
SELECT id, name FROM users
WHERE id = ANY($1)
`

func (r *UserRepo) GetNames(ctx context.Context, userIDs ...uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}

	rows, _ := r.DB.Query(ctx, getNames, userIDs)

	var (
		id   uuid.UUID
		name string
	)
	_, err := pgx.ForEachRow(rows, []any{&id, &name}, func() error {
		names[id] = name
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}

	return names, nil
}

const setRole = `-- name: SetRole
UPDATE users SET role = $2
WHERE id = $1
RETURNING ` + userColumns

func (r *UserRepo) SetRole(ctx context.Context, userID uuid.UUID, role string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, setRole, userID, role)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	return user, userResult(err)
}

func userResult(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.ErrUserNotFound
	default:
		return storeError(fmt.Errorf("user: %w", err))
	}
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.CreatedAt, &u.Username, &u.Name, &u.HashedPassword, &u.Role)
	return u, err
}
