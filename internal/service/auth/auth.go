package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/nkiryanov/walletledger/internal/models"
)

const (
	defaultAccessHeaderName  = "Authorization"
	defaultAccessAuthScheme  = "Bearer"
	defaultRefreshCookieName = "refreshtoken"
	defaultRefreshCookiePath = "/api/v1/auth"
)

var errNoCredentials = errors.New("credentials not found in request")

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

type tokenManager interface {
	GeneratePair(ctx context.Context, user models.User) (models.TokenPair, error)
	UseRefresh(ctx context.Context, refresh string) (models.RefreshToken, error)
	ParseAccess(ctx context.Context, access string) (uuid.UUID, error)
}

type userService interface {
	// Has to return apperrors.ErrUserAlreadyExists if username is taken
	CreateUser(ctx context.Context, username string, name string, password string) (models.User, error)

	// Has to return apperrors.ErrUserNotFound if user not exists or password is wrong
	Login(ctx context.Context, username string, password string) (models.User, error)

	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
}

type Config struct {
	// Header to write and read access token from and its auth scheme
	AccessHeaderName string
	AccessAuthScheme string

	// Cookie to keep refresh token in
	RefreshCookieName string
	RefreshCookiePath string
}

// Auth service
type AuthService struct {
	accessHeaderName  string
	accessAuthScheme  string
	refreshCookieName string
	refreshCookiePath string

	// Manager to issue token pairs (access and refresh)
	tokens tokenManager

	users userService
}

func NewService(cfg Config, tokens tokenManager, users userService) (*AuthService, error) {
	setDefault := func(field *string, def string) {
		if *field == "" {
			*field = def
		}
	}
	setDefault(&cfg.AccessHeaderName, defaultAccessHeaderName)
	setDefault(&cfg.AccessAuthScheme, defaultAccessAuthScheme)
	setDefault(&cfg.RefreshCookieName, defaultRefreshCookieName)
	setDefault(&cfg.RefreshCookiePath, defaultRefreshCookiePath)

	return &AuthService{
		accessHeaderName:  cfg.AccessHeaderName,
		accessAuthScheme:  cfg.AccessAuthScheme,
		refreshCookieName: cfg.RefreshCookieName,
		refreshCookiePath: cfg.RefreshCookiePath,
		tokens:            tokens,
		users:             users,
	}, nil
}

// Register user (with wallet) and issue tokens for it
func (s *AuthService) Register(ctx context.Context, username string, name string, password string) (models.User, models.TokenPair, error) {
	user, err := s.users.CreateUser(ctx, username, name, password)
	if err != nil {
		return user, models.TokenPair{}, err
	}

	pair, err := s.tokens.GeneratePair(ctx, user)
	if err != nil {
		return user, pair, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	return user, pair, nil
}

func (s *AuthService) Login(ctx context.Context, username string, password string) (models.User, models.TokenPair, error) {
	user, err := s.users.Login(ctx, username, password)
	if err != nil {
		return user, models.TokenPair{}, err
	}

	pair, err := s.tokens.GeneratePair(ctx, user)
	if err != nil {
		return user, pair, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	return user, pair, nil
}

// Refresh issues new pair for a valid refresh token. The token can be used only once
func (s *AuthService) Refresh(ctx context.Context, refresh string) (models.TokenPair, error) {
	token, err := s.tokens.UseRefresh(ctx, refresh)
	if err != nil {
		return models.TokenPair{}, err
	}

	user, err := s.users.GetUserByID(ctx, token.UserID)
	if err != nil {
		return models.TokenPair{}, err
	}

	return s.tokens.GeneratePair(ctx, user)
}

// Write tokens to response: access to header, refresh to http only cookie
func (s *AuthService) SetTokens(w http.ResponseWriter, pair models.TokenPair) {
	w.Header().Set(s.accessHeaderName, s.accessAuthScheme+" "+pair.Access.Value)

	http.SetCookie(w, &http.Cookie{
		Name:     s.refreshCookieName,
		Value:    pair.Refresh.Value,
		Path:     s.refreshCookiePath,
		Expires:  pair.Refresh.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *AuthService) GetRefresh(r *http.Request) (string, error) {
	cookie, err := r.Cookie(s.refreshCookieName)
	if err != nil || cookie.Value == "" {
		return "", errNoCredentials
	}
	return cookie.Value, nil
}

// Auth returns user the request is authenticated as
func (s *AuthService) Auth(ctx context.Context, r *http.Request) (models.User, error) {
	scheme, access, ok := strings.Cut(r.Header.Get(s.accessHeaderName), " ")
	if !ok || !strings.EqualFold(scheme, s.accessAuthScheme) || access == "" {
		return models.User{}, errNoCredentials
	}

	userID, err := s.tokens.ParseAccess(ctx, access)
	if err != nil {
		return models.User{}, err
	}

	return s.users.GetUserByID(ctx, userID)
}
