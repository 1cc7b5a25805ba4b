package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nkiryanov/walletledger/internal/broker"
	"github.com/nkiryanov/walletledger/internal/db"
	"github.com/nkiryanov/walletledger/internal/handlers"
	"github.com/nkiryanov/walletledger/internal/logger"
	"github.com/nkiryanov/walletledger/internal/repository/postgres"
	"github.com/nkiryanov/walletledger/internal/service/auth"
	"github.com/nkiryanov/walletledger/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/walletledger/internal/service/ledger"
	"github.com/nkiryanov/walletledger/internal/service/outbox"
	"github.com/nkiryanov/walletledger/internal/service/query"
	"github.com/nkiryanov/walletledger/internal/service/user"
	"github.com/nkiryanov/walletledger/internal/service/wallet"
)

const (
	shutdownTimeout    = 5 * time.Second
	tokenPurgeInterval = time.Hour
	readHeaderTimeout  = 5 * time.Second
)

type publisher interface {
	outbox.Publisher
	Close() error
}

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger    logger.Logger
	pool      *pgxpool.Pool
	relay     *outbox.Relay
	publisher publisher
	tokens    *tokenmanager.TokenManager
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	app, err := newServerApp(ctx, c, logger, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return app, nil
}

func newServerApp(ctx context.Context, c *Config, logger logger.Logger, pool *pgxpool.Pool) (*ServerApp, error) {
	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: c.SecretKey}, storage.Refresh())
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}
	userService := user.NewService(user.DefaultHasher, storage)
	authService, err := auth.NewService(auth.Config{}, tokenManager, userService)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}
	accounts := wallet.NewManager(storage)
	ledgerService := ledger.NewService(storage, accounts, logger.With("component", "ledger"))
	queryService := query.NewService(storage)

	if c.AdminUsername != "" {
		admin, err := userService.EnsureAdmin(ctx, c.AdminUsername, c.AdminPassword)
		if err != nil {
			return nil, fmt.Errorf("error while creating admin. Err: %w", err)
		}
		logger.Info("Admin user is ready", "username", admin.Username, "id", admin.ID)
	}

	// Events are relayed to the broker if it is configured
	var pub publisher
	if c.BrokerURL != "" {
		rabbit, err := broker.NewRabbitMQ(c.BrokerURL, c.BrokerExchange)
		if err != nil {
			return nil, fmt.Errorf("error while connecting to broker. Err: %w", err)
		}
		pub = rabbit
	} else {
		logger.Warn("Broker URL is not set, events will be written to log only")
		pub = broker.NewLogPublisher(logger)
	}

	relay := outbox.New(outbox.Config{}, storage.Outbox(), pub, logger)

	router := handlers.NewRouter(handlers.Services{
		Auth:    authService,
		Wallets: accounts,
		Ledger:  ledgerService,
		Query:   queryService,
	}, logger)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    router,
		logger:     logger,
		pool:       pool,
		relay:      relay,
		publisher:  pub,
		tokens:     tokenManager,
	}, nil
}

// Run starts http server with background workers and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.pool.Close()
	defer func() {
		if err := s.publisher.Close(); err != nil {
			s.logger.Error("Failed to close broker connection", "error", err)
		}
	}()

	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	relayStopped := s.relay.Run(srvCtx)
	purgeStopped := s.purgeTokens(srvCtx)

	idleConnsClosed := make(chan struct{})
	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-relayStopped
	<-purgeStopped

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Expired refresh tokens are deleted periodically
func (s *ServerApp) purgeTokens(ctx context.Context) <-chan struct{} {
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)

		ticker := time.NewTicker(tokenPurgeInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deleted, err := s.tokens.PurgeExpired(ctx)
				if err != nil {
					s.logger.Error("Failed to purge expired refresh tokens", "error", err)
					continue
				}
				s.logger.Debug("Expired refresh tokens purged", "count", deleted)
			}
		}
	}()

	return stopped
}
