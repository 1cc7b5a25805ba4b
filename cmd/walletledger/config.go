package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/walletledger/internal/broker"
	"github.com/nkiryanov/walletledger/internal/logger"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction
	defaultExchange     = broker.DefaultExchange
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the wallet ledger service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key
	// Some internal parts (like signing JWT tokens) uses symmetric encryption, so this key is used for that purpose
	SecretKey string

	// Environment
	Environment string

	// RabbitMQ to publish ledger events to
	// If empty events are written to log only
	BrokerURL      string
	BrokerExchange string

	// Admin user created (or promoted) on start if username is set
	AdminUsername string
	AdminPassword string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:       defaultLoggingLevel,
		ListenAddr:     defaultListenAddr,
		Environment:    defaultEnvironment,
		BrokerExchange: defaultExchange,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":     setString(&c.ListenAddr),
		"DATABASE_URI":    setString(&c.DatabaseDSN),
		"SECRET_KEY":      setString(&c.SecretKey),
		"LOG_LEVEL":       setString(&c.LogLevel),
		"ENVIRONMENT":     setString(&c.Environment),
		"BROKER_URL":      setString(&c.BrokerURL),
		"BROKER_EXCHANGE": setString(&c.BrokerExchange),
		"ADMIN_USERNAME":  setString(&c.AdminUsername),
		"ADMIN_PASSWORD":  setString(&c.AdminPassword),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("walletledger", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVarP(&c.BrokerURL, "broker", "b", c.BrokerURL, "RabbitMQ URL, events are only logged if empty")
	fs.StringVarP(&c.BrokerExchange, "exchange", "x", c.BrokerExchange, "RabbitMQ exchange to publish events to")
	fs.StringVar(&c.AdminUsername, "admin-username", c.AdminUsername, "Username of admin to create on start")
	fs.StringVar(&c.AdminPassword, "admin-password", c.AdminPassword, "Password of admin to create on start")

	return fs.Parse(args)
}

// Validate reports options the service can't start without
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database DSN is required"))
	}
	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key is required"))
	}
	if c.AdminUsername != "" && c.AdminPassword == "" {
		errs = append(errs, errors.New("admin password is required when admin username is set"))
	}

	return errors.Join(errs...)
}
