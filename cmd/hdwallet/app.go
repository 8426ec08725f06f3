package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Fantasim/hdwallet/internal/config"
	"github.com/Fantasim/hdwallet/internal/db"
	"github.com/Fantasim/hdwallet/internal/keystore"
	"github.com/Fantasim/hdwallet/internal/ledger"
	"github.com/Fantasim/hdwallet/internal/logging"
	"github.com/Fantasim/hdwallet/internal/metrics"
)

// app is the wiring shared by the commands that touch the database.
type app struct {
	cfg     *config.Config
	db      *db.DB
	ledger  *ledger.Service
	metrics *metrics.Metrics
	closers []io.Closer
}

// loadConfig reads the environment and applies the persistent flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if flagDBPath != "" {
		cfg.DBPath = flagDBPath
	}
	if flagMnemonicFile != "" {
		cfg.MnemonicFile = flagMnemonicFile
	}
	return cfg, nil
}

// setupLogging starts file and stdout logging for cfg.
func setupLogging(cfg *config.Config) (io.Closer, error) {
	closer, err := logging.Setup(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	return closer, nil
}

// openApp loads config, starts logging, opens and migrates the database and
// builds the ledger service.
func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireKeystore(); err != nil {
		return nil, fmt.Errorf("%w: set HDWALLET_KEYSTORE_PASSPHRASE", err)
	}

	a := &app{cfg: cfg, metrics: metrics.New()}

	logCloser, err := setupLogging(cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, logCloser)

	database, err := db.New(cfg.DBPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.db = database

	if err := database.RunMigrations(); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	ks, err := keystore.New(cfg.KeystorePassphrase, keystore.DefaultParams)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create keystore: %w", err)
	}

	a.ledger = ledger.NewService(database, ks, ledger.WithMetrics(a.metrics))

	slog.Info("hdwallet ready",
		"version", version,
		"dbPath", cfg.DBPath,
		"logLevel", cfg.LogLevel,
	)
	return a, nil
}

// Close releases the database, then the log file.
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
}
