package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"github.com/studiokit/render-agent/internal/api"
	"github.com/studiokit/render-agent/internal/config"
	"github.com/studiokit/render-agent/internal/db"
	"github.com/studiokit/render-agent/internal/logging"
	"github.com/studiokit/render-agent/internal/render"
	"github.com/studiokit/render-agent/internal/storage"
	"github.com/studiokit/render-agent/internal/studio"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting render agent",
		"version", config.Version,
		"data_dir", logging.SanitizePath(cfg.DataDir()),
		"config_file", cfg.Source(),
	)

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire data dir lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another agent is already using %s", cfg.DataDir())
	}
	defer lock.Unlock()

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := studio.NewRepository(database.Conn())

	deviceID, err := ensureDeviceID(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║  STUDIO RENDER AGENT %-37s║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-28d║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s║\n", authToken)
	fmt.Printf("║  Device ID:  %-45s║\n", deviceID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	svc := studio.NewService(repo, logger)

	store, exports, err := newStore(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	driver := render.NewDriver(svc, repo, store, logger)
	runner := render.NewRunner(driver, repo, cfg.RunnerPollInterval(), logger)
	go runner.Start(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:             cfg.Port(),
		Service:          svc,
		Repository:       repo,
		Runner:           runner,
		Exports:          exports,
		DefaultFrameRate: cfg.DefaultFrameRate(),
		CORSOrigins:      cfg.CORSOrigins(),
		Logger:           logger,
		StartTime:        startTime,
		DeviceID:         deviceID,
		Version:          config.Version,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// newStore picks the HTTP object store when a storage URL is configured and
// the local export directory otherwise. The LocalStore is also returned so
// the API can serve its files.
func newStore(cfg config.Config, logger *slog.Logger) (storage.Store, *storage.LocalStore, error) {
	if cfg.StorageURL() != "" {
		logger.Info("exports go to object storage",
			"storage_url", cfg.StorageURL(),
			"token", logging.SanitizeToken(cfg.StorageToken()),
		)
		return storage.NewHTTPStore(cfg.StorageURL(), cfg.StorageToken(), logger), nil, nil
	}

	local, err := storage.NewLocalStore(cfg.ExportDir(), cfg.PublicBaseURL(), logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("exports kept locally", "dir", logging.SanitizePath(cfg.ExportDir()))
	return local, local, nil
}

type configStore interface {
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

func ensureDeviceID(repo configStore) (string, error) {
	return ensureSecret(repo, "device_id", 16)
}

func ensureAuthToken(repo configStore) (string, error) {
	return ensureSecret(repo, api.ConfigKeyAuthToken, 32)
}

// ensureSecret returns the stored value for key, generating and storing a
// random hex value of n bytes on first use.
func ensureSecret(repo configStore, key string, n int) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, key)
	if err == nil && existing != "" {
		return existing, nil
	}

	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	value := hex.EncodeToString(buf)

	if err := repo.SetConfig(ctx, key, value); err != nil {
		return "", err
	}
	return value, nil
}
