package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mmynk/splitpilot/internal/api"
	"github.com/mmynk/splitpilot/internal/config"
	"github.com/mmynk/splitpilot/internal/ledger"
	"github.com/mmynk/splitpilot/internal/service"
	"github.com/mmynk/splitpilot/internal/storage"
	"github.com/mmynk/splitpilot/internal/storage/mongo"
	"github.com/mmynk/splitpilot/internal/storage/sqlite"
	"github.com/mmynk/splitpilot/internal/vision"
	"github.com/mmynk/splitpilot/pkg/logging"
)

func main() {
	// A missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()
	logging.Setup()

	cfg := config.Load()

	store, err := newStore(cfg)
	if err != nil {
		slog.Error("Failed to initialize mirror store", "backend", cfg.MirrorBackend, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Mirror store initialized", "backend", cfg.MirrorBackend)

	svc := service.NewExpenseService(store,
		func(apiKey string) ledger.Client {
			return ledger.NewHTTPClient(cfg.LedgerBaseURL, apiKey)
		},
		func(apiKey string) vision.Analyzer {
			return vision.NewGemini(cfg.VisionBaseURL, apiKey, cfg.VisionModel)
		},
	)

	app := api.NewApp(api.NewHandler(svc, cfg.DefaultLedgerKey, cfg.DefaultVisionKey))

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		slog.Info("Server starting", "address", addr)
		if err := app.Listen(addr); err != nil {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down")
	if err := app.Shutdown(); err != nil {
		slog.Error("Shutdown failed", "error", err)
	}
}

func newStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.MirrorBackend {
	case "mongo":
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("MONGO_URI is required for the mongo backend")
		}
		return mongo.New(context.Background(), cfg.MongoURI)
	case "sqlite":
		return sqlite.New(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unknown mirror backend %q", cfg.MirrorBackend)
	}
}
