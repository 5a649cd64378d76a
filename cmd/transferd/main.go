package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Evgen-Mutagen/moneytransfer/internal/app"
	"github.com/Evgen-Mutagen/moneytransfer/internal/util/logger"
	"go.uber.org/zap"
)

func main() {
	cfg := app.NewConfigFromFlags()

	if err := logger.Init(cfg.LogLevel); err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer logger.Sync()

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Application initialization failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application.Logger.Info("Starting money transfer server",
		zap.String("address", cfg.RunAddress),
		zap.String("dsn", cfg.MaskDBPassword()))

	if err := application.Run(ctx); err != nil {
		application.Logger.Error("Server failed", zap.Error(err))
	}

	application.Logger.Info("Shutting down...")
	if err := application.Close(); err != nil {
		application.Logger.Error("Shutdown error", zap.Error(err))
	}
}
