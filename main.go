package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alex-paystack/command-centre-api-sub000/pkg/config"
	"github.com/alex-paystack/command-centre-api-sub000/pkg/utils"
)

func main() {
	// Initialize logging system
	utils.InitLogger()
	logger := utils.GetLogger()

	if _, err := config.EnsureDefaultConfig(); err != nil {
		logger.Warn("Failed to write default config", "error", err)
	}

	cfg, configFile, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger.Info("Config loaded", "file", configFile)

	server := NewServer()
	if err := server.Start(cfg); err != nil {
		logger.Error("Failed to start server", "error", err)
		os.Exit(1)
	}

	// Block until interrupted, then drain in-flight streams.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", "error", err)
		os.Exit(1)
	}
}
