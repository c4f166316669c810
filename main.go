package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"goresearch/internal/api"
	"goresearch/internal/config"
	"goresearch/internal/container"
	"goresearch/internal/logging"
	"goresearch/ui"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(appConfig.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appContainer, err := container.New(ctx, appConfig, logger)
	if err != nil {
		logger.Fatal("failed to create application container", zap.Error(err))
	}

	gin.SetMode(appConfig.Server.GinMode)
	router := api.NewRouter(appContainer.Orchestrator, appContainer.Events, logger.Named("api"))
	app := ui.NewApp(router, appContainer.ArtifactReader, logger.Named("http"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start(":" + appConfig.Server.Port)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	if err := appContainer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("container shutdown incomplete", zap.Error(err))
	}
}
