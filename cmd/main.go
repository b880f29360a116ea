/*
Package main is the entry point for the direct-messaging server.

It is responsible for loading configuration, initializing the global logging system,
opening the entity store, wiring the application services, starting the HTTP server
and the WebSocket Hub, and gracefully handling operating system interrupt signals
(SIGINT, SIGTERM) to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dmchat/internal/app/account"
	"dmchat/internal/app/chat"
	"dmchat/internal/app/ledger"
	"dmchat/internal/app/relation"
	"dmchat/internal/app/storage"
	"dmchat/internal/app/store"
	"dmchat/internal/configs"
	"dmchat/internal/handler"
	"dmchat/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Str("data_dir", cfg.DataDir).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Bool("avatar_storage", cfg.S3Enabled()).
		Msg("Configuration loaded successfully")

	// Open the entity store (creates the data directory and empty collections on first run)
	st, err := store.Open(cfg.DataDir)
	if err != nil {
		logx.Fatal(err, "Failed to open entity store", "data_dir", cfg.DataDir)
	}

	// Optional S3-compatible object storage for avatar offloading
	var avatars storage.ObjectStorage
	if cfg.S3Enabled() {
		avatars, err = storage.NewObjectStorage(storage.ServiceConfig{
			S3BucketName:      cfg.S3BucketName,
			S3Endpoint:        cfg.S3Endpoint,
			S3PublicBaseURL:   cfg.S3PublicBaseURL,
			S3AccessKeyID:     cfg.S3AccessKeyID,
			S3SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			logx.Fatal(err, "Failed to initialize avatar object storage")
		}
	}

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Wire application services
	hub := chat.NewHub()
	deps := &handler.AppDeps{
		Config:    cfg,
		Accounts:  account.NewService(st, avatars),
		Relations: relation.NewService(st),
		Ledger:    ledger.NewService(st),
		Hub:       hub,
	}

	// Setup HTTP server and routes
	router := handler.Router(deps)

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("DM Chat Server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	hub.Shutdown()

	logx.Info("Server gracefully stopped.")
}
