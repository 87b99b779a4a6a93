package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reelkit/reelkit/internal/config"
	"github.com/reelkit/reelkit/internal/database"
	"github.com/reelkit/reelkit/internal/logger"
	"github.com/reelkit/reelkit/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		logger.Error("reelkit exited with error: %v", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	if err := config.GetManager().LoadConfig(configPath); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg := config.Get()

	logger.SetLevel(cfg.Logging.Level)

	if err := database.Initialize(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	router, err := server.SetupRouter(server.Config{
		EnableCORS:     cfg.Server.EnableCORS,
		TrustedProxies: cfg.Server.TrustedProxies,
		ReleaseMode:    cfg.Logging.Level != "debug",
	})
	if err != nil {
		return fmt.Errorf("failed to set up server: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting reelkit server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("Received signal %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("HTTP server shutdown: %v", err)
	}
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("Event bus shutdown: %v", err)
	}

	return nil
}
