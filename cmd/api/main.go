package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"cfd-hedge-backtest/internal/api"
	"cfd-hedge-backtest/internal/config"
	"cfd-hedge-backtest/internal/logger"
	"cfd-hedge-backtest/internal/pipeline"
)

func main() {
	// .env is optional; real environment variables win
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}

	log := logger.New()
	defer log.Sync()

	// Get configuration from environment
	port := os.Getenv("API_PORT")
	if port == "" {
		port = "8080"
	}

	// BACKTEST_CONFIG optionally replaces the built-in defaults that every
	// request is merged onto (e.g. to point data.file at a local CSV).
	defaults := config.Default()
	if path := os.Getenv("BACKTEST_CONFIG"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			log.Fatalf("Failed to load %s: %v", path, err)
		}
		defaults = cfg
		log.Infof("Loaded default config from %s", path)
	}

	if os.Getenv("API_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	memoTTL := 10 * time.Minute
	if v := os.Getenv("MEMO_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			memoTTL = d
		}
	}
	runner := pipeline.NewRunner(pipeline.Options{Logger: log, MemoTTL: memoTTL, MemoEntries: 64})
	defer runner.Close()

	server := api.NewServer(api.Options{
		Logger:   log,
		Defaults: defaults,
		Runner:   runner,
	})
	defer server.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           server.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Infof("Starting API server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Graceful shutdown failed: %v", err)
	}
}
