// Command devapi serves an in-memory imitation of the rider API for local development.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/config"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/devapi"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads RIDER_DEV_* settings, applies flag overrides and serves until SIGINT/SIGTERM.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	addr := flag.String("addr", cfg.Dev.Addr, "listen address")
	signKey := flag.String("signing-key", cfg.Dev.SigningKey, "HS256 signing key")
	otp := flag.String("otp", cfg.Dev.OTP, "OTP accepted for every mobile")
	ttl := flag.Duration("token-ttl", cfg.Dev.TokenTTL, "access token TTL")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", *addr),
	)

	if *signKey == "" {
		logger.Fatal("missing signing key (--signing-key)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := devapi.New(devapi.Options{
		SigningKey: *signKey,
		OTP:        *otp,
		TokenTTL:   *ttl,
		Logger:     logger,
	})
	srv := &http.Server{
		Addr:              *addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", *addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("forced shutdown", zap.Error(err))
			_ = srv.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
