package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"food-admin/internal/bootstrap"
	"food-admin/internal/config"
	apihttp "food-admin/internal/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	store, err := bootstrap.OpenStore(ctx, &cfg.StoreConfig, logger)
	if err != nil {
		logger.Fatal("store open", zap.Error(err))
	}
	defer store.Close()

	redisClient := bootstrap.NewRedisClient(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	emailSender := bootstrap.NewEmailSender(cfg, logger)
	svcs, err := bootstrap.NewServices(cfg, logger, store.Admins, emailSender, redisClient)
	if err != nil {
		logger.Fatal("services init", zap.Error(err))
	}

	adminHandler := apihttp.NewAdminHandler(logger, svcs.Auth, svcs.JWT, apihttp.CookieConfig{
		Secure:    cfg.CookieSecure,
		CrossSite: cfg.CookieCrossSite,
		TTL:       cfg.SessionTTL(),
	})
	router := apihttp.NewRouter(logger, adminHandler, svcs.JWT, store.Admins.Ping)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           apihttp.WithRateLimit(router, cfg.RateLimitPerMinute),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("port", cfg.HTTPPort), zap.String("store", cfg.StoreDriver))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}
