package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"gooeytea/backend/internal/cache"
	"gooeytea/backend/internal/config"
	"gooeytea/backend/internal/feed"
	"gooeytea/backend/internal/httpapi"
	"gooeytea/backend/internal/service"
	"gooeytea/backend/internal/store"
	"gooeytea/backend/internal/store/memory"
	pgstore "gooeytea/backend/internal/store/postgres"
	"gooeytea/backend/internal/variant"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 3)

	// No exporter is configured; the provider exists so request spans carry
	// trace ids that show up on access log lines.
	tracerProvider := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tracerProvider)
	closers = append(closers, func() error {
		return tracerProvider.Shutdown(context.Background())
	})

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		if cfg.EnsureSchema {
			if err := pg.EnsureSchema(ctx); err != nil {
				logger.Fatalf("ensure schema: %v", err)
			}
		}
		repo = pg
		closers = append(closers, pg.Close)
		logger.Info("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		logger.Info("repository: in-memory")
	}

	var (
		variantCache cache.VariantCache = cache.NoopVariantCache{}
		locker       cache.Locker       = cache.NoopLocker{}
	)
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisVariantCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			logger.WithError(err).Warn("redis unavailable, using noop cache")
			_ = redisCache.Close()
		} else {
			variantCache = redisCache
			locker = redisCache.Locker()
			closers = append(closers, redisCache.Close)
			logger.Info("cache: redis")
		}
	} else {
		logger.Info("cache: noop")
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := feed.NewHub(logger)
	go hub.Run(hubCtx)

	resolver := variant.NewResolver(repo, variantCache, locker, cfg.VariantCacheTTL(), logger)
	svc := service.New(repo, resolver, service.Options{
		Location:           cfg.StoreLocation(),
		OpenHour:           cfg.StoreOpenHour,
		TaxRate:            &cfg.SalesTaxRate,
		AllowNegativeStock: cfg.AllowNegativeStock,
		Logger:             logger,
		Publisher:          hub,
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL())
	api := httpapi.New(svc, auth, hub, cfg.AllowedOrigin, logger)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"addr":                 cfg.Address(),
			"store_zone":           cfg.StoreLocation().String(),
			"open_hour":            cfg.StoreOpenHour,
			"allow_negative_stock": cfg.AllowNegativeStock,
		}).Info("order backend listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown error")
	}
	stopHub()

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.WithError(err).Error("close error")
		}
	}

	logger.Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.ManagerPINHash != "" && !strings.HasPrefix(cfg.ManagerPINHash, "$2") {
		return fmt.Errorf("MANAGER_PIN_HASH must be a bcrypt hash (see manager-token -hash-pin)")
	}
	if cfg.SalesTaxRate.IsNegative() {
		return fmt.Errorf("SALES_TAX_RATE must not be negative")
	}
	return nil
}
