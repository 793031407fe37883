// Package main запускает HTTP-сервер форума.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/forum-coins/internal/config"
	"github.com/mmeshcher/forum-coins/internal/handler"
	"github.com/mmeshcher/forum-coins/internal/identity"
	"github.com/mmeshcher/forum-coins/internal/middleware"
	"github.com/mmeshcher/forum-coins/internal/repository"
	"github.com/mmeshcher/forum-coins/internal/service"
	"github.com/mmeshcher/forum-coins/internal/session"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := newRepository(cfg, logger)
	if err != nil {
		sugar.Fatalw("storage initialization error", "error", err.Error())
	}

	verifier := newVerifier(cfg, logger)

	cache, closeCache, err := newSessionCache(ctx, cfg, logger)
	if err != nil {
		sugar.Fatalw("session cache initialization error", "error", err.Error())
	}
	defer closeCache()

	svc := service.NewService(repo, verifier, logger, cfg.StartingBonus)
	defer svc.Close()

	if cfg.SeedData {
		if err := svc.Seed(ctx); err != nil {
			sugar.Fatalw("seed error", "error", err.Error())
		}
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.SessionSecret)
	if cfg.SessionSecret == "" {
		logger.Warn("SESSION_SECRET is empty, sessions will not survive a restart")
	}
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, logger)

	h := handler.NewHandler(svc, logger, authMiddleware, limiter, cache)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting forum server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

func newRepository(cfg *config.Config, logger *zap.Logger) (service.Repository, error) {
	if cfg.DatabaseURI == "" {
		logger.Warn("DATABASE_URI is empty, using in-memory storage")
		return repository.NewMemoryRepository(), nil
	}
	return repository.NewPostgresRepository(cfg.DatabaseURI)
}

func newVerifier(cfg *config.Config, logger *zap.Logger) identity.Verifier {
	if cfg.IdentityServiceAddress == "" {
		logger.Warn("identity service address is empty, only the identity format is checked")
		return identity.FormatVerifier{}
	}
	return identity.NewClient(cfg.IdentityServiceAddress)
}

func newSessionCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (session.Cache, func(), error) {
	if cfg.RedisAddress == "" {
		return session.NewMemoryCache(session.DefaultTTL), func() {}, nil
	}

	client, err := session.Connect(ctx, cfg.RedisAddress)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("redis session cache connected", zap.String("addr", cfg.RedisAddress))

	return session.NewRedisCache(client, session.DefaultTTL), func() { _ = client.Close() }, nil
}
