package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/app/migrate"
	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/domain"
	httpx "github.com/Tallen231210/sequ3nce-ai-sub003/internal/http"
	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/repository/postgres"
	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/service/auth"
	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/service/billing"
	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/service/gate"
	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/service/tenant"
	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/ws"
	"github.com/Tallen231210/sequ3nce-ai-sub003/pkg/config"
	"github.com/Tallen231210/sequ3nce-ai-sub003/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg := config.LoadAPIConfig()
	log := logger.New("api", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)
	hub := ws.NewHub()

	authSvc := auth.New(repo, log, cfg)
	tenantSvc := tenant.New(repo, repo, log)

	if strings.TrimSpace(cfg.StripeAPIKey) == "" {
		log.Warn("stripe api key not configured; billing reads depend on webhook deliveries")
	}
	billingSvc := billing.New(billing.NewStripeProvider(cfg.StripeAPIKey), repo, repo, log, cfg.BillingCacheTTL, cfg.BillingFetchTimeout)

	if strings.TrimSpace(cfg.StripeWebhookSecret) == "" {
		log.Warn("stripe webhook secret not configured; webhook deliveries will be rejected")
	}
	hook := billing.NewWebhook(cfg.StripeWebhookSecret, billingSvc, log)

	gateSvc := gate.NewService(gate.NewEvaluator(cfg.SubscribeURL, cfg.OnboardingURL), repo, billingSvc, log)
	billingSvc.OnUpdate(gateSvc.ApplySnapshot)
	billingSvc.OnUpdate(func(snap domain.BillingSnapshot) {
		hub.Broadcast(snap.TeamID, httpx.BillingEventPayload(snap))
	})

	refresher := billing.NewRefresher(billingSvc, repo, log, cfg.BillingRefreshEvery)
	go refresher.Run(ctx)

	var verifier auth.IdentityVerifier
	if strings.TrimSpace(cfg.OIDCIssuerURL) != "" {
		oidcVerifier, err := auth.NewOIDCVerifier(ctx, cfg)
		if err != nil {
			log.Error("oidc discovery failed", "error", err, "issuer", cfg.OIDCIssuerURL)
			os.Exit(1)
		}
		verifier = oidcVerifier
	} else {
		log.Warn("oidc issuer not configured; accepting unverified login identities")
	}

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, authSvc, tenantSvc, billingSvc, hook, gateSvc, verifier, hub, limiter, pool.Ping)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "env", cfg.Environment)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
