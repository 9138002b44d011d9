package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/jonathanprocter/therapyflow-router/internal/auth"
	"github.com/jonathanprocter/therapyflow-router/internal/config"
	"github.com/jonathanprocter/therapyflow-router/internal/guard"
	"github.com/jonathanprocter/therapyflow-router/internal/ops"
	"github.com/jonathanprocter/therapyflow-router/internal/policy"
	"github.com/jonathanprocter/therapyflow-router/internal/providers"
	"github.com/jonathanprocter/therapyflow-router/internal/ratelimit"
	"github.com/jonathanprocter/therapyflow-router/internal/router"
	"github.com/jonathanprocter/therapyflow-router/internal/telemetry"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	loader := config.NewLoader(*configDir, logger)
	if err := loader.Load(); err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	cfg := loader.Config()

	// Connect to Redis. Rate limits and quotas fail open without it.
	var rdb *redis.Client
	if len(cfg.Redis.Addresses) > 0 && cfg.Redis.Addresses[0] != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addresses[0],
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable (rate limits fail open)", "error", err)
			rdb = nil
		} else {
			logger.Info("redis connected")
		}
	}

	// Policy gate. The gate is the only hot-reloadable component; provider
	// and routing config are fixed for the life of the process.
	gate, err := buildGate(loader)
	if err != nil {
		logger.Error("failed to build policy gate", "error", err)
		os.Exit(1)
	}

	if err := loader.Watch(); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}

	// Provider registry and router
	registry, err := router.FromConfig(loader.Providers().Providers)
	if err != nil {
		logger.Error("failed to build provider registry", "error", err)
		os.Exit(1)
	}

	rt := router.New(registry, gate, router.Config{
		RetryBaseDelay:   cfg.Router.RetryBaseDelay,
		FailureThreshold: cfg.Router.FailureThreshold,
		CooldownPeriod:   cfg.Router.Cooldown,
		HealthGap:        cfg.Router.HealthGap,
	})

	client, err := providers.NewClient(loader.Providers(), nil)
	if err != nil {
		logger.Error("failed to build provider client", "error", err)
		os.Exit(1)
	}

	guardChain := guard.NewChain(
		guard.NewCredentialScanner(func() config.CredentialGuardConfig {
			return loader.Config().Guard.Credentials
		}),
		guard.NewInjectionScanner(func() config.InjectionGuardConfig {
			return loader.Config().Guard.Injection
		}),
	)

	metrics := telemetry.NewMetrics()
	prometheus.MustRegister(telemetry.NewRouterCollector(rt.GetMetricsSnapshot))

	limiter := ratelimit.NewLimiter(rdb)
	quota := ratelimit.NewQuotaTracker(rdb)
	keyStore := auth.NewStaticKeyStore(cfg.Auth.Keys)

	handler := ops.NewHandler(rt, client, guardChain, quota, metrics)

	// Router setup
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)

	// Unauthenticated routes
	r.Get("/therapyflow/v1/health", healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	// Authenticated routes
	r.Group(func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(auth.Middleware(keyStore))
		} else {
			r.Use(anonymousAuth)
		}
		r.Use(ratelimit.Middleware(limiter, quota, func() config.LimitsConfig {
			return loader.Config().Limits
		}, metrics))
		r.Post("/v1/dispatch", handler.Dispatch)
		r.Get("/v1/router/metrics", handler.RouterMetrics)
		r.Get("/v1/router/health", handler.RouterHealth)
		r.Post("/v1/router/metrics/reset", handler.ResetRouterMetrics)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("router starting", "addr", addr, "version", version, "providers", len(registry.IDs()))
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("router stopped")
}

// buildGate selects the dispatch gate from config and registers its reload
// hook: static mode re-reads the kill switch, opa mode recompiles the bundle.
// Mode changes require a restart.
func buildGate(loader *config.Loader) (router.Gate, error) {
	cfg := loader.Config()
	switch cfg.Policy.Mode {
	case config.PolicyModeOPA:
		evaluator := policy.NewEvaluator(func() config.PolicyConfig {
			return loader.Config().Policy
		})
		if err := evaluator.Load(); err != nil {
			return nil, err
		}
		loader.OnReload(func() {
			if err := evaluator.Load(); err != nil {
				slog.Error("policy bundle reload failed", "error", err)
			}
		})
		return evaluator, nil
	case config.PolicyModeStatic, "":
		gate := policy.NewStatic(cfg.Policy.AllowDispatch)
		loader.OnReload(func() {
			gate.SetAllowed(loader.Config().Policy.AllowDispatch)
		})
		return gate, nil
	default:
		return nil, fmt.Errorf("unknown policy mode %q", cfg.Policy.Mode)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"version": version,
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = "req_" + uuid.New().String()
		}
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
	})
}

// anonymousAuth stands in for key auth in local development. Every request
// shares one identity, so per-key limits apply to the whole instance.
func anonymousAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.ContextWithAuth(r.Context(), &auth.AuthInfo{
			KeyID: "anonymous",
			Name:  "anonymous",
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
