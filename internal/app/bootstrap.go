package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"api-harness/internal/auth"
	"api-harness/internal/config"
	"api-harness/internal/maintenance"
	"api-harness/internal/notify"
	"api-harness/internal/observability"
	"api-harness/internal/product"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
	SeedDatabase  bool
}

// Services are the in-process operations shared by the HTTP server and the
// harness.
type Services struct {
	Auth     *auth.Service
	Products *product.Service
	Verifier auth.TokenVerifier
}

func NewServices(cfg config.Config, backend *Backend, logger *observability.Logger) (Services, error) {
	minter, err := auth.NewMinter(cfg.TokenScheme, cfg.TokenSuffix, cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return Services{}, fmt.Errorf("token minter: %w", err)
	}

	authService := auth.NewService(backend.Users, backend.Tokens, minter, logger).
		WithPolicy(cfg.MaxPasswordLen, cfg.TokenTTL)
	productService := product.NewService(backend.Catalog, logger)

	if cfg.NotifyEnabled {
		client := notify.NewClient(cfg.BaseURL, cfg.Timeout, cfg.Headers)
		authService.WithNotifier(client, cfg.NotifyPath, client.Timeout())
		productService.WithProber(client, client.Timeout())
	}

	var verifier auth.TokenVerifier
	if v, ok := minter.(auth.TokenVerifier); ok {
		verifier = v
	}

	return Services{Auth: authService, Products: productService, Verifier: verifier}, nil
}

type Runtime struct {
	Config  config.Config
	Logger  *observability.Logger
	Handler http.Handler
	Close   func() error
}

func Build(options Options) (*Runtime, error) {
	var cfg config.Config
	var err error
	if options.LoadDotEnv {
		cfg, err = config.Load()
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(observability.LogConfig{Level: cfg.LogLevel, Dev: cfg.LogDev, Dir: cfg.LogDir})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	if err := observability.InitSentry(cfg.SentryDSN, cfg.AppEnv); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	backend, err := NewBackend(context.Background(), cfg, logger, BackendOptions{
		RunMigrations: options.RunMigrations,
		Seed:          options.SeedDatabase,
	})
	if err != nil {
		return nil, err
	}

	services, err := NewServices(cfg, backend, logger)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	handler := NewHandler(cfg, backend, services, logger)

	return &Runtime{
		Config:  cfg,
		Logger:  logger,
		Handler: handler,
		Close: func() error {
			services.Auth.Close()
			observability.FlushSentry()
			_ = logger.Sync()
			return backend.Close()
		},
	}, nil
}

func NewHandler(cfg config.Config, backend *Backend, services Services, logger *observability.Logger) http.Handler {
	authHandler := auth.NewHandler(services.Auth)
	productHandler := product.NewHandler(services.Products)
	adminHandler := maintenance.NewMockAdminHandler(
		backend.Users,
		logger,
		cfg.MockAdminSecret,
		backend.Users,
		backend.Tokens,
		backend.Catalog,
	)

	protect := func(h http.HandlerFunc) http.Handler {
		return auth.Middleware(services.Verifier, h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", authHandler.Login)
	mux.HandleFunc("POST /auth/logout", authHandler.Logout)
	mux.Handle("GET /products", protect(productHandler.ListProducts))
	mux.Handle("GET /products/{id}", protect(productHandler.GetProduct))
	mux.Handle("POST /products", protect(productHandler.CreateProduct))
	mux.HandleFunc("POST /internal/mock/reset", adminHandler.Reset)
	mux.HandleFunc("POST /internal/mock/users", adminHandler.AddUser)
	mux.HandleFunc("DELETE /internal/mock/users/{username}", adminHandler.RemoveUser)
	mux.HandleFunc("GET /health", healthHandler(backend))

	return observability.RecoverMiddleware(logger, observability.RequestLoggingMiddleware(logger, mux))
}

func healthHandler(backend *Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		backendName := "postgres"
		if backend.Mock {
			backendName = "memory"
		}

		status := http.StatusOK
		body := map[string]any{"status": "ok", "backend": backendName, "time": time.Now().UTC().Format(time.RFC3339)}
		if err := backend.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
