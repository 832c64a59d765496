package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"api-harness/internal/app"
	"api-harness/internal/config"
	"api-harness/internal/notify"
	"api-harness/internal/observability"
	"api-harness/internal/scenario"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}

	dataDir := flag.String("data", cfg.DataDir, "directory holding test_login.yaml and test_product.yaml")
	suite := flag.String("suite", "all", "suite to run: login, product or all")
	flag.Parse()

	switch *suite {
	case "login", "product", "all":
	default:
		fmt.Fprintf(os.Stderr, "unknown suite %q\n", *suite)
		return 2
	}

	logger, err := observability.NewLogger(observability.LogConfig{Level: cfg.LogLevel, Dev: cfg.LogDev, Dir: cfg.LogDir})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	if err := observability.InitSentry(cfg.SentryDSN, cfg.AppEnv); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}
	defer observability.FlushSentry()

	ctx := context.Background()
	backend, err := app.NewBackend(ctx, cfg, logger, app.BackendOptions{})
	if err != nil {
		logger.Error("harness_backend_failed", map[string]any{"error": err.Error()})
		return 1
	}
	defer backend.Close()

	login, products, closeTarget, err := targets(cfg, backend, logger)
	if err != nil {
		logger.Error("harness_target_failed", map[string]any{"error": err.Error()})
		return 1
	}
	defer closeTarget()

	runner := scenario.NewRunner(login, products, scenario.Backend{
		Mock:    backend.Mock,
		Users:   backend.Users,
		Tokens:  backend.Tokens,
		Catalog: backend.Catalog,
	}, logger)
	loader := scenario.NewLoader(*dataDir, logger)

	logger.Info("harness_start", map[string]any{"suite": *suite, "data": *dataDir, "mock": cfg.IsMock, "env": cfg.Env})

	var report scenario.Report
	if *suite == "login" || *suite == "all" {
		cases, err := loader.LoginCases()
		if err != nil {
			logger.Error("harness_load_failed", map[string]any{"suite": "login", "error": err.Error()})
			return 1
		}
		report.Add(runner.RunLogin(ctx, cases)...)
	}
	if *suite == "product" || *suite == "all" {
		cases, err := loader.ProductCases()
		if err != nil {
			logger.Error("harness_load_failed", map[string]any{"suite": "product", "error": err.Error()})
			return 1
		}
		report.Add(runner.RunProducts(ctx, cases)...)
	}

	if err := report.Write(os.Stdout); err != nil {
		logger.Error("harness_report_failed", map[string]any{"error": err.Error()})
		return 1
	}

	failed := report.Failed()
	logger.Info("harness_done", map[string]any{"cases": len(report.Results), "failed": failed})
	if failed > 0 {
		return 1
	}
	return 0
}

// targets runs in-process against the memory stores in mock mode and over
// HTTP against BaseURL otherwise.
func targets(cfg config.Config, backend *app.Backend, logger *observability.Logger) (scenario.LoginTarget, scenario.ProductTarget, func(), error) {
	if cfg.IsMock {
		services, err := app.NewServices(cfg, backend, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		target := scenario.LocalTarget{Auth: services.Auth, Products: services.Products}
		return target, target, services.Auth.Close, nil
	}

	target := scenario.HTTPTarget{Sender: notify.NewClient(cfg.BaseURL, cfg.Timeout, cfg.Headers)}
	return target, target, func() {}, nil
}
