package api

import (
	"net/http"
	"sync"

	"api-harness/internal/app"
	"api-harness/internal/config"
	"api-harness/internal/envelope"
)

var (
	initOnce   sync.Once
	apiRuntime *app.Runtime
	initErr    error
)

// Handler serves the mock API from a serverless function. The runtime is
// built once per instance; the memory backend lives as long as the instance.
func Handler(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(func() {
		apiRuntime, initErr = app.Build(app.Options{
			LoadDotEnv:    false,
			RunMigrations: config.EnvBoolOrDefault("RUN_MIGRATIONS_ON_STARTUP", false),
			SeedDatabase:  config.EnvBoolOrDefault("SEED_ON_STARTUP", false),
		})
	})

	if initErr != nil {
		envelope.Write(w, envelope.Fail(http.StatusInternalServerError, "application bootstrap failed"))
		return
	}

	apiRuntime.Handler.ServeHTTP(w, r)
}
