package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvTest = "test"
	EnvPre  = "pre"
	EnvProd = "prod"
)

type Config struct {
	Env             string
	BaseURL         string
	Timeout         time.Duration
	Headers         map[string]string
	IsMock          bool
	DatabaseURL     string
	TokenScheme     string
	TokenSuffix     string
	TokenTTL        time.Duration
	JWTSecret       string
	MaxAttempts     int
	MaxPasswordLen  int
	NotifyEnabled   bool
	NotifyPath      string
	LogLevel        string
	LogDev          bool
	LogDir          string
	SentryDSN       string
	AppEnv          string
	Port            string
	MockAdminSecret string
	DataDir         string
}

// Load reads a .env file if present and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() (Config, error) {
	cfg := Config{
		Env:             envOrDefault("AUTO_ENV", EnvTest),
		Timeout:         envSecondsOrDefault("AUTO_TIMEOUT", 10),
		IsMock:          EnvBoolOrDefault("AUTO_IS_MOCK", true),
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		TokenScheme:     strings.ToLower(envOrDefault("TOKEN_SCHEME", "fixed")),
		TokenSuffix:     envOrDefault("TOKEN_SUFFIX", "8888"),
		TokenTTL:        time.Duration(envNonNegativeOrDefault("TOKEN_TTL_MINUTES", 0)) * time.Minute,
		JWTSecret:       strings.TrimSpace(os.Getenv("JWT_SECRET")),
		MaxAttempts:     envIntOrDefault("LOGIN_MAX_ATTEMPTS", 5),
		MaxPasswordLen:  envIntOrDefault("PASSWORD_MAX_LENGTH", 50),
		NotifyEnabled:   EnvBoolOrDefault("NOTIFY_ENABLED", true),
		NotifyPath:      envOrDefault("NOTIFY_PATH", "/post"),
		LogLevel:        strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
		LogDev:          EnvBoolOrDefault("LOG_DEV", false),
		LogDir:          envOrDefaultAllowEmpty("LOG_DIR", "log"),
		SentryDSN:       strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		AppEnv:          envOrDefault("APP_ENV", "development"),
		Port:            envOrDefault("PORT", "8080"),
		MockAdminSecret: strings.TrimSpace(os.Getenv("MOCK_ADMIN_SECRET")),
		DataDir:         envOrDefault("DATA_DIR", "data"),
	}

	switch cfg.Env {
	case EnvTest, EnvPre, EnvProd:
	default:
		cfg.Env = EnvTest
	}
	cfg.BaseURL = strings.TrimRight(baseURLFor(cfg.Env), "/")
	cfg.Headers = defaultHeaders(cfg.Env)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if !c.IsMock && c.DatabaseURL == "" {
		return fmt.Errorf("missing required env: DATABASE_URL (AUTO_IS_MOCK is off)")
	}
	switch c.TokenScheme {
	case "fixed", "ksuid":
	case "jwt":
		if c.JWTSecret == "" {
			return fmt.Errorf("missing required env: JWT_SECRET (TOKEN_SCHEME=jwt)")
		}
	default:
		return fmt.Errorf("unsupported TOKEN_SCHEME: %s", c.TokenScheme)
	}
	return nil
}

func baseURLFor(env string) string {
	switch env {
	case EnvPre:
		return envOrDefault("PRE_BASE_URL", "https://pre-httpbin.org")
	case EnvProd:
		return envOrDefault("PROD_BASE_URL", "https://prod-httpbin.org")
	default:
		return envOrDefault("TEST_BASE_URL", "https://httpbin.org")
	}
}

func defaultHeaders(env string) map[string]string {
	headers := map[string]string{"Content-Type": "application/json"}
	if env == EnvPre || env == EnvProd {
		headers["Authorization"] = os.Getenv("AUTO_AUTH_TOKEN")
	}
	return headers
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

// envOrDefaultAllowEmpty distinguishes an unset variable from one set to "".
func envOrDefaultAllowEmpty(name, fallback string) string {
	value, ok := os.LookupEnv(name)
	if !ok {
		return fallback
	}
	return strings.TrimSpace(value)
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envNonNegativeOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Second
}

func EnvBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
