// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings such as
// server timeouts, logging, the Telegram bot credentials, the storage backend,
// outbound send pacing, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Tensaey-sol/tag-bot/internal/sysutil"
)

// Storage drivers understood by the process entry point.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "tag-bot")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// BotConfig holds the Telegram bot credentials and webhook settings.
type BotConfig struct {
	Token       string // TELEGRAM_BOT_TOKEN (YOUR_BOT_TOKEN accepted for older deployments)
	APIEndpoint string // TELEGRAM_API_ENDPOINT, printf pattern with token and method
	Debug       bool   // BOT_DEBUG

	WebhookPath   string // route the platform posts updates to
	WebhookURL    string // public URL registered with setWebhook on start (optional)
	WebhookSecret string // expected X-Telegram-Bot-Api-Secret-Token (optional)

	SendRPS   float64 // outbound messages per second, per chat
	SendBurst int     // outbound burst, per chat

	// UpdateTimeout bounds the processing of one webhook update, sends
	// included. It stays below WriteTimeout so the acknowledgement is written.
	UpdateTimeout time.Duration // UPDATE_TIMEOUT, default 3/4 of WRITE_TIMEOUT
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Driver        string        // sqlite|postgres|mongo
	DBPath        string        // SQLite path
	DatabaseURL   string        // Postgres DSN
	MongoURI      string        // mongodb:// connection string
	MongoDatabase string        // database name for the mongo backend
	MaxRetries    int           // attempts for transient storage failures (>= 1)
	Timeout       time.Duration // connect timeout
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // serve Swagger UI under /swagger

	Bot     BotConfig
	Storage StorageConfig

	// Web protection
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),

		Bot: BotConfig{
			Token:         strings.TrimSpace(sysutil.FirstNonEmpty(os.Getenv("TELEGRAM_BOT_TOKEN"), os.Getenv("YOUR_BOT_TOKEN"))),
			APIEndpoint:   getenv("TELEGRAM_API_ENDPOINT", "https://api.telegram.org/bot%s/%s"),
			Debug:         getbool("BOT_DEBUG", false),
			WebhookPath:   normalizePath(getenv("WEBHOOK_PATH", "/webhook")),
			WebhookURL:    strings.TrimSpace(getenv("WEBHOOK_URL", "")),
			WebhookSecret: getenv("WEBHOOK_SECRET", ""),
			SendRPS:       getfloat("SEND_RPS", 1.0),
			SendBurst:     getint("SEND_BURST", 5),
			UpdateTimeout: getdur("UPDATE_TIMEOUT", 0),
		},

		Storage: StorageConfig{
			Driver:        strings.ToLower(getenv("STORAGE_DRIVER", DriverSQLite)),
			DBPath:        getenv("DB_PATH", "tagbot.db"),
			DatabaseURL:   getenv("DATABASE_URL", ""),
			MongoURI:      getenv("MONGO_URI", ""),
			MongoDatabase: getenv("MONGO_DATABASE", "tagbot"),
			MaxRetries:    getint("STORAGE_MAX_RETRIES", 3),
			Timeout:       getdur("STORAGE_TIMEOUT", 10*time.Second),
		},

		// Web protection
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "tag-bot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.Storage.Driver == "sqlite3" {
		cfg.Storage.Driver = DriverSQLite
	}
	if cfg.Storage.Driver == "postgresql" || cfg.Storage.Driver == "pg" {
		cfg.Storage.Driver = DriverPostgres
	}
	if cfg.Storage.Driver == "mongodb" {
		cfg.Storage.Driver = DriverMongo
	}
	if cfg.Bot.UpdateTimeout == 0 {
		cfg.Bot.UpdateTimeout = cfg.WriteTimeout * 3 / 4
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.Bot.Token == "" {
		return cfg, errors.New("TELEGRAM_BOT_TOKEN must not be empty")
	}
	if !strings.Contains(cfg.Bot.APIEndpoint, "%s") {
		return cfg, errors.New("TELEGRAM_API_ENDPOINT must contain %s placeholders for token and method")
	}
	if cfg.Bot.WebhookURL != "" && !strings.HasPrefix(cfg.Bot.WebhookURL, "https://") {
		return cfg, errors.New("WEBHOOK_URL must be an https:// URL")
	}
	if cfg.Bot.SendRPS <= 0 {
		return cfg, errors.New("SEND_RPS must be > 0")
	}
	if cfg.Bot.SendBurst < 1 {
		return cfg, errors.New("SEND_BURST must be >= 1")
	}
	if cfg.Bot.UpdateTimeout <= 0 || cfg.Bot.UpdateTimeout >= cfg.WriteTimeout {
		return cfg, errors.New("UPDATE_TIMEOUT must be positive and below WRITE_TIMEOUT")
	}
	switch cfg.Storage.Driver {
	case DriverSQLite:
		if strings.TrimSpace(cfg.Storage.DBPath) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case DriverPostgres:
		if strings.TrimSpace(cfg.Storage.DatabaseURL) == "" {
			return cfg, errors.New("DATABASE_URL must be set for the postgres driver")
		}
	case DriverMongo:
		if strings.TrimSpace(cfg.Storage.MongoURI) == "" {
			return cfg, errors.New("MONGO_URI must be set for the mongo driver")
		}
		if strings.TrimSpace(cfg.Storage.MongoDatabase) == "" {
			return cfg, errors.New("MONGO_DATABASE must not be empty")
		}
	default:
		return cfg, errors.New("STORAGE_DRIVER must be one of: sqlite, postgres, mongo")
	}
	if cfg.Storage.MaxRetries < 1 {
		return cfg, errors.New("STORAGE_MAX_RETRIES must be >= 1")
	}
	if cfg.Storage.Timeout <= 0 {
		return cfg, errors.New("STORAGE_TIMEOUT must be a positive duration")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// normalizePath ensures leading '/' and strips trailing '/' (except root).
func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
