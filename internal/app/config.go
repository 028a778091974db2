package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"fulfillment-engine/internal/db"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultFallbackLocation is used when FALLBACK_LOCATION_CODE is not set at all.
const DefaultFallbackLocation = "GENERAL"

// Config is the process configuration, read from the environment (and .env if present).
type Config struct {
	DatabaseURL  string
	PGEmbedded   bool
	EmbeddedPort uint32
	DBMaxConns   int32

	// AutoMigrate applies MigrationsDir on startup. Defaults to true in embedded mode.
	AutoMigrate   bool
	MigrationsDir string

	ServerPort     string
	AllowedOrigins string
	JWTSecret      string

	// FallbackLocationCode names the location departures deduct from when an item has no
	// hard reservation anywhere. Empty disables the fallback.
	FallbackLocationCode string

	OpenAIAPIKey string
	OpenAIModel  string

	CompanyID int
	LogLevel  string
}

// LoadConfig loads .env (if any) and parses the environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		PGEmbedded:           strings.EqualFold(os.Getenv("PG_EMBEDDED"), "true"),
		EmbeddedPort:         5433,
		ServerPort:           envOr("SERVER_PORT", "8080"),
		AllowedOrigins:       os.Getenv("ALLOWED_ORIGINS"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		FallbackLocationCode: DefaultFallbackLocation,
		OpenAIAPIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:          os.Getenv("OPENAI_MODEL"),
		MigrationsDir:        envOr("MIGRATIONS_DIR", "migrations"),
		CompanyID:            1,
		LogLevel:             envOr("LOG_LEVEL", "info"),
	}
	if v, ok := os.LookupEnv("FALLBACK_LOCATION_CODE"); ok {
		cfg.FallbackLocationCode = strings.TrimSpace(v)
	}

	if v := os.Getenv("EMBEDDED_PG_PORT"); v != "" {
		port, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid EMBEDDED_PG_PORT %q: %w", v, err)
		}
		cfg.EmbeddedPort = uint32(port)
	}
	if v := os.Getenv("DB_MAX_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_MAX_CONNS %q: %w", v, err)
		}
		cfg.DBMaxConns = int32(n)
	}
	if v := os.Getenv("COMPANY_ID"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid COMPANY_ID %q: %w", v, err)
		}
		cfg.CompanyID = id
	}
	cfg.AutoMigrate = cfg.PGEmbedded
	if v := os.Getenv("AUTO_MIGRATE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid AUTO_MIGRATE %q: %w", v, err)
		}
		cfg.AutoMigrate = b
	}
	if !cfg.PGEmbedded && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set (or set PG_EMBEDDED=true)")
	}
	return cfg, nil
}

// PoolConfig returns the database settings in the form db.Open expects.
func (c *Config) PoolConfig() db.PoolConfig {
	return db.PoolConfig{
		URL:          c.DatabaseURL,
		MaxConns:     c.DBMaxConns,
		Embedded:     c.PGEmbedded,
		EmbeddedPort: c.EmbeddedPort,
	}
}

// NewLogger builds the process logger: production JSON output, or the development
// console encoder when level is debug.
func NewLogger(level string) (*zap.Logger, error) {
	if strings.EqualFold(level, "debug") {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
