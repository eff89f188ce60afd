package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP    HTTPConfig
	DB      DBConfig
	Auth    AuthConfig
	Escrow  EscrowConfig
	Logging LoggingConfig
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host              string
	Port              int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	AllowedOriginsCSV string
}

// DBConfig locates the SQLite database file.
type DBConfig struct {
	Path string
}

// AuthConfig controls token signing and the seeded administrator account.
type AuthConfig struct {
	Secret        string
	TokenTTL      time.Duration
	AdminPhone    string
	AdminPassword string
}

// EscrowConfig holds escrow business settings.
type EscrowConfig struct {
	CommissionWallet string
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level  string
	Format string // text|json
}

const (
	defaultHost             = "0.0.0.0"
	defaultPort             = 8080
	defaultReadTimeout      = 10 * time.Second
	defaultWriteTimeout     = 15 * time.Second
	defaultIdleTimeout      = 60 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultDBPath           = "kudisafe.db"
	defaultTokenTTL         = 24 * time.Hour
	defaultCommissionWallet = "KUDISAFE-OPERATIONS"
	defaultLoggingLevel     = "info"
	defaultLoggingFormat    = "text"
)

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		HTTP: HTTPConfig{
			Host:              valueOrDefault("SERVER_HOST", defaultHost),
			ReadTimeout:       defaultReadTimeout,
			WriteTimeout:      defaultWriteTimeout,
			IdleTimeout:       defaultIdleTimeout,
			ShutdownTimeout:   defaultShutdownTimeout,
			AllowedOriginsCSV: os.Getenv("CORS_ALLOWED_ORIGINS"),
		},
		DB: DBConfig{
			Path: valueOrDefault("DB_PATH", defaultDBPath),
		},
		Auth: AuthConfig{
			Secret:        os.Getenv("AUTH_SECRET"),
			TokenTTL:      defaultTokenTTL,
			AdminPhone:    os.Getenv("ADMIN_PHONE"),
			AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		},
		Escrow: EscrowConfig{
			CommissionWallet: valueOrDefault("COMMISSION_WALLET", defaultCommissionWallet),
		},
		Logging: LoggingConfig{
			Level:  valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
			Format: valueOrDefault("LOG_FORMAT", defaultLoggingFormat),
		},
	}

	port, err := parsePort("SERVER_PORT", defaultPort)
	if err != nil {
		return Config{}, err
	}
	cfg.HTTP.Port = port

	if cfg.Auth.Secret == "" {
		return Config{}, fmt.Errorf("AUTH_SECRET is required")
	}

	if v := os.Getenv("AUTH_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Auth.TokenTTL = d
		} else {
			return Config{}, fmt.Errorf("invalid AUTH_TOKEN_TTL: %w", err)
		}
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.ShutdownTimeout = d
		} else {
			return Config{}, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT: %w", err)
		}
	}

	return cfg, nil
}

// AllowedOrigins splits the CSV origin list, dropping empty entries.
func (c HTTPConfig) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOriginsCSV, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parsePort(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		if port <= 0 || port > 65535 {
			return 0, fmt.Errorf("port %d is out of range", port)
		}
		return port, nil
	}
	return fallback, nil
}
