package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const minGatewaySecretLen = 32

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName   string `env:"APP_NAME" envDefault:"embygate"`
	AppEnv    string `env:"APP_ENV" envDefault:"development"`
	Port      string `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	DatabaseURL string `env:"DATABASE_URL,required"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns  int32  `env:"DB_MIN_CONNS" envDefault:"2"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"false"`
	RedisURL    string `env:"REDIS_URL,required"`

	ShutdownPeriod time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`

	// AdminIDs is the static allow-list of external caller ids treated as
	// administrators ("bot admins").
	AdminIDs []int64 `env:"ADMIN_LIST" envSeparator:","`

	GatewaySecret     string        `env:"GATEWAY_JWT_SECRET,required"`
	CommandsPerMinute int           `env:"COMMANDS_PER_MINUTE" envDefault:"30"`
	CatalogCacheTTL   time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"5m"`

	Emby   EmbyConfig   `envPrefix:"EMBY_"`
	Router RouterConfig `envPrefix:"ROUTER_"`
}

// EmbyConfig configures the Account Provider client.
type EmbyConfig struct {
	URL       string        `env:"URL,required"`
	APIKey    string        `env:"API_KEY,required"`
	Timeout   time.Duration `env:"TIMEOUT" envDefault:"10s"`
	RateLimit float64       `env:"RATE_LIMIT" envDefault:"10"`
	Burst     int           `env:"BURST" envDefault:"5"`
}

// RouterConfig configures the optional playback line router. An empty URL
// disables line selection.
type RouterConfig struct {
	URL     string        `env:"URL"`
	APIKey  string        `env:"API_KEY"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg.normalize()
}

// LoadFrom is Load over an explicit environment map.
func LoadFrom(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg.normalize()
}

func (c Config) normalize() (Config, error) {
	c.LogLevel = strings.ToLower(c.LogLevel)

	if len(c.GatewaySecret) < minGatewaySecretLen {
		return Config{}, fmt.Errorf("GATEWAY_JWT_SECRET must be at least %d bytes", minGatewaySecretLen)
	}
	if c.CommandsPerMinute < 0 {
		return Config{}, fmt.Errorf("COMMANDS_PER_MINUTE must not be negative")
	}
	if c.ShutdownPeriod <= 0 {
		return Config{}, fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Emby.RateLimit <= 0 {
		return Config{}, fmt.Errorf("EMBY_RATE_LIMIT must be positive")
	}
	return c, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the service runs in a local/development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}
