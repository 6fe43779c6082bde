// Package config reads the vault engine configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/atmx/vault-engine/internal/ledger"
	"github.com/atmx/vault-engine/internal/money"
)

// Config is the server configuration. DATABASE_URL and REDIS_URL are
// optional; without them the engine runs on in-memory stores.
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`

	MaxManagementFeeBps      uint32 `env:"MAX_MANAGEMENT_FEE_BPS" envDefault:"1000"`
	MaxPerformanceFeeBps     uint32 `env:"MAX_PERFORMANCE_FEE_BPS" envDefault:"3000"`
	RejectEmptyFeeCollection bool   `env:"REJECT_EMPTY_FEE_COLLECTION" envDefault:"true"`

	SnapshotSchedule  string `env:"SNAPSHOT_SCHEDULE" envDefault:"@every 1h"`
	SnapshotRetention int    `env:"SNAPSHOT_RETENTION" envDefault:"1000"`

	IdempotencyTTL  time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// Load parses the process environment.
func Load() (Config, error) {
	return load(env.Options{})
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return load(env.Options{Environment: vars})
}

func load(opts env.Options) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.MaxManagementFeeBps > uint32(money.MaxRate) {
		return fmt.Errorf("config: MAX_MANAGEMENT_FEE_BPS %d exceeds %d", c.MaxManagementFeeBps, uint32(money.MaxRate))
	}
	if c.MaxPerformanceFeeBps > uint32(money.MaxRate) {
		return fmt.Errorf("config: MAX_PERFORMANCE_FEE_BPS %d exceeds %d", c.MaxPerformanceFeeBps, uint32(money.MaxRate))
	}
	if c.SnapshotRetention < 1 {
		return fmt.Errorf("config: SNAPSHOT_RETENTION must be positive, got %d", c.SnapshotRetention)
	}
	if c.IdempotencyTTL <= 0 {
		return fmt.Errorf("config: IDEMPOTENCY_TTL must be positive, got %s", c.IdempotencyTTL)
	}
	return nil
}

// Ledger returns the ledger policy described by c.
func (c Config) Ledger() ledger.Config {
	return ledger.Config{
		MaxManagementFee:      money.Rate(c.MaxManagementFeeBps),
		MaxPerformanceFee:     money.Rate(c.MaxPerformanceFeeBps),
		RejectEmptyCollection: c.RejectEmptyFeeCollection,
		HistoryCapacity:       c.SnapshotRetention,
	}
}
