// Package config loads and validates the service configuration.
//
// Values come from a YAML file, struct-tag defaults fill the gaps, and a
// handful of environment variables override the deploy-specific fields.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/blocks"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/feature"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/network"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/reward"
)

var validate = validator.New()

// Config is the root configuration for all binaries.
type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"oneof=development staging production"`

	Logging struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
	} `yaml:"logging"`

	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`

	Postgres struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgres"`

	ClickHouse struct {
		Enabled bool   `yaml:"enabled"`
		DSN     string `yaml:"dsn"`
	} `yaml:"clickhouse"`

	Training Training `yaml:"training"`

	Features feature.Config        `yaml:"features"`
	Blocks   blocks.Config         `yaml:"blocks"`
	Reward   reward.Config         `yaml:"reward"`
	Adaptive reward.AdaptiveConfig `yaml:"adaptive_reward"`
	Network  network.Config        `yaml:"network"`
}

// Training holds the hyper-parameters of the learning loop.
type Training struct {
	Episodes           int     `yaml:"episodes" default:"100" validate:"gt=0"`
	BatchSize          int     `yaml:"batch_size" default:"32" validate:"gt=0"`
	BufferCapacity     int     `yaml:"buffer_capacity" default:"10000" validate:"gt=0"`
	Gamma              float64 `yaml:"gamma" default:"0.95" validate:"gte=0,lte=1"`
	EpsilonStart       float64 `yaml:"epsilon_start" default:"1.0" validate:"gte=0,lte=1"`
	EpsilonMin         float64 `yaml:"epsilon_min" default:"0.05" validate:"gte=0,lte=1"`
	EpsilonDecay       float64 `yaml:"epsilon_decay" default:"0.995" validate:"gt=0,lte=1"`
	TargetSyncInterval int     `yaml:"target_sync_interval" default:"250" validate:"gt=0"`
	SaveInterval       int     `yaml:"save_interval" default:"10" validate:"gte=0"`
	Seed               int64   `yaml:"seed" default:"42"`
	ProgressEvery      int     `yaml:"progress_every" default:"25" validate:"gt=0"`
	TargetMarket       string  `yaml:"target_market" default:"over_2_5"`
	MinConfidence      float64 `yaml:"min_confidence" default:"0.55" validate:"gte=0"`
	InitialBankroll    float64 `yaml:"initial_bankroll" default:"100" validate:"gt=0"`
	HistoryWindow      int     `yaml:"history_window" default:"50" validate:"gt=0"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}
	c.applySliceDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parse PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		c.ClickHouse.DSN = v
		c.ClickHouse.Enabled = true
	}
	if v := os.Getenv("TRAINING_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse TRAINING_SEED: %w", err)
		}
		c.Training.Seed = seed
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// Default returns a configuration with every default applied and no file
// read, for binaries that run without one.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}
	c.applySliceDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// applySliceDefaults fills slice fields that struct tags cannot default.
func (c *Config) applySliceDefaults() {
	if len(c.Features.Markets) == 0 {
		c.Features.Markets = append([]string(nil), domain.DefaultMarkets...)
	}
	if len(c.Network.Hidden) == 0 {
		c.Network.Hidden = append([]int(nil), network.DefaultHidden...)
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return validationError(err)
	}

	if c.Training.EpsilonMin > c.Training.EpsilonStart {
		return fmt.Errorf("training.epsilon_min (%v) must not exceed training.epsilon_start (%v)",
			c.Training.EpsilonMin, c.Training.EpsilonStart)
	}
	if c.ClickHouse.Enabled && c.ClickHouse.DSN == "" {
		return fmt.Errorf("clickhouse.dsn is required when clickhouse.enabled is true")
	}

	if !domain.ValidMarket(c.Training.TargetMarket) {
		return fmt.Errorf("training.target_market %q is not a known market", c.Training.TargetMarket)
	}
	for _, m := range c.Features.Markets {
		if !domain.ValidMarket(m) {
			return fmt.Errorf("features.markets contains unknown market %q", m)
		}
	}

	return nil
}

// validationError flattens validator errors into one readable message.
func validationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, e := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", e.Namespace(), e.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(parts, "; "))
}
