package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// StoreBackend names where save records are kept.
type StoreBackend string

const (
	StoreFile     StoreBackend = "file"
	StoreSQLite   StoreBackend = "sqlite"
	StorePostgres StoreBackend = "postgres"
)

// EngineConfig is loaded from engine.yaml. Any field may be overridden by the
// STEPWISE_* environment variable named in its env tag.
type EngineConfig struct {
	Version int `yaml:"version"`

	Session struct {
		ID        string       `yaml:"id" env:"STEPWISE_SESSION_ID"`
		Seed      int64        `yaml:"seed" env:"STEPWISE_SEED"`
		GraphPath string       `yaml:"graph" env:"STEPWISE_GRAPH"`
		Store     StoreBackend `yaml:"store" env:"STEPWISE_STORE"`
		// SavePath is the save directory for the file and sqlite stores.
		SavePath  string       `yaml:"save_path" env:"STEPWISE_SAVE_PATH"`
		SaveSlot  string       `yaml:"save_slot" env:"STEPWISE_SAVE_SLOT"`
		Watch     bool         `yaml:"watch_graph" env:"STEPWISE_WATCH_GRAPH"`
	} `yaml:"session"`

	Battle struct {
		RewindSteps    int  `yaml:"rewind_steps" env:"STEPWISE_BATTLE_REWIND_STEPS"`
		Remote         bool `yaml:"remote" env:"STEPWISE_BATTLE_REMOTE"`
		TimeoutSeconds int  `yaml:"timeout_seconds" env:"STEPWISE_BATTLE_TIMEOUT"`
	} `yaml:"battle"`

	Gates struct {
		FailCooldownSteps int  `yaml:"fail_cooldown_steps" env:"STEPWISE_GATE_FAIL_COOLDOWN"`
		ResetTrackOnFail  bool `yaml:"reset_track_on_fail" env:"STEPWISE_GATE_RESET_TRACK_ON_FAIL"`
	} `yaml:"gates"`

	Exits struct {
		MaxChoices int `yaml:"max_choices" env:"STEPWISE_EXIT_MAX_CHOICES"`
	} `yaml:"exits"`

	API struct {
		Port int `yaml:"port" env:"STEPWISE_API_PORT"`
	} `yaml:"api"`

	MQTT struct {
		Enabled     bool   `yaml:"enabled" env:"STEPWISE_MQTT_ENABLED"`
		TopicPrefix string `yaml:"topic_prefix" env:"STEPWISE_MQTT_TOPIC_PREFIX"`
	} `yaml:"mqtt"`
}

// Defaults returns the configuration used when engine.yaml omits a value.
func Defaults() *EngineConfig {
	cfg := &EngineConfig{Version: 1}
	cfg.Session.ID = "local"
	cfg.Session.Seed = 1
	cfg.Session.Store = StoreFile
	cfg.Session.SavePath = "saves"
	cfg.Session.SaveSlot = "default"
	cfg.Battle.RewindSteps = 10
	cfg.Battle.TimeoutSeconds = 120
	cfg.Gates.FailCooldownSteps = 3
	cfg.Gates.ResetTrackOnFail = true
	cfg.Exits.MaxChoices = 3
	cfg.API.Port = 8080
	cfg.MQTT.TopicPrefix = "stepwise"
	return cfg
}

// LoadEngineConfig reads engine.yaml, fills defaults and applies environment
// overrides. An empty path yields defaults plus environment.
func LoadEngineConfig(path string) (*EngineConfig, error) {
	cfg := Defaults()

	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("engine.yaml: %w", err)
		}
		if cfg.Version != 1 {
			return nil, fmt.Errorf("unsupported engine.yaml version: %d", cfg.Version)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine.yaml: %w", err)
	}
	return cfg, nil
}

// Validate checks values that would make the engine misbehave.
func (c *EngineConfig) Validate() error {
	switch c.Session.Store {
	case StoreFile, StoreSQLite, StorePostgres:
	default:
		return fmt.Errorf("invalid session.store %q", c.Session.Store)
	}
	if c.Battle.RewindSteps < 0 {
		return fmt.Errorf("battle.rewind_steps must be >= 0")
	}
	if c.Gates.FailCooldownSteps < 0 {
		return fmt.Errorf("gates.fail_cooldown_steps must be >= 0")
	}
	if c.Exits.MaxChoices < 0 {
		return fmt.Errorf("exits.max_choices must be >= 0")
	}
	return nil
}

// UIPort returns the configured API port, defaulting to 8080 if not set.
func (c *EngineConfig) UIPort() int {
	if c.API.Port == 0 {
		return 8080
	}
	return c.API.Port
}
