package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	General   GeneralConfig   `toml:"general"`
	Engine    EngineConfig    `toml:"engine"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Trigger   TriggerConfig   `toml:"trigger"`
	Storage   StorageConfig   `toml:"storage"`
	Logging   LoggingConfig   `toml:"logging"`
}

type GeneralConfig struct {
	DataDir string `toml:"data_dir"`
}

type EngineConfig struct {
	// PollInterval is how often the dispatch loop re-examines the
	// frontier in addition to completion wakeups.
	PollInterval  string        `toml:"poll_interval"`
	StepTimeout   string        `toml:"step_timeout"`
	PollIntervalD time.Duration `toml:"-"`
	StepTimeoutD  time.Duration `toml:"-"`
}

type SchedulerConfig struct {
	PollInterval  string        `toml:"poll_interval"`
	BufferSize    int           `toml:"buffer_size"`
	PollIntervalD time.Duration `toml:"-"`
}

type TriggerConfig struct {
	BufferSize  int `toml:"buffer_size"`
	WorkerCount int `toml:"worker_count"`
}

type StorageConfig struct {
	// Driver selects the repository backend: "memory" or "sqlite".
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".cascade")

	return &Config{
		General: GeneralConfig{
			DataDir: dataDir,
		},
		Engine: EngineConfig{
			PollInterval: "100ms",
			StepTimeout:  "5m",
		},
		Scheduler: SchedulerConfig{
			PollInterval: "1m",
			BufferSize:   100,
		},
		Trigger: TriggerConfig{
			BufferSize:  1000,
			WorkerCount: 4,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   filepath.Join(dataDir, "cascade.db"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   "",
		},
	}
}

func LoadFromFile(path string) (*Config, error) {
	expandedPath, err := expandPath(path)
	if err != nil {
		return nil, fmt.Errorf("expand path: %w", err)
	}

	data, err := os.ReadFile(expandedPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("decode TOML: %w", err)
	}

	if err := cfg.postProcess(); err != nil {
		return nil, fmt.Errorf("post process config: %w", err)
	}

	return cfg, nil
}

func (c *Config) postProcess() error {
	var err error

	if c.Engine.PollIntervalD, err = time.ParseDuration(c.Engine.PollInterval); err != nil {
		return fmt.Errorf("parse engine.poll_interval: %w", err)
	}

	if c.Engine.StepTimeoutD, err = time.ParseDuration(c.Engine.StepTimeout); err != nil {
		return fmt.Errorf("parse engine.step_timeout: %w", err)
	}

	if c.Scheduler.PollIntervalD, err = time.ParseDuration(c.Scheduler.PollInterval); err != nil {
		return fmt.Errorf("parse scheduler.poll_interval: %w", err)
	}

	c.General.DataDir, err = expandPath(c.General.DataDir)
	if err != nil {
		return fmt.Errorf("expand general.data_dir: %w", err)
	}

	c.Storage.Path, err = expandPath(c.Storage.Path)
	if err != nil {
		return fmt.Errorf("expand storage.path: %w", err)
	}

	c.Logging.File, err = expandPath(c.Logging.File)
	if err != nil {
		return fmt.Errorf("expand logging.file: %w", err)
	}

	return nil
}

func (c *Config) Validate() error {
	if c.Engine.PollIntervalD <= 0 {
		return fmt.Errorf("engine.poll_interval must be positive, got %s", c.Engine.PollInterval)
	}

	if c.Scheduler.PollIntervalD <= 0 {
		return fmt.Errorf("scheduler.poll_interval must be positive, got %s", c.Scheduler.PollInterval)
	}

	if c.Scheduler.BufferSize < 1 {
		return fmt.Errorf("scheduler.buffer_size must be at least 1, got %d", c.Scheduler.BufferSize)
	}

	if c.Trigger.BufferSize < 1 {
		return fmt.Errorf("trigger.buffer_size must be at least 1, got %d", c.Trigger.BufferSize)
	}

	if c.Trigger.WorkerCount < 1 {
		return fmt.Errorf("trigger.worker_count must be at least 1, got %d", c.Trigger.WorkerCount)
	}

	switch strings.ToLower(c.Storage.Driver) {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("invalid storage driver: %s (valid: memory, sqlite)", c.Storage.Driver)
	}

	if strings.ToLower(c.Storage.Driver) == "sqlite" && c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required when storage.driver is sqlite")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid logging level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid logging format: %s (valid: json, text)", c.Logging.Format)
	}

	return nil
}

func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CASCADE_DATA_DIR"); v != "" {
		cfg.General.DataDir = v
	}
	if v := os.Getenv("CASCADE_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("CASCADE_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("CASCADE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CASCADE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("CASCADE_ENGINE_POLL_INTERVAL"); v != "" {
		cfg.Engine.PollInterval = v
	}
	if v := os.Getenv("CASCADE_SCHEDULER_POLL_INTERVAL"); v != "" {
		cfg.Scheduler.PollInterval = v
	}
}

func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get user home directory: %w", err)
		}
		return filepath.Join(homeDir, path[2:]), nil
	}

	return path, nil
}

func Load(configPath string) (*Config, error) {
	var cfg *Config
	var err error

	if configPath != "" {
		cfg, err = LoadFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", configPath, err)
		}
	} else {
		cfg = Default()
	}

	ApplyEnvOverrides(cfg)

	if err := cfg.postProcess(); err != nil {
		return nil, fmt.Errorf("post process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}
