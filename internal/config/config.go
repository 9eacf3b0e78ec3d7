// Package config provides configuration management for Tonearm.
// Configuration is loaded from an optional YAML file, then overridden by
// environment variables, with sensible defaults for everything.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" json:"server"`
	Database DatabaseConfig `yaml:"database" json:"database"`
	Scanner  ScannerConfig  `yaml:"scanner" json:"scanner"`
	Assets   AssetConfig    `yaml:"assets" json:"assets"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `yaml:"host" json:"host"`
	Port         int           `yaml:"port" json:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// DatabaseConfig holds durable-backend configuration
type DatabaseConfig struct {
	Type     string `yaml:"type" json:"type"` // sqlite or postgres
	Path     string `yaml:"path" json:"path"` // sqlite database file
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	Database string `yaml:"database" json:"database"`
}

// ScannerConfig holds ingestion engine configuration
type ScannerConfig struct {
	WorkerCount   int   `yaml:"worker_count" json:"worker_count"`
	HeadChunkSize int64 `yaml:"head_chunk_size" json:"head_chunk_size"`
	TailChunkSize int64 `yaml:"tail_chunk_size" json:"tail_chunk_size"`
	WatchEnabled  bool  `yaml:"watch_enabled" json:"watch_enabled"`
}

// AssetConfig holds cover-art storage configuration
type AssetConfig struct {
	DataDir    string `yaml:"data_dir" json:"data_dir"`
	EnableWebP bool   `yaml:"enable_webp" json:"enable_webp"`
	Quality    int    `yaml:"quality" json:"quality"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			Path: "./tonearm-data/tonearm.db",
		},
		Scanner: ScannerConfig{
			WorkerCount:   4,
			HeadChunkSize: 128 * 1024,
			TailChunkSize: 256 * 1024,
			WatchEnabled:  true,
		},
		Assets: AssetConfig{
			DataDir:    "./tonearm-data/assets",
			EnableWebP: true,
			Quality:    90,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the given YAML file (if it exists) and
// applies environment overrides on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	setString(&c.Server.Host, "TONEARM_HOST")
	setInt(&c.Server.Port, "PORT")
	setString(&c.Database.Type, "DATABASE_TYPE")
	setString(&c.Database.Path, "TONEARM_DATABASE_PATH")
	setString(&c.Database.Host, "POSTGRES_HOST")
	setInt(&c.Database.Port, "POSTGRES_PORT")
	setString(&c.Database.Username, "POSTGRES_USER")
	setString(&c.Database.Password, "POSTGRES_PASSWORD")
	setString(&c.Database.Database, "POSTGRES_DB")
	setInt(&c.Scanner.WorkerCount, "TONEARM_WORKER_COUNT")
	setInt64(&c.Scanner.HeadChunkSize, "TONEARM_HEAD_CHUNK_SIZE")
	setInt64(&c.Scanner.TailChunkSize, "TONEARM_TAIL_CHUNK_SIZE")
	setBool(&c.Scanner.WatchEnabled, "TONEARM_WATCH_ENABLED")
	setString(&c.Assets.DataDir, "TONEARM_ASSETS_DIR")
	setBool(&c.Assets.EnableWebP, "TONEARM_ENABLE_WEBP")
	setInt(&c.Assets.Quality, "TONEARM_ASSET_QUALITY")
	setString(&c.Logging.Level, "TONEARM_LOG_LEVEL")
}

func (c *Config) validate() error {
	if c.Scanner.WorkerCount < 1 {
		return fmt.Errorf("scanner worker_count must be at least 1, got %d", c.Scanner.WorkerCount)
	}
	if c.Scanner.HeadChunkSize <= 0 || c.Scanner.TailChunkSize <= 0 {
		return fmt.Errorf("scanner chunk sizes must be positive")
	}
	switch c.Database.Type {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
