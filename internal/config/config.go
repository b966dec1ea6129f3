package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Source kinds.
const (
	SourceStatic = "static"
	SourceSheet  = "sheet"
	SourceFile   = "file"
)

type AppConfig struct {
	// Source selects where the base series is fetched from.
	SourceKind string `yaml:"source_kind" validate:"oneof=static sheet file"`
	SourceURL  string `yaml:"source_url" validate:"required_unless=SourceKind file"`
	SourcePath string `yaml:"source_path" validate:"required_if=SourceKind file"`

	// Local override persistence.
	OverrideDir        string `yaml:"override_dir" validate:"required"`
	OverrideQuotaBytes int    `yaml:"override_quota_bytes" validate:"gte=0"` // 0 = unlimited, only for the memory store
	OverrideInMemory   bool   `yaml:"override_in_memory"`

	HTTPTimeout   time.Duration `yaml:"http_timeout" validate:"gt=0"`
	SourceRetries int           `yaml:"source_retries" validate:"gte=0"`

	// RefreshInterval controls how often base data is refetched (0 = never).
	RefreshInterval time.Duration `yaml:"refresh_interval" validate:"gte=0"`

	Port string `yaml:"port" validate:"required,numeric"`
}

// Default returns the configuration used when nothing is set.
func Default() *AppConfig {
	return &AppConfig{
		SourceKind:      SourceFile,
		SourcePath:      "public/data.json",
		OverrideDir:     "data",
		HTTPTimeout:     10 * time.Second,
		SourceRetries:   3,
		RefreshInterval: time.Hour,
		Port:            "8080",
	}
}

// Load reads configuration from an optional YAML file (CONFIG_FILE) and then
// from the environment, which wins over the file.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.SourceKind = getenvDefault("SOURCE_KIND", cfg.SourceKind)
	cfg.SourceURL = getenvDefault("SOURCE_URL", cfg.SourceURL)
	cfg.SourcePath = getenvDefault("SOURCE_PATH", cfg.SourcePath)
	cfg.OverrideDir = getenvDefault("OVERRIDE_DIR", cfg.OverrideDir)
	cfg.OverrideQuotaBytes = getenvInt("OVERRIDE_QUOTA_BYTES", cfg.OverrideQuotaBytes)
	cfg.OverrideInMemory = getenvBool("OVERRIDE_IN_MEMORY", cfg.OverrideInMemory)
	cfg.SourceRetries = getenvInt("SOURCE_RETRIES", cfg.SourceRetries)
	cfg.Port = getenvDefault("PORT", cfg.Port)

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", cfg.HTTPTimeout); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = getenvDuration("REFRESH_INTERVAL", cfg.RefreshInterval); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *AppConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
