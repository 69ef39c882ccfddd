package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// LedgerConfig is the typed view of the environment the ledger runs with.
type LedgerConfig struct {
	DataDir           string `validate:"required"`
	ArchiveDir        string `validate:"required"`
	Host              string `validate:"required"`
	MaxLoadedArchives int    `validate:"gte=1,lte=1000"`

	ColdStorageBucket string
	PubSubTopic       string
	RedisAddress      string
	Port              string `validate:"required,numeric"`
}

var validate = validator.New()

func init() {
	// Load env from .env
	godotenv.Load()
}

// LoadLedgerConfig reads the LEDGER_* variables.
//
// Env:
// - LEDGER_DATA_DIR (required)
// - LEDGER_ARCHIVE_DIR (default $LEDGER_DATA_DIR/archive)
// - LEDGER_HOST (default os.Hostname)
// - LEDGER_MAX_LOADED_ARCHIVES (default 8)
// - COLD_STORAGE_BUCKET, LEDGER_PUBSUB_TOPIC, REDIS_ADDRESS (optional)
// - API_PORT or PORT (default 8080)
func LoadLedgerConfig() (*LedgerConfig, error) {
	cfg := &LedgerConfig{
		DataDir:           strings.TrimSpace(os.Getenv("LEDGER_DATA_DIR")),
		ArchiveDir:        strings.TrimSpace(os.Getenv("LEDGER_ARCHIVE_DIR")),
		Host:              strings.TrimSpace(os.Getenv("LEDGER_HOST")),
		MaxLoadedArchives: intFromEnv("LEDGER_MAX_LOADED_ARCHIVES", 8),
		ColdStorageBucket: strings.TrimSpace(os.Getenv("COLD_STORAGE_BUCKET")),
		PubSubTopic:       strings.TrimSpace(os.Getenv("LEDGER_PUBSUB_TOPIC")),
		RedisAddress:      strings.TrimSpace(os.Getenv("REDIS_ADDRESS")),
		Port:              strings.TrimSpace(os.Getenv("API_PORT")),
	}
	if cfg.ArchiveDir == "" && cfg.DataDir != "" {
		cfg.ArchiveDir = filepath.Join(cfg.DataDir, "archive")
	}
	if cfg.Host == "" {
		if h, err := os.Hostname(); err == nil {
			cfg.Host = h
		}
	}
	if cfg.Port == "" {
		cfg.Port = strings.TrimSpace(os.Getenv("PORT"))
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid ledger config: %w", err)
	}
	return cfg, nil
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
