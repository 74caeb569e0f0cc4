package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadWithEnv loads configuration from a file and applies environment variable overrides
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Apply environment variable overrides
	if dbPath := os.Getenv("DTRACK_DB_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}

	if blobDir := os.Getenv("DTRACK_BLOB_DIR"); blobDir != "" {
		cfg.Storage.BlobDir = blobDir
	}

	if adminToken := os.Getenv("DTRACK_ADMIN_TOKEN"); adminToken != "" {
		cfg.Admin.Token = adminToken
	}

	if listenAddr := os.Getenv("DTRACK_LISTEN_ADDR"); listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}

	if baseURL := os.Getenv("DTRACK_PUBLIC_BASE_URL"); baseURL != "" {
		cfg.Server.PublicBaseURL = baseURL
	}

	if maxUpload := os.Getenv("DTRACK_MAX_UPLOAD_BYTES"); maxUpload != "" {
		n, err := strconv.ParseInt(maxUpload, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("DTRACK_MAX_UPLOAD_BYTES is invalid: %w", err)
		}
		cfg.Policy.MaxUploadBytes = n
	}

	// Validate again after env overrides
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration after env overrides: %w", err)
	}

	return cfg, nil
}
