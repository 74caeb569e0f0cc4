package config

import (
	"fmt"
	"net/url"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Policy   PolicyConfig   `yaml:"policy"`
	Admin    AdminConfig    `yaml:"admin"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig contains server configuration
type ServerConfig struct {
	ListenAddr    string `yaml:"listen_addr"`
	PublicBaseURL string `yaml:"public_base_url"`
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// StorageConfig contains blob storage configuration
type StorageConfig struct {
	BlobDir string `yaml:"blob_dir"`
}

// PolicyConfig contains upload policy
type PolicyConfig struct {
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// AdminConfig contains admin configuration
type AdminConfig struct {
	Token string `yaml:"token"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}
	if c.Server.PublicBaseURL == "" {
		return fmt.Errorf("server.public_base_url is required")
	}
	if _, err := url.Parse(c.Server.PublicBaseURL); err != nil {
		return fmt.Errorf("server.public_base_url is invalid: %w", err)
	}

	// Database validation
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	// Storage validation
	if c.Storage.BlobDir == "" {
		return fmt.Errorf("storage.blob_dir is required")
	}

	// Policy validation
	if c.Policy.MaxUploadBytes <= 0 {
		return fmt.Errorf("policy.max_upload_bytes must be positive")
	}

	// Admin validation
	if c.Admin.Token == "" {
		return fmt.Errorf("admin.token is required")
	}

	// Logging validation
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console'")
	}

	return nil
}
