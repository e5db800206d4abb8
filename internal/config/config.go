// Package config loads and validates the YAML configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"bouncewatch/internal/policy"
)

// Config is the main configuration structure
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	API         APIConfig         `yaml:"api"`
	Webhook     WebhookConfig     `yaml:"webhook"`
	Policy      PolicyConfig      `yaml:"policy"`
	Storage     StorageConfig     `yaml:"storage"`
	Suppression SuppressionConfig `yaml:"suppression"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// ServerConfig contains server-wide settings
type ServerConfig struct {
	Hostname string `yaml:"hostname"` // FQDN of the server
}

// APIConfig contains HTTP server settings. The same listener carries
// the SNS webhook and the management API.
type APIConfig struct {
	ListenAddr     string        `yaml:"listen_addr"`
	APIKey         string        `yaml:"api_key"`          // Required for /api/v1 management routes
	MaxHeaderBytes int           `yaml:"max_header_bytes"` // Max HTTP header size (default: 1MB)
	ReadTimeout    time.Duration `yaml:"read_timeout"`     // HTTP read timeout (default: 30s)
	WriteTimeout   time.Duration `yaml:"write_timeout"`    // HTTP write timeout (default: 30s)
	IdleTimeout    time.Duration `yaml:"idle_timeout"`     // HTTP idle timeout (default: 60s)
	AllowedIPs     []string      `yaml:"allowed_ips"`      // IP addresses/CIDRs allowed on management routes (empty = allow all)
	TLS            TLSConfig     `yaml:"tls"`
}

// TLSConfig contains TLS certificate settings
type TLSConfig struct {
	CertFile string     `yaml:"cert_file"`
	KeyFile  string     `yaml:"key_file"`
	ACME     ACMEConfig `yaml:"acme"`
}

// ACMEConfig contains Let's Encrypt ACME settings
type ACMEConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Email    string   `yaml:"email"`
	Domains  []string `yaml:"domains"`
	CacheDir string   `yaml:"cache_dir"`
}

// WebhookConfig gates the inbound SNS endpoint. The basic-auth pair
// must match the Authorization header SNS is configured to send.
type WebhookConfig struct {
	Username             string   `yaml:"username"`
	Password             string   `yaml:"password"`
	AllowedIPs           []string `yaml:"allowed_ips"`           // IP addresses/CIDRs allowed to deliver notifications (empty = allow all)
	ConfirmSubscriptions bool     `yaml:"confirm_subscriptions"` // Fetch SubscribeURL on SubscriptionConfirmation envelopes
	MaxBodyBytes         int64    `yaml:"max_body_bytes"`        // Max notification payload size (default: 256KB)
}

// PolicyConfig contains the bounce threshold settings. BounceRatio is
// a pointer so an explicit non-positive value (consecutive mode) can be
// told apart from an unset one.
type PolicyConfig struct {
	Enabled     bool     `yaml:"enabled"`
	MinBounces  int      `yaml:"min_bounces"`
	BounceRatio *float64 `yaml:"bounce_ratio"`
}

// StorageConfig contains storage settings
type StorageConfig struct {
	Path      string           `yaml:"path"`
	Retention *RetentionConfig `yaml:"retention"` // Notification log retention settings
}

// RetentionConfig contains notification log retention settings
type RetentionConfig struct {
	LogMaxAge       time.Duration `yaml:"log_max_age"`      // Delete log entries older than this (0 = keep forever)
	CleanupInterval time.Duration `yaml:"cleanup_interval"` // How often to run cleanup
}

// SuppressionConfig contains SES suppression list sync settings
type SuppressionConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Region       string        `yaml:"region"`
	AccessKey    string        `yaml:"access_key"`    // Empty = ambient AWS credential chain
	SecretKey    string        `yaml:"secret_key"`
	SyncInterval time.Duration `yaml:"sync_interval"` // Default: 1h
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// MetricsConfig contains Prometheus metrics settings
type MetricsConfig struct {
	Enabled       bool          `yaml:"enabled"`
	ListenAddr    string        `yaml:"listen_addr"`    // Default: :9090
	Path          string        `yaml:"path"`           // Default: /metrics
	FlushInterval time.Duration `yaml:"flush_interval"` // Default: 10s
	AllowedIPs    []string      `yaml:"allowed_ips"`    // IP addresses/CIDRs allowed to access metrics
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	if c.Server.Hostname == "" {
		hostname, _ := os.Hostname()
		c.Server.Hostname = hostname
	}

	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":8080"
	}
	if c.API.MaxHeaderBytes == 0 {
		c.API.MaxHeaderBytes = 1 << 20 // 1 MB
	}
	if c.API.ReadTimeout == 0 {
		c.API.ReadTimeout = 30 * time.Second
	}
	if c.API.WriteTimeout == 0 {
		c.API.WriteTimeout = 30 * time.Second
	}
	if c.API.IdleTimeout == 0 {
		c.API.IdleTimeout = 60 * time.Second
	}
	if c.API.TLS.ACME.CacheDir == "" {
		c.API.TLS.ACME.CacheDir = "/var/lib/bouncewatch/certs"
	}

	if c.Webhook.MaxBodyBytes == 0 {
		c.Webhook.MaxBodyBytes = 256 << 10 // SNS caps messages at 256KB
	}

	if c.Storage.Path == "" {
		c.Storage.Path = "/var/lib/bouncewatch/bouncewatch.db"
	}
	if c.Storage.Retention == nil {
		c.Storage.Retention = &RetentionConfig{}
	}
	if c.Storage.Retention.CleanupInterval == 0 {
		c.Storage.Retention.CleanupInterval = time.Hour
	}

	if c.Suppression.SyncInterval == 0 {
		c.Suppression.SyncInterval = time.Hour
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	// Metrics defaults
	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = ":9090"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.FlushInterval == 0 {
		c.Metrics.FlushInterval = 10 * time.Second
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Webhook.Username == "" || c.Webhook.Password == "" {
		return fmt.Errorf("webhook.username and webhook.password are required")
	}

	if c.Policy.MinBounces < 0 {
		return fmt.Errorf("policy.min_bounces must not be negative")
	}

	if c.Suppression.Enabled {
		if c.Suppression.Region == "" {
			return fmt.Errorf("suppression.region is required when suppression sync is enabled")
		}
		if (c.Suppression.AccessKey == "") != (c.Suppression.SecretKey == "") {
			return fmt.Errorf("suppression requires both access_key and secret_key, or neither")
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid logging.format: %s (must be json or text)", c.Logging.Format)
	}

	return c.validateTLS()
}

// validateTLS validates TLS configuration
func (c *Config) validateTLS() error {
	tls := c.API.TLS
	hasCerts := tls.CertFile != "" || tls.KeyFile != ""
	hasACME := tls.ACME.Enabled

	if hasCerts && hasACME {
		return fmt.Errorf("cannot use both manual certificates and ACME")
	}

	if hasCerts {
		if tls.CertFile == "" {
			return fmt.Errorf("api.tls.cert_file is required when using manual certificates")
		}
		if tls.KeyFile == "" {
			return fmt.Errorf("api.tls.key_file is required when using manual certificates")
		}
	}

	if hasACME {
		if tls.ACME.Email == "" {
			return fmt.Errorf("api.tls.acme.email is required when ACME is enabled")
		}
		if len(tls.ACME.Domains) == 0 {
			return fmt.Errorf("api.tls.acme.domains must not be empty when ACME is enabled")
		}
	}

	return nil
}

// HasTLS returns true if TLS is configured
func (c *Config) HasTLS() bool {
	return (c.API.TLS.CertFile != "" && c.API.TLS.KeyFile != "") || c.API.TLS.ACME.Enabled
}

// PolicySettings converts the YAML policy section into the raw
// settings consumed by policy.Resolve
func (c *Config) PolicySettings() policy.Settings {
	return policy.Settings{
		Enabled:     c.Policy.Enabled,
		MinBounces:  c.Policy.MinBounces,
		BounceRatio: c.Policy.BounceRatio,
	}
}
