// Package config loads runtime settings for the trio server: listener and
// connection limits, push delivery credentials, logging and metrics.
//
// Settings are layered with koanf: built-in defaults, then an optional YAML
// file, then TRIO_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// RateLimitConfig defines the parameters for per-connection event rate limiting.
type RateLimitConfig struct {
	Burst          int           `koanf:"burst"`
	RefillInterval time.Duration `koanf:"refill_interval"`
}

// ServerConfig holds listener and per-connection security controls.
type ServerConfig struct {
	Port            string          `koanf:"port"`
	AllowedOrigins  []string        `koanf:"allowed_origins"`
	MaxMessageSize  int64           `koanf:"max_message_size"`
	RateLimit       RateLimitConfig `koanf:"rate_limit"`
	ShutdownTimeout time.Duration   `koanf:"shutdown_timeout"`
}

// PushConfig holds Web Push (VAPID) delivery settings.
type PushConfig struct {
	Enabled         bool          `koanf:"enabled"`
	VAPIDPublicKey  string        `koanf:"vapid_public_key"`
	VAPIDPrivateKey string        `koanf:"vapid_private_key"`
	Subject         string        `koanf:"subject"`
	TTL             time.Duration `koanf:"ttl"`
	Timeout         time.Duration `koanf:"timeout"`
}

// LoggingConfig selects log level and output format.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsConfig controls the periodic metrics report. A zero interval
// disables periodic reports.
type MetricsConfig struct {
	ReportInterval time.Duration `koanf:"report_interval"`
}

// Config is the full server configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Push    PushConfig    `koanf:"push"`
	Logging LoggingConfig `koanf:"logging"`
	Metrics MetricsConfig `koanf:"metrics"`
}

const (
	defaultPort           = ":8080"
	defaultMaxMessageSize = 64 * 1024
	defaultBurst          = 10
	defaultRefill         = time.Second
	defaultShutdown       = 10 * time.Second
	defaultPushTTL        = 60 * time.Second
	defaultPushTimeout    = 10 * time.Second
)

// Default returns a Config populated with default values for all settings.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: defaultPort,
			AllowedOrigins: []string{
				"http://localhost:8080",
			},
			MaxMessageSize: defaultMaxMessageSize,
			RateLimit: RateLimitConfig{
				Burst:          defaultBurst,
				RefillInterval: defaultRefill,
			},
			ShutdownTimeout: defaultShutdown,
		},
		Push: PushConfig{
			Enabled: false,
			Subject: "mailto:admin@example.com",
			TTL:     defaultPushTTL,
			Timeout: defaultPushTimeout,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			ReportInterval: time.Minute,
		},
	}
}

// Sanitize replaces zero or negative limits with defaults and trims origin
// entries. It never fails; Validate reports what Sanitize cannot repair.
func (c *Config) Sanitize() {
	if strings.TrimSpace(c.Server.Port) == "" {
		c.Server.Port = defaultPort
	}
	if c.Server.MaxMessageSize <= 0 {
		c.Server.MaxMessageSize = defaultMaxMessageSize
	}
	if c.Server.RateLimit.Burst <= 0 {
		c.Server.RateLimit.Burst = defaultBurst
	}
	if c.Server.RateLimit.RefillInterval <= 0 {
		c.Server.RateLimit.RefillInterval = defaultRefill
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = defaultShutdown
	}
	if c.Push.TTL <= 0 {
		c.Push.TTL = defaultPushTTL
	}
	if c.Push.Timeout <= 0 {
		c.Push.Timeout = defaultPushTimeout
	}

	origins := make([]string, 0, len(c.Server.AllowedOrigins))
	for _, o := range c.Server.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.Server.AllowedOrigins = origins
}

// Validate reports configuration that cannot be used as-is.
func (c *Config) Validate() error {
	var errs []error

	if !strings.Contains(c.Server.Port, ":") {
		errs = append(errs, fmt.Errorf("server.port %q must be of the form [host]:port", c.Server.Port))
	}
	if c.Metrics.ReportInterval < 0 {
		errs = append(errs, errors.New("metrics.report_interval must not be negative"))
	}
	if c.Push.Enabled {
		if c.Push.VAPIDPublicKey == "" || c.Push.VAPIDPrivateKey == "" {
			errs = append(errs, errors.New("push.enabled requires push.vapid_public_key and push.vapid_private_key"))
		}
		if c.Push.Subject == "" {
			errs = append(errs, errors.New("push.enabled requires push.subject"))
		}
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be json or console", c.Logging.Format))
	}

	return errors.Join(errs...)
}
