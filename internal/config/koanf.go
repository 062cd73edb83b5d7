package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "TRIO_CONFIG_PATH"

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "TRIO_"

// DefaultConfigPaths are searched in order when ConfigPathEnvVar is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/trio/config.yaml",
}

// envKeys maps lower-cased environment names (without prefix) to koanf paths.
// Unlisted variables are ignored.
var envKeys = map[string]string{
	"server_port":                       "server.port",
	"port":                              "server.port",
	"server_allowed_origins":            "server.allowed_origins",
	"allowed_origins":                   "server.allowed_origins",
	"server_max_message_size":           "server.max_message_size",
	"server_rate_limit_burst":           "server.rate_limit.burst",
	"server_rate_limit_refill_interval": "server.rate_limit.refill_interval",
	"server_shutdown_timeout":           "server.shutdown_timeout",
	"push_enabled":                      "push.enabled",
	"vapid_public_key":                  "push.vapid_public_key",
	"vapid_private_key":                 "push.vapid_private_key",
	"push_vapid_public_key":             "push.vapid_public_key",
	"push_vapid_private_key":            "push.vapid_private_key",
	"push_subject":                      "push.subject",
	"push_ttl":                          "push.ttl",
	"push_timeout":                      "push.timeout",
	"log_level":                         "logging.level",
	"log_format":                        "logging.format",
	"metrics_report_interval":           "metrics.report_interval",
}

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"server.allowed_origins",
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// envTransformFunc turns TRIO_SERVER_PORT into server.port. It returns ""
// for variables Load does not know, which makes koanf skip them.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return envKeys[key]
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		parts := strings.Split(s, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}
