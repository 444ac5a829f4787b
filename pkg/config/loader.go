package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, CONFWHISPER_CONFIG env, ./config.yaml, /etc/confwhisper/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	// Start with defaults.
	cfg := Defaults()

	// Discover and load YAML config file.
	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	// Apply environment variable overrides.
	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	// Resolve _file references.
	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	// Validate.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. CONFWHISPER_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/confwhisper/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	// Explicit path takes priority.
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("CONFWHISPER_CONFIG"); envPath != "" {
		return envPath
	}

	// Check common locations.
	candidates := []string{
		"config.yaml",
		"/etc/confwhisper/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps CONFWHISPER_* environment variables to config
// fields. Malformed numeric, boolean or JSON values are reported.
func applyEnvOverrides(cfg *Config) error {
	var errs []string
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	integer := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", name, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(name string, dst *bool) {
		if v := os.Getenv(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", name, err))
				return
			}
			*dst = b
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v := os.Getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", name, err))
				return
			}
			*dst = d
		}
	}

	str("CONFWHISPER_URL", &cfg.Provider.BaseURL)
	str("CONFWHISPER_API_KEY", &cfg.Provider.APIKey)
	str("CONFWHISPER_MODEL", &cfg.Provider.ModelID)
	str("CONFWHISPER_REASONING_EFFORT", &cfg.Provider.ReasoningEffort)

	// CONFWHISPER_HEADERS: JSON object of extra backend headers.
	if v := os.Getenv("CONFWHISPER_HEADERS"); v != "" {
		var headers map[string]string
		if err := json.Unmarshal([]byte(v), &headers); err != nil {
			errs = append(errs, fmt.Sprintf("CONFWHISPER_HEADERS: %v", err))
		} else {
			cfg.Provider.Headers = headers
		}
	}

	integer("CONFWHISPER_MAX_RETRIES", &cfg.Retry.MaxRetries)
	duration("CONFWHISPER_RETRY_BASE_DELAY", &cfg.Retry.BaseDelay)
	duration("CONFWHISPER_RETRY_MAX_DELAY", &cfg.Retry.MaxDelay)
	boolean("CONFWHISPER_RETRY_ALL_ERRORS", &cfg.Retry.RetryAllErrors)

	boolean("CONFWHISPER_OHTTP", &cfg.OHTTP.Enabled)
	boolean("CONFWHISPER_OHTTP_WRAP", &cfg.OHTTP.Wrap)
	str("CONFWHISPER_OHTTP_RELAY_URL", &cfg.OHTTP.RelayURL)
	str("CONFWHISPER_OHTTP_KEY_CONFIG_FILE", &cfg.OHTTP.KeyConfigFile)
	str("CONFWHISPER_KMS", &cfg.OHTTP.KMSURL)
	str("CONFWHISPER_KMS_CERT_PATH", &cfg.OHTTP.KMSCertPath)

	integer("CONFWHISPER_PORT", &cfg.Server.Port)
	str("CONFWHISPER_AUTH_TYPE", &cfg.Auth.Type)
	integer("CONFWHISPER_RATE_LIMIT", &cfg.Auth.RateLimit.RequestsPerMinute)
	str("CONFWHISPER_USAGE", &cfg.Usage.Type)
	str("CONFWHISPER_USAGE_DSN", &cfg.Usage.Postgres.DSN)

	// CONFWHISPER_API_KEYS: JSON array of API key configs.
	if v := os.Getenv("CONFWHISPER_API_KEYS"); v != "" {
		keys, err := parseAPIKeysJSON(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("CONFWHISPER_API_KEYS: %v", err))
		} else if len(keys) > 0 {
			cfg.Auth.APIKeys = keys
		}
	}

	str("CONFWHISPER_LOG_LEVEL", &cfg.Logging.Level)
	str("CONFWHISPER_LOG_FORMAT", &cfg.Logging.Format)
	str("CONFWHISPER_DEBUG", &cfg.Logging.Debug)

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// parseAPIKeysJSON parses a JSON array of API key configurations.
func parseAPIKeysJSON(jsonStr string) ([]APIKeyConfig, error) {
	var keys []APIKeyConfig
	if err := json.Unmarshal([]byte(jsonStr), &keys); err != nil {
		return nil, fmt.Errorf("parsing API keys JSON: %w", err)
	}
	return keys, nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// provider.api_key_file -> provider.api_key
	if cfg.Provider.APIKeyFile != "" && cfg.Provider.APIKey == "" {
		val, err := readSecretFile(cfg.Provider.APIKeyFile)
		if err != nil {
			return fmt.Errorf("provider.api_key_file: %w", err)
		}
		cfg.Provider.APIKey = val
	}

	// usage.postgres.dsn_file -> usage.postgres.dsn
	if cfg.Usage.Postgres.DSNFile != "" && cfg.Usage.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Usage.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("usage.postgres.dsn_file: %w", err)
		}
		cfg.Usage.Postgres.DSN = val
	}

	// auth.api_keys[*].key_file -> auth.api_keys[*].key
	for i := range cfg.Auth.APIKeys {
		if cfg.Auth.APIKeys[i].KeyFile != "" && cfg.Auth.APIKeys[i].Key == "" {
			val, err := readSecretFile(cfg.Auth.APIKeys[i].KeyFile)
			if err != nil {
				return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
			}
			cfg.Auth.APIKeys[i].Key = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
