// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// Config represents the CLI configuration that can be loaded from a JSON
// file. All fields are optional; missing values use defaults or must be
// provided via CLI flags.
type Config struct {
	// Provider
	APIKey    string `json:"api_key,omitempty"`    // Gemini API key
	ModelTier string `json:"model_tier,omitempty" validate:"omitempty,oneof=lite standard advanced"`

	// Batch behavior
	ConcurrencyLimit int    `json:"concurrency_limit,omitempty" validate:"min=0,max=64"`
	FailurePolicy    string `json:"failure_policy,omitempty" validate:"omitempty,oneof=continue stop"`

	// Validation policy. Responses whose stop reason is outside this list
	// are rejected before any trusted write.
	AllowedStopReasons []string `json:"allowed_stop_reasons,omitempty" validate:"dive,oneof=stop max_tokens safety recitation other"`

	// Template resolution
	TemplateCacheTTLSeconds int `json:"template_cache_ttl_seconds,omitempty" validate:"min=0"`

	// Storage
	DatabaseURL string `json:"database_url,omitempty"`
	S3Bucket    string `json:"s3_bucket,omitempty"`
	S3Prefix    string `json:"s3_prefix,omitempty"`
	S3Region    string `json:"s3_region,omitempty"`
	S3Endpoint  string `json:"s3_endpoint,omitempty" validate:"omitempty,url"`
	S3PathStyle bool   `json:"s3_path_style,omitempty"` // required for MinIO-style endpoints

	// Behavior
	Verbose bool `json:"verbose,omitempty"` // Print detailed debug information
}

// DefaultConfig returns the defaults applied when neither the config file
// nor CLI flags provide a value.
func DefaultConfig() Config {
	return Config{
		ModelTier:               "standard",
		ConcurrencyLimit:        4,
		FailurePolicy:           "continue",
		AllowedStopReasons:      []string{"stop"},
		TemplateCacheTTLSeconds: 300,
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Required fields are not checked here; they are enforced by CLI flag
// validation after merging.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			first := verrs[0]
			return fmt.Errorf("config error: field %q fails %q constraint", first.Field(), first.Tag())
		}
		return fmt.Errorf("config error: %w", err)
	}

	if c.S3Bucket == "" && c.S3Prefix != "" {
		return fmt.Errorf("config error: 's3_prefix' requires 's3_bucket'")
	}

	return nil
}

// MergeWithDefaults returns a new Config with unset fields filled from
// defaults. This is used to apply config file values as defaults for CLI
// flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.ModelTier == "" {
		result.ModelTier = defaults.ModelTier
	}
	if result.FailurePolicy == "" {
		result.FailurePolicy = defaults.FailurePolicy
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.S3Bucket == "" {
		result.S3Bucket = defaults.S3Bucket
	}
	if result.S3Prefix == "" {
		result.S3Prefix = defaults.S3Prefix
	}
	if result.S3Region == "" {
		result.S3Region = defaults.S3Region
	}
	if result.S3Endpoint == "" {
		result.S3Endpoint = defaults.S3Endpoint
	}

	// Int fields: use default if zero
	if result.ConcurrencyLimit == 0 {
		result.ConcurrencyLimit = defaults.ConcurrencyLimit
	}
	if result.TemplateCacheTTLSeconds == 0 {
		result.TemplateCacheTTLSeconds = defaults.TemplateCacheTTLSeconds
	}

	// Slice fields: use default if unset
	if len(result.AllowedStopReasons) == 0 {
		result.AllowedStopReasons = defaults.AllowedStopReasons
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}
